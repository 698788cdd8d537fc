package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/internal/settlement"
	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
)

type totalsSource interface {
	SellerTotals(ctx context.Context, sellerID uuid.UUID) (*settlement.SellerTotals, error)
}

// Service maintains the per-seller rollup.
type Service interface {
	Get(ctx context.Context, sellerID uuid.UUID) (*models.SellerStats, error)
	Recompute(ctx context.Context, sellerID uuid.UUID) (*models.SellerStats, error)
}

type service struct {
	repo   Repository
	totals totalsSource
	now    func() time.Time
}

// NewService builds a stats service with the required dependencies.
func NewService(repo Repository, totals totalsSource) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stats repository required")
	}
	if totals == nil {
		return nil, fmt.Errorf("settlement totals source required")
	}
	return &service{
		repo:   repo,
		totals: totals,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Get returns the stored rollup, or a zeroed one for sellers with no
// settled trades yet.
func (s *service) Get(ctx context.Context, sellerID uuid.UUID) (*models.SellerStats, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	stats, err := s.repo.FindBySeller(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.SellerStats{SellerID: sellerID}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller stats")
	}
	return stats, nil
}

// Recompute rebuilds the rollup from the settlement ledger and proof
// reviews. Rebuilding from source makes replayed events harmless.
func (s *service) Recompute(ctx context.Context, sellerID uuid.UUID) (*models.SellerStats, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	totals, err := s.totals.SellerTotals(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller totals")
	}
	counts, err := s.repo.ProofCounts(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count proof reviews")
	}

	stats := &models.SellerStats{
		SellerID:        sellerID,
		CompletedTrades: totals.PurchaseCount,
		GrossCents:      totals.GrossCents,
		EarnedCents:     totals.SellerCents,
		ProofsAccepted:  counts.Accepted,
		ProofsRejected:  counts.Rejected,
		UpdatedAt:       s.now(),
	}
	if err := s.repo.Upsert(ctx, stats); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store seller stats")
	}
	return stats, nil
}
