package stats

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

type proofCounts struct {
	Accepted int64
	Rejected int64
}

// Repository reads and writes seller rollups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, stats *models.SellerStats) error
	FindBySeller(ctx context.Context, sellerID uuid.UUID) (*models.SellerStats, error)
	ProofCounts(ctx context.Context, sellerID uuid.UUID) (proofCounts, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Upsert(ctx context.Context, stats *models.SellerStats) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "seller_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"completed_trades", "gross_cents", "earned_cents",
				"proofs_accepted", "proofs_rejected", "updated_at",
			}),
		}).
		Create(stats).Error
}

func (r *repository) FindBySeller(ctx context.Context, sellerID uuid.UUID) (*models.SellerStats, error) {
	var stats models.SellerStats
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *repository) ProofCounts(ctx context.Context, sellerID uuid.UUID) (proofCounts, error) {
	var counts proofCounts
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryProof{}).
		Select(
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS accepted, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS rejected",
			enums.ProofStatusAccepted, enums.ProofStatusRejected,
		).
		Where("author_id = ?", sellerID).
		Scan(&counts).Error
	if err != nil {
		return proofCounts{}, err
	}
	return counts, nil
}
