package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/internal/wallet"
	"github.com/safetradehq/safetrade-backend/pkg/db"
	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
)

type walletCreditor interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) error
}

// Service settles completed trades. Settle runs inside the caller's
// transaction so the purchase record, payout ledger, and wallet credits
// commit together with the order's status change.
type Service interface {
	Settle(ctx context.Context, tx *gorm.DB, order *models.TradeOrder, buyer *models.User) (*models.Purchase, error)
	PurchaseForOrder(ctx context.Context, orderID uuid.UUID) (*models.Purchase, error)
	SellerTotals(ctx context.Context, sellerID uuid.UUID) (*SellerTotals, error)
}

type service struct {
	repo    Repository
	wallets walletCreditor
	now     func() time.Time
}

// NewService builds a settlement service with the required dependencies.
func NewService(repo Repository, wallets walletCreditor) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet creditor required")
	}
	return &service{
		repo:    repo,
		wallets: wallets,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Settle computes the split from the buyer's VIP/referrer snapshot taken
// at confirm time, so a mid-flight VIP change cannot alter an already
// decided payout.
func (s *service) Settle(ctx context.Context, tx *gorm.DB, order *models.TradeOrder, buyer *models.User) (*models.Purchase, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if order == nil || buyer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order and buyer required")
	}
	if order.BuyerID != buyer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "buyer does not match order")
	}
	if order.TotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	repo := s.repo.WithTx(tx)
	breakdown := Compute(order.TotalCents, buyer.ReferredByID, buyer.VIPActive(s.now()))

	purchase := &models.Purchase{
		OrderID:          order.ID,
		BuyerID:          order.BuyerID,
		SellerID:         order.SellerID,
		ReferrerID:       breakdown.ReferrerID,
		TotalCents:       breakdown.TotalCents,
		OwnerCutCents:    breakdown.OwnerCutCents,
		ReferrerCutCents: breakdown.ReferrerCutCents,
		SellerCents:      breakdown.SellerCents,
		VIPApplied:       breakdown.VIPApplied,
	}
	created, err := repo.CreatePurchase(ctx, purchase)
	if err != nil {
		// The unique index on order_id makes a replayed settlement a
		// no-op rather than a double payout.
		if db.IsUniqueViolation(err, "") {
			existing, findErr := repo.FindPurchaseByOrder(ctx, order.ID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load existing purchase")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase")
	}

	entries := []models.PayoutLedgerEntry{
		{
			PurchaseID:  created.ID,
			OrderID:     order.ID,
			Role:        enums.PayoutRoleOwner,
			AmountCents: breakdown.OwnerCutCents,
		},
		{
			PurchaseID:    created.ID,
			OrderID:       order.ID,
			BeneficiaryID: &order.SellerID,
			Role:          enums.PayoutRoleSeller,
			AmountCents:   breakdown.SellerCents,
		},
	}
	if breakdown.ReferrerID != nil {
		entries = append(entries, models.PayoutLedgerEntry{
			PurchaseID:    created.ID,
			OrderID:       order.ID,
			BeneficiaryID: breakdown.ReferrerID,
			Role:          enums.PayoutRoleReferrer,
			AmountCents:   breakdown.ReferrerCutCents,
		})
	}
	if err := repo.CreatePayoutEntries(ctx, entries); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout entries")
	}

	// The fee stored at order creation was an estimate; the settlement
	// split wins if VIP or referrer state changed in the interim.
	if err := repo.UpdateOrderPlatformFee(ctx, order.ID, breakdown.PlatformFeeCents()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update platform fee")
	}
	order.PlatformFeeCents = breakdown.PlatformFeeCents()

	if err := s.wallets.Credit(ctx, tx, wallet.CreditInput{
		UserID:      order.SellerID,
		AmountCents: breakdown.SellerCents,
		Source:      enums.CreditSourceTradePayout,
		OrderID:     &order.ID,
	}); err != nil {
		return nil, err
	}
	if breakdown.ReferrerID != nil && breakdown.ReferrerCutCents > 0 {
		if err := s.wallets.Credit(ctx, tx, wallet.CreditInput{
			UserID:      *breakdown.ReferrerID,
			AmountCents: breakdown.ReferrerCutCents,
			Source:      enums.CreditSourceReferralCut,
			OrderID:     &order.ID,
		}); err != nil {
			return nil, err
		}
	}

	return created, nil
}

func (s *service) PurchaseForOrder(ctx context.Context, orderID uuid.UUID) (*models.Purchase, error) {
	purchase, err := s.repo.FindPurchaseByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	return purchase, nil
}

func (s *service) SellerTotals(ctx context.Context, sellerID uuid.UUID) (*SellerTotals, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	totals, err := s.repo.SellerTotals(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate seller totals")
	}
	return totals, nil
}
