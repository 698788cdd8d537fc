package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
)

// Repository persists settlement records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePurchase(ctx context.Context, purchase *models.Purchase) (*models.Purchase, error)
	CreatePayoutEntries(ctx context.Context, entries []models.PayoutLedgerEntry) error
	UpdateOrderPlatformFee(ctx context.Context, orderID uuid.UUID, feeCents int64) error
	FindPurchaseByOrder(ctx context.Context, orderID uuid.UUID) (*models.Purchase, error)
	SellerTotals(ctx context.Context, sellerID uuid.UUID) (*SellerTotals, error)
}

// SellerTotals aggregates a seller's settled trades.
type SellerTotals struct {
	PurchaseCount    int64 `json:"purchase_count"`
	GrossCents       int64 `json:"gross_cents"`
	SellerCents      int64 `json:"seller_cents"`
	OwnerCutCents    int64 `json:"owner_cut_cents"`
	ReferrerCutCents int64 `json:"referrer_cut_cents"`
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

func (r *repository) CreatePurchase(ctx context.Context, purchase *models.Purchase) (*models.Purchase, error) {
	if err := r.db.WithContext(ctx).Create(purchase).Error; err != nil {
		return nil, err
	}
	return purchase, nil
}

func (r *repository) CreatePayoutEntries(ctx context.Context, entries []models.PayoutLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

// UpdateOrderPlatformFee replaces the fee estimated at order creation
// with the fee the settlement split actually charged.
func (r *repository) UpdateOrderPlatformFee(ctx context.Context, orderID uuid.UUID, feeCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.TradeOrder{}).
		Where("id = ?", orderID).
		Update("platform_fee_cents", feeCents).Error
}

func (r *repository) FindPurchaseByOrder(ctx context.Context, orderID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) SellerTotals(ctx context.Context, sellerID uuid.UUID) (*SellerTotals, error) {
	var totals SellerTotals
	err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Select(`COUNT(*) AS purchase_count,
			COALESCE(SUM(total_cents), 0) AS gross_cents,
			COALESCE(SUM(seller_cents), 0) AS seller_cents,
			COALESCE(SUM(owner_cut_cents), 0) AS owner_cut_cents,
			COALESCE(SUM(referrer_cut_cents), 0) AS referrer_cut_cents`).
		Where("seller_id = ?", sellerID).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}
