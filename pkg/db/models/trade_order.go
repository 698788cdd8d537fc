package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// TradeOrder is the escrow-backed order at the center of a safe trade.
// Status timestamps are append-only: once set, a lifecycle timestamp is
// never cleared or rewritten.
type TradeOrder struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string            `gorm:"column:code;type:text;not null;uniqueIndex"`
	ListingID      uuid.UUID         `gorm:"column:listing_id;type:uuid;not null"`
	BuyerID        uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID       uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	Status         enums.TradeStatus `gorm:"column:status;type:trade_status;not null;default:'requested'"`
	Quantity       int64             `gorm:"column:quantity;not null;default:1"`
	UnitPriceCents int64             `gorm:"column:unit_price_cents;not null"`
	SubtotalCents  int64             `gorm:"column:subtotal_cents;not null"`
	// PlatformFeeCents holds an estimate from order creation until
	// settlement overwrites it with the fee the split actually charged.
	PlatformFeeCents  int64           `gorm:"column:platform_fee_cents;not null;default:0"`
	TotalCents        int64           `gorm:"column:total_cents;not null"`
	EscrowPaymentID   *string         `gorm:"column:escrow_payment_id"`
	BuyerNote         *string         `gorm:"column:buyer_note"`
	CancelReason      *string         `gorm:"column:cancel_reason"`
	AcceptedAt        *time.Time      `gorm:"column:accepted_at"`
	PaidAt            *time.Time      `gorm:"column:paid_at"`
	BuyerConfirmedAt  *time.Time      `gorm:"column:buyer_confirmed_at"`
	SellerConfirmedAt *time.Time      `gorm:"column:seller_confirmed_at"`
	CompletedAt       *time.Time      `gorm:"column:completed_at"`
	CancelledAt       *time.Time      `gorm:"column:cancelled_at"`
	RefundedAt        *time.Time      `gorm:"column:refunded_at"`
	SettledAt         *time.Time      `gorm:"column:settled_at"`
	DisputeDeadlineAt *time.Time      `gorm:"column:dispute_deadline_at"`
	LastTransitionAt  time.Time       `gorm:"column:last_transition_at;not null"`
	Proofs            []DeliveryProof `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
