package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// PayoutLedgerEntry records one beneficiary's share of a settlement.
// The owner row carries a nil beneficiary; that cut accrues to the
// marketplace rather than a user wallet.
type PayoutLedgerEntry struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID    uuid.UUID        `gorm:"column:purchase_id;type:uuid;not null;index"`
	OrderID       uuid.UUID        `gorm:"column:order_id;type:uuid;not null"`
	BeneficiaryID *uuid.UUID       `gorm:"column:beneficiary_id;type:uuid;index"`
	Role          enums.PayoutRole `gorm:"column:role;type:payout_role;not null"`
	AmountCents   int64            `gorm:"column:amount_cents;not null"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
}
