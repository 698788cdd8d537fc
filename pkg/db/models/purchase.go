package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase is the immutable settlement record produced exactly once per
// completed trade. The unique index on OrderID is the database-level
// backstop against double settlement.
type Purchase struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	BuyerID          uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID         uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index"`
	ReferrerID       *uuid.UUID `gorm:"column:referrer_id;type:uuid"`
	TotalCents       int64      `gorm:"column:total_cents;not null"`
	OwnerCutCents    int64      `gorm:"column:owner_cut_cents;not null"`
	ReferrerCutCents int64      `gorm:"column:referrer_cut_cents;not null;default:0"`
	SellerCents      int64      `gorm:"column:seller_cents;not null"`
	VIPApplied       bool       `gorm:"column:vip_applied;not null;default:false"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
}
