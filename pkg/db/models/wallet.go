package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's points and credit balances. One row per user;
// balances only move through ledgered operations.
type Wallet struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	PointsBalance int64     `gorm:"column:points_balance;not null;default:0"`
	// LifetimePointsEarned accumulates every positive points movement
	// and never decreases; conversions spend the balance, not the total.
	LifetimePointsEarned int64     `gorm:"column:lifetime_points_earned;not null;default:0"`
	CreditBalanceCents   int64     `gorm:"column:credit_balance_cents;not null;default:0"`
	LifetimeDiscountBps  int64     `gorm:"column:lifetime_discount_bps;not null;default:0"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
