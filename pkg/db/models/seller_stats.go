package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerStats is a denormalized per-seller rollup recomputed whenever a
// trade settles or a proof review lands.
type SellerStats struct {
	SellerID        uuid.UUID `gorm:"column:seller_id;type:uuid;primaryKey"`
	CompletedTrades int64     `gorm:"column:completed_trades;not null;default:0"`
	GrossCents      int64     `gorm:"column:gross_cents;not null;default:0"`
	EarnedCents     int64     `gorm:"column:earned_cents;not null;default:0"`
	ProofsAccepted  int64     `gorm:"column:proofs_accepted;not null;default:0"`
	ProofsRejected  int64     `gorm:"column:proofs_rejected;not null;default:0"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
