package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// PointsLedgerEntry records an immutable points movement on a wallet.
type PointsLedgerEntry struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID     uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null;index"`
	Source       enums.PointsSource `gorm:"column:source;type:points_source;not null"`
	DeltaPoints  int64              `gorm:"column:delta_points;not null"`
	BalanceAfter int64              `gorm:"column:balance_after;not null"`
	Metadata     json.RawMessage    `gorm:"column:metadata;type:jsonb"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}
