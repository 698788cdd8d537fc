package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// CreditLedgerEntry records an immutable credit movement on a wallet.
type CreditLedgerEntry struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID          uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null;index"`
	Source            enums.CreditSource `gorm:"column:source;type:credit_source;not null"`
	DeltaCents        int64              `gorm:"column:delta_cents;not null"`
	BalanceAfterCents int64              `gorm:"column:balance_after_cents;not null"`
	OrderID           *uuid.UUID         `gorm:"column:order_id;type:uuid"`
	Metadata          json.RawMessage    `gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
}
