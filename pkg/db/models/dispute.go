package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// Dispute tracks a buyer-initiated challenge against a funded trade.
type Dispute struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	OpenedByID       uuid.UUID              `gorm:"column:opened_by_id;type:uuid;not null"`
	Status           enums.DisputeStatus    `gorm:"column:status;type:dispute_status;not null;default:'open'"`
	Reason           string                 `gorm:"column:reason;type:text;not null"`
	Decision         *enums.DisputeDecision `gorm:"column:decision;type:dispute_decision"`
	RefundCents      *int64                 `gorm:"column:refund_cents"`
	ResolutionNote   *string                `gorm:"column:resolution_note;type:text"`
	ResolvedByID     *uuid.UUID             `gorm:"column:resolved_by_id;type:uuid"`
	ResolvedAt       *time.Time             `gorm:"column:resolved_at"`
	PriorOrderStatus enums.TradeStatus      `gorm:"column:prior_order_status;type:trade_status;not null"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
