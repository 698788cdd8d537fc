package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// DeliveryProof is evidence attached to a trade order by either party.
type DeliveryProof struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	AuthorID   uuid.UUID         `gorm:"column:author_id;type:uuid;not null"`
	Kind       enums.ProofKind   `gorm:"column:kind;type:proof_kind;not null"`
	Status     enums.ProofStatus `gorm:"column:status;type:proof_status;not null;default:'pending'"`
	URL        string            `gorm:"column:url;type:text;not null"`
	Note       *string           `gorm:"column:note;type:text"`
	ReviewedBy *uuid.UUID        `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt *time.Time        `gorm:"column:reviewed_at"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
