package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing is an item a seller offers for a safe trade. One-time
// listings deactivate automatically once a trade against them is
// accepted or completed.
type Listing struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index"`
	Title       string     `gorm:"column:title;type:text;not null"`
	Description *string    `gorm:"column:description;type:text"`
	PriceCents  int64      `gorm:"column:price_cents;not null"`
	OneTime     bool       `gorm:"column:one_time;not null;default:false"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true"`
	ArchivedAt  *time.Time `gorm:"column:archived_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
