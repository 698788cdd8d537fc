package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string           `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash   string           `gorm:"column:password_hash;not null"`
	DisplayName    string           `gorm:"column:display_name;not null"`
	Role           enums.MemberRole `gorm:"column:role;type:text;not null;default:'user'"`
	IsVIP          bool             `gorm:"column:is_vip;not null;default:false"`
	VIPStatus      enums.VIPStatus  `gorm:"column:vip_status;type:text;not null;default:'none'"`
	VIPActiveUntil *time.Time       `gorm:"column:vip_active_until"`
	IsActive       bool             `gorm:"column:is_active;not null;default:true"`
	ReferredByID   *uuid.UUID       `gorm:"column:referred_by_id;type:uuid"`
	LastSeenAt     *time.Time       `gorm:"column:last_seen_at"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// VIPActive reports whether VIP pricing applies at the given instant.
// A lifetime grant (flag or status) never lapses; a timed grant must
// still be running.
func (u *User) VIPActive(now time.Time) bool {
	if u.IsVIP || u.VIPStatus == enums.VIPStatusLifetime {
		return true
	}
	return u.VIPActiveUntil != nil && u.VIPActiveUntil.After(now)
}
