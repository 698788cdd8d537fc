package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// RegisterRequest captures the payload required to open an account.
type RegisterRequest struct {
	Email        string     `json:"email" validate:"required,email"`
	DisplayName  string     `json:"display_name" validate:"required"`
	Password     string     `json:"password" validate:"required"`
	ReferredByID *uuid.UUID `json:"referred_by_id,omitempty"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserSummary describes the account metadata returned alongside a token.
type UserSummary struct {
	ID          uuid.UUID        `json:"id"`
	Email       string           `json:"email"`
	DisplayName string           `json:"display_name"`
	Role        enums.MemberRole `json:"role"`
	IsVIP       bool             `json:"is_vip"`
}

// AuthResponse contains the access token and user produced by a
// successful login or registration.
type AuthResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        UserSummary `json:"user"`
}

func summarize(user *models.User) UserSummary {
	return UserSummary{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		IsVIP:       user.IsVIP,
	}
}
