package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/internal/wallet"
	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
)

// ReferralSignupBonusPoints is granted to the referrer when a referred
// signup completes.
const ReferralSignupBonusPoints = 10

type pointsAwarder interface {
	AwardPoints(ctx context.Context, input wallet.AwardPointsInput) (*models.Wallet, error)
}

// Service exposes the user profile operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetVIP(ctx context.Context, id uuid.UUID, input SetVIPInput) error
	IsSetupComplete(ctx context.Context, id uuid.UUID) (bool, error)
}

// SetVIPInput grants or revokes VIP pricing. An enabled grant without
// an expiry is a lifetime one; with ActiveUntil set it lapses when the
// window closes.
type SetVIPInput struct {
	Enabled     bool
	ActiveUntil *time.Time
}

// RegisterInput captures the data needed to provision a user row.
type RegisterInput struct {
	Email        string
	PasswordHash string
	DisplayName  string
	ReferredByID *uuid.UUID
}

type service struct {
	repo    Repository
	wallets pointsAwarder
	logg    *logger.Logger
}

// NewService builds a users service with the required dependencies.
func NewService(repo Repository, wallets pointsAwarder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, wallets: wallets, logg: logg}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name required")
	}
	if input.PasswordHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password hash required")
	}

	if input.ReferredByID != nil {
		if _, err := s.repo.FindByID(ctx, *input.ReferredByID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "referrer not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referrer")
		}
	}

	user := &models.User{
		Email:        email,
		PasswordHash: input.PasswordHash,
		DisplayName:  name,
		Role:         enums.MemberRoleUser,
		IsActive:     true,
		ReferredByID: input.ReferredByID,
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "create user")
	}

	// The signup bonus is a side effect; a wallet failure must not
	// fail the registration.
	if created.ReferredByID != nil {
		if _, err := s.wallets.AwardPoints(ctx, wallet.AwardPointsInput{
			UserID: *created.ReferredByID,
			Points: ReferralSignupBonusPoints,
			Source: enums.PointsSourceReferralSignup,
		}); err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"referrer_id": created.ReferredByID.String(),
				"error":       err.Error(),
			})
			s.logg.Warn(logCtx, "referral signup bonus failed")
		}
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// IsSetupComplete reports whether the user may act as a seller. Accepting
// a trade and confirming delivery both require a live, active account.
func (s *service) IsSetupComplete(ctx context.Context, id uuid.UUID) (bool, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return user.IsActive, nil
}

func (s *service) SetVIP(ctx context.Context, id uuid.UUID, input SetVIPInput) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	updates := map[string]any{
		"is_vip":           false,
		"vip_status":       enums.VIPStatusNone,
		"vip_active_until": nil,
	}
	if input.Enabled {
		if input.ActiveUntil == nil {
			updates["is_vip"] = true
			updates["vip_status"] = enums.VIPStatusLifetime
		} else {
			if !input.ActiveUntil.After(time.Now().UTC()) {
				return pkgerrors.New(pkgerrors.CodeValidation, "vip expiry must be in the future")
			}
			updates["vip_status"] = enums.VIPStatusTimed
			updates["vip_active_until"] = *input.ActiveUntil
		}
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vip grant")
	}
	return nil
}
