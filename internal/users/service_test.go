package users

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/internal/wallet"
	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
)

type stubUserRepo struct {
	users   map[uuid.UUID]*models.User
	updates []map[string]any
}

func (s *stubUserRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New()
	s.users[user.ID] = user
	return user, nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if _, ok := s.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.updates = append(s.updates, updates)
	return nil
}

type stubAwarder struct {
	calls []wallet.AwardPointsInput
	err   error
}

func (s *stubAwarder) AwardPoints(ctx context.Context, input wallet.AwardPointsInput) (*models.Wallet, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, input)
	return &models.Wallet{}, nil
}

func newUserFixture(t *testing.T) (Service, *stubUserRepo, *stubAwarder) {
	t.Helper()
	repo := &stubUserRepo{users: map[uuid.UUID]*models.User{}}
	awarder := &stubAwarder{}
	logg := logger.New(logger.Options{ServiceName: "users-test", Output: io.Discard})
	svc, err := NewService(repo, awarder, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, awarder
}

func TestRegisterAwardsReferralBonus(t *testing.T) {
	svc, repo, awarder := newUserFixture(t)
	referrer := &models.User{ID: uuid.New(), Email: "ref@example.com", IsActive: true}
	repo.users[referrer.ID] = referrer

	created, err := svc.Register(context.Background(), RegisterInput{
		Email:        "Buyer@Example.com",
		PasswordHash: "hash",
		DisplayName:  "Buyer",
		ReferredByID: &referrer.ID,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if created.Email != "buyer@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if len(awarder.calls) != 1 || awarder.calls[0].UserID != referrer.ID ||
		awarder.calls[0].Points != ReferralSignupBonusPoints {
		t.Fatalf("unexpected bonus calls %+v", awarder.calls)
	}
}

func TestRegisterSurvivesBonusFailure(t *testing.T) {
	svc, repo, awarder := newUserFixture(t)
	awarder.err = errors.New("wallet down")
	referrer := &models.User{ID: uuid.New(), Email: "ref@example.com", IsActive: true}
	repo.users[referrer.ID] = referrer

	created, err := svc.Register(context.Background(), RegisterInput{
		Email:        "buyer@example.com",
		PasswordHash: "hash",
		DisplayName:  "Buyer",
		ReferredByID: &referrer.ID,
	})
	if err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	if created == nil || created.ID == uuid.Nil {
		t.Fatal("expected created user")
	}
}

func TestRegisterRejectsUnknownReferrer(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ghost := uuid.New()

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:        "buyer@example.com",
		PasswordHash: "hash",
		DisplayName:  "Buyer",
		ReferredByID: &ghost,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSetVIPLifetimeGrant(t *testing.T) {
	svc, repo, _ := newUserFixture(t)
	user := &models.User{ID: uuid.New(), Email: "vip@example.com", IsActive: true}
	repo.users[user.ID] = user

	if err := svc.SetVIP(context.Background(), user.ID, SetVIPInput{Enabled: true}); err != nil {
		t.Fatalf("SetVIP: %v", err)
	}
	if len(repo.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(repo.updates))
	}
	updates := repo.updates[0]
	if updates["is_vip"] != true || updates["vip_status"] != enums.VIPStatusLifetime {
		t.Fatalf("unexpected updates %+v", updates)
	}
	if updates["vip_active_until"] != nil {
		t.Fatalf("lifetime grant must clear expiry, got %v", updates["vip_active_until"])
	}
}

func TestSetVIPTimedGrant(t *testing.T) {
	svc, repo, _ := newUserFixture(t)
	user := &models.User{ID: uuid.New(), Email: "vip@example.com", IsActive: true}
	repo.users[user.ID] = user
	until := time.Now().UTC().Add(30 * 24 * time.Hour)

	if err := svc.SetVIP(context.Background(), user.ID, SetVIPInput{Enabled: true, ActiveUntil: &until}); err != nil {
		t.Fatalf("SetVIP: %v", err)
	}
	updates := repo.updates[0]
	if updates["is_vip"] != false || updates["vip_status"] != enums.VIPStatusTimed {
		t.Fatalf("unexpected updates %+v", updates)
	}
	if updates["vip_active_until"] != until {
		t.Fatalf("expected expiry %v, got %v", until, updates["vip_active_until"])
	}
}

func TestSetVIPRejectsPastExpiry(t *testing.T) {
	svc, repo, _ := newUserFixture(t)
	user := &models.User{ID: uuid.New(), Email: "vip@example.com", IsActive: true}
	repo.users[user.ID] = user
	past := time.Now().UTC().Add(-time.Hour)

	err := svc.SetVIP(context.Background(), user.ID, SetVIPInput{Enabled: true, ActiveUntil: &past})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSetVIPRevoke(t *testing.T) {
	svc, repo, _ := newUserFixture(t)
	user := &models.User{ID: uuid.New(), Email: "vip@example.com", IsVIP: true, IsActive: true}
	repo.users[user.ID] = user

	if err := svc.SetVIP(context.Background(), user.ID, SetVIPInput{}); err != nil {
		t.Fatalf("SetVIP: %v", err)
	}
	updates := repo.updates[0]
	if updates["is_vip"] != false || updates["vip_status"] != enums.VIPStatusNone || updates["vip_active_until"] != nil {
		t.Fatalf("unexpected updates %+v", updates)
	}
}
