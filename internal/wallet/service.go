package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/payloads"
	"github.com/safetradehq/safetrade-backend/pkg/pagination"
)

// Points convert at 100 points per dollar, so one point is worth one cent.
const (
	PointsPerConversionUnit = 100
	CentsPerPoint           = 1
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes wallet balance and ledger operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	AwardPoints(ctx context.Context, input AwardPointsInput) (*models.Wallet, error)
	ConvertPoints(ctx context.Context, input ConvertPointsInput) (*models.Wallet, error)
	AdminAdjust(ctx context.Context, input AdminAdjustInput) (*models.Wallet, error)
	Credit(ctx context.Context, tx *gorm.DB, input CreditInput) error
	PointsHistory(ctx context.Context, userID uuid.UUID, params HistoryParams) (*PointsHistory, error)
	CreditHistory(ctx context.Context, userID uuid.UUID, params HistoryParams) (*CreditHistory, error)
}

// AwardPointsInput adds points to a user's wallet.
type AwardPointsInput struct {
	UserID   uuid.UUID
	Points   int64
	Source   enums.PointsSource
	Metadata []byte
}

// ConvertPointsInput moves points into spendable credit.
type ConvertPointsInput struct {
	UserID uuid.UUID
	Points int64
}

// AdminAdjustInput is a staff-initiated balance correction. Deltas may
// be negative but can never push a balance below zero.
type AdminAdjustInput struct {
	UserID      uuid.UUID
	DeltaPoints int64
	DeltaCents  int64
	Metadata    []byte
}

// CreditInput moves credit onto a wallet inside the caller's transaction.
type CreditInput struct {
	UserID      uuid.UUID
	AmountCents int64
	Source      enums.CreditSource
	OrderID     *uuid.UUID
}

// HistoryParams controls ledger pages.
type HistoryParams struct {
	Limit  int
	Cursor string
}

// PointsHistory wraps a page of points ledger entries.
type PointsHistory struct {
	Items  []models.PointsLedgerEntry `json:"items"`
	Cursor string                     `json:"cursor,omitempty"`
}

// CreditHistory wraps a page of credit ledger entries.
type CreditHistory struct {
	Items  []models.CreditLedgerEntry `json:"items"`
	Cursor string                     `json:"cursor,omitempty"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a wallet service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	wallet, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	// Lazily materialize the wallet on first read.
	var created *models.Wallet
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var innerErr error
		created, innerErr = ensureWallet(ctx, s.repo.WithTx(tx), userID)
		return innerErr
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "create wallet")
	}
	return created, nil
}

func (s *service) AwardPoints(ctx context.Context, input AwardPointsInput) (*models.Wallet, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Points <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown points source")
	}

	var result *models.Wallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := lockWallet(ctx, repo, input.UserID)
		if err != nil {
			return err
		}

		newPoints := wallet.PointsBalance + input.Points
		if err := repo.UpdateBalances(ctx, wallet.ID, newPoints, wallet.CreditBalanceCents); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update points balance")
		}
		entry := &models.PointsLedgerEntry{
			WalletID:     wallet.ID,
			Source:       input.Source,
			DeltaPoints:  input.Points,
			BalanceAfter: newPoints,
			Metadata:     input.Metadata,
		}
		if err := repo.InsertPointsEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert points entry")
		}
		// Lifetime total only grows; conversions spend the balance, not
		// the accumulated earnings.
		if err := repo.AddLifetimePoints(ctx, wallet.ID, input.Points); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update lifetime points")
		}

		wallet.PointsBalance = newPoints
		wallet.LifetimePointsEarned += input.Points
		result = wallet
		return s.emitAdjusted(ctx, tx, wallet, nil, 0, input.Points, input.Source.String())
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ConvertPoints(ctx context.Context, input ConvertPointsInput) (*models.Wallet, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Points <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	if input.Points%PointsPerConversionUnit != 0 {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition,
			fmt.Sprintf("points must be a multiple of %d", PointsPerConversionUnit))
	}

	cents := input.Points * CentsPerPoint

	var result *models.Wallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := lockWallet(ctx, repo, input.UserID)
		if err != nil {
			return err
		}
		if wallet.PointsBalance < input.Points {
			return pkgerrors.New(pkgerrors.CodePrecondition, "insufficient points balance")
		}

		newPoints := wallet.PointsBalance - input.Points
		newCredit := wallet.CreditBalanceCents + cents
		if err := repo.UpdateBalances(ctx, wallet.ID, newPoints, newCredit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update balances")
		}

		pointsEntry := &models.PointsLedgerEntry{
			WalletID:     wallet.ID,
			Source:       enums.PointsSourceConversion,
			DeltaPoints:  -input.Points,
			BalanceAfter: newPoints,
		}
		if err := repo.InsertPointsEntry(ctx, pointsEntry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert points entry")
		}
		creditEntry := &models.CreditLedgerEntry{
			WalletID:          wallet.ID,
			Source:            enums.CreditSourcePointsConvert,
			DeltaCents:        cents,
			BalanceAfterCents: newCredit,
		}
		if err := repo.InsertCreditEntry(ctx, creditEntry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert credit entry")
		}

		wallet.PointsBalance = newPoints
		wallet.CreditBalanceCents = newCredit
		result = wallet
		return s.emitAdjusted(ctx, tx, wallet, nil, cents, -input.Points, enums.CreditSourcePointsConvert.String())
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) AdminAdjust(ctx context.Context, input AdminAdjustInput) (*models.Wallet, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.DeltaPoints == 0 && input.DeltaCents == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to adjust")
	}

	var result *models.Wallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := lockWallet(ctx, repo, input.UserID)
		if err != nil {
			return err
		}

		newPoints := wallet.PointsBalance + input.DeltaPoints
		newCredit := wallet.CreditBalanceCents + input.DeltaCents
		if newPoints < 0 {
			return pkgerrors.New(pkgerrors.CodePrecondition, "insufficient points balance")
		}
		if newCredit < 0 {
			return pkgerrors.New(pkgerrors.CodePrecondition, "insufficient credit balance")
		}
		if err := repo.UpdateBalances(ctx, wallet.ID, newPoints, newCredit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update balances")
		}

		if input.DeltaPoints != 0 {
			entry := &models.PointsLedgerEntry{
				WalletID:     wallet.ID,
				Source:       enums.PointsSourceAdminAdjust,
				DeltaPoints:  input.DeltaPoints,
				BalanceAfter: newPoints,
				Metadata:     input.Metadata,
			}
			if err := repo.InsertPointsEntry(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert points entry")
			}
			if input.DeltaPoints > 0 {
				if err := repo.AddLifetimePoints(ctx, wallet.ID, input.DeltaPoints); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update lifetime points")
				}
				wallet.LifetimePointsEarned += input.DeltaPoints
			}
		}
		if input.DeltaCents != 0 {
			entry := &models.CreditLedgerEntry{
				WalletID:          wallet.ID,
				Source:            enums.CreditSourceAdminAdjust,
				DeltaCents:        input.DeltaCents,
				BalanceAfterCents: newCredit,
				Metadata:          input.Metadata,
			}
			if err := repo.InsertCreditEntry(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert credit entry")
			}
		}

		wallet.PointsBalance = newPoints
		wallet.CreditBalanceCents = newCredit
		result = wallet
		return s.emitAdjusted(ctx, tx, wallet, nil, input.DeltaCents, input.DeltaPoints, enums.CreditSourceAdminAdjust.String())
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Credit runs inside the caller's transaction so settlement writes and
// wallet movements commit atomically.
func (s *service) Credit(ctx context.Context, tx *gorm.DB, input CreditInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown credit source")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := lockWallet(ctx, repo, input.UserID)
	if err != nil {
		return err
	}

	newCredit := wallet.CreditBalanceCents + input.AmountCents
	if err := repo.UpdateBalances(ctx, wallet.ID, wallet.PointsBalance, newCredit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update credit balance")
	}
	entry := &models.CreditLedgerEntry{
		WalletID:          wallet.ID,
		Source:            input.Source,
		DeltaCents:        input.AmountCents,
		BalanceAfterCents: newCredit,
		OrderID:           input.OrderID,
	}
	if err := repo.InsertCreditEntry(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert credit entry")
	}

	wallet.CreditBalanceCents = newCredit
	return s.emitAdjusted(ctx, tx, wallet, input.OrderID, input.AmountCents, 0, input.Source.String())
}

func (s *service) PointsHistory(ctx context.Context, userID uuid.UUID, params HistoryParams) (*PointsHistory, error) {
	wallet, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListPointsEntries(ctx, wallet.ID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list points entries")
	}
	history := &PointsHistory{Items: rows}
	if next != nil {
		history.Cursor = pagination.EncodeCursor(*next)
	}
	return history, nil
}

func (s *service) CreditHistory(ctx context.Context, userID uuid.UUID, params HistoryParams) (*CreditHistory, error) {
	wallet, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListCreditEntries(ctx, wallet.ID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credit entries")
	}
	history := &CreditHistory{Items: rows}
	if next != nil {
		history.Cursor = pagination.EncodeCursor(*next)
	}
	return history, nil
}

func (s *service) emitAdjusted(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, orderID *uuid.UUID, deltaCents, deltaPoints int64, source string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventWalletAdjusted,
		AggregateType: enums.AggregateWallet,
		AggregateID:   wallet.ID,
		Version:       1,
		Data: payloads.WalletAdjustedEvent{
			WalletID:    wallet.ID,
			UserID:      wallet.UserID,
			OrderID:     orderID,
			DeltaCents:  deltaCents,
			DeltaPoints: deltaPoints,
			Source:      source,
		},
	})
}

func parseCursor(raw string) (*pagination.Cursor, error) {
	if raw == "" {
		return nil, nil
	}
	cursor, err := pagination.ParseCursor(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return cursor, nil
}

func lockWallet(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := repo.FindByUserForUpdate(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}
	return ensureWallet(ctx, repo, userID)
}

func ensureWallet(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Wallet, error) {
	created, err := repo.Create(ctx, &models.Wallet{UserID: userID})
	if err == nil {
		return created, nil
	}
	// Another transaction may have created the row first.
	existing, findErr := repo.FindByUserForUpdate(ctx, userID)
	if findErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return existing, nil
}
