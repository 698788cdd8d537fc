package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/pagination"
)

// Repository defines persistence operations for wallets and their ledgers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Create(ctx context.Context, wallet *models.Wallet) (*models.Wallet, error)
	UpdateBalances(ctx context.Context, walletID uuid.UUID, points, credit int64) error
	AddLifetimePoints(ctx context.Context, walletID uuid.UUID, points int64) error
	InsertPointsEntry(ctx context.Context, entry *models.PointsLedgerEntry) error
	InsertCreditEntry(ctx context.Context, entry *models.CreditLedgerEntry) error
	ListPointsEntries(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PointsLedgerEntry, *pagination.Cursor, error)
	ListCreditEntries(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.CreditLedgerEntry, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallet repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// FindByUserForUpdate locks the wallet row for the duration of the enclosing
// transaction so concurrent balance movements serialize.
func (r *repository) FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) Create(ctx context.Context, wallet *models.Wallet) (*models.Wallet, error) {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return nil, err
	}
	return wallet, nil
}

func (r *repository) UpdateBalances(ctx context.Context, walletID uuid.UUID, points, credit int64) error {
	if points < 0 || credit < 0 {
		return errors.New("balances cannot go negative")
	}
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"points_balance":       points,
			"credit_balance_cents": credit,
		}).Error
}

func (r *repository) AddLifetimePoints(ctx context.Context, walletID uuid.UUID, points int64) error {
	if points <= 0 {
		return errors.New("lifetime points increment must be positive")
	}
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("lifetime_points_earned", gorm.Expr("lifetime_points_earned + ?", points)).Error
}

func (r *repository) InsertPointsEntry(ctx context.Context, entry *models.PointsLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) InsertCreditEntry(ctx context.Context, entry *models.CreditLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListPointsEntries(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PointsLedgerEntry, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Model(&models.PointsLedgerEntry{}).
		Where("wallet_id = ?", walletID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.PointsLedgerEntry
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

func (r *repository) ListCreditEntries(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.CreditLedgerEntry, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Model(&models.CreditLedgerEntry{}).
		Where("wallet_id = ?", walletID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.CreditLedgerEntry
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}
