package trades

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	"github.com/safetradehq/safetrade-backend/pkg/pagination"
)

// ListQuery filters a trade order page. UserID matches either side of
// the trade.
type ListQuery struct {
	UserID uuid.UUID
	Status *enums.TradeStatus
	Limit  int
	Cursor *pagination.Cursor
}

// Repository persists trade orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.TradeOrder) (*models.TradeOrder, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.TradeOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.TradeOrder, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	List(ctx context.Context, query ListQuery) ([]models.TradeOrder, *pagination.Cursor, error)
	ListStaleCandidates(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.TradeOrder) (*models.TradeOrder, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TradeOrder, error) {
	var order models.TradeOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.TradeOrder, error) {
	var order models.TradeOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.TradeOrder{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.TradeOrder, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(query.Limit)

	tx := r.db.WithContext(ctx).
		Model(&models.TradeOrder{}).
		Where("buyer_id = ? OR seller_id = ?", query.UserID, query.UserID)
	if query.Status != nil {
		tx = tx.Where("status = ?", *query.Status)
	}
	if query.Cursor != nil {
		tx = tx.Where("(created_at, id) < (?, ?)", query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var orders []models.TradeOrder
	err := tx.Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&orders).Error
	if err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return orders, next, nil
}

// ListStaleCandidates returns ids of active orders whose last transition
// predates cutoff. Candidates are re-checked under a row lock before
// cancellation, so a stale read here is harmless.
func (r *repository) ListStaleCandidates(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	staleable := []enums.TradeStatus{
		enums.TradeStatusRequested,
		enums.TradeStatusAccepted,
		enums.TradeStatusPaidEscrow,
		enums.TradeStatusDelivered,
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.TradeOrder{}).
		Where("status IN ? AND last_transition_at < ?", staleable, cutoff).
		Order("last_transition_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
