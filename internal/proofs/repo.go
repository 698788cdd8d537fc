package proofs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// Repository persists delivery proofs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, proof *models.DeliveryProof) (*models.DeliveryProof, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryProof, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryProof, error)
	CountByOrderAndAuthor(ctx context.Context, orderID, authorID uuid.UUID) (int64, error)
	UpdateReview(ctx context.Context, id uuid.UUID, status enums.ProofStatus, reviewerID uuid.UUID, reviewedAt time.Time) error
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

func (r *repository) Create(ctx context.Context, proof *models.DeliveryProof) (*models.DeliveryProof, error) {
	if err := r.db.WithContext(ctx).Create(proof).Error; err != nil {
		return nil, err
	}
	return proof, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryProof, error) {
	var proof models.DeliveryProof
	if err := r.db.WithContext(ctx).First(&proof, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &proof, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryProof, error) {
	var proofs []models.DeliveryProof
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&proofs).Error
	if err != nil {
		return nil, err
	}
	return proofs, nil
}

// CountByOrderAndAuthor counts proofs regardless of review status; the
// seller-confirm gate requires upload, not acceptance.
func (r *repository) CountByOrderAndAuthor(ctx context.Context, orderID, authorID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryProof{}).
		Where("order_id = ? AND author_id = ?", orderID, authorID).
		Count(&count).Error
	return count, err
}

func (r *repository) UpdateReview(ctx context.Context, id uuid.UUID, status enums.ProofStatus, reviewerID uuid.UUID, reviewedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryProof{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"reviewed_by": reviewerID,
			"reviewed_at": reviewedAt,
		}).Error
}
