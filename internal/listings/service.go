package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/pagination"
)

// Service exposes the listing catalogue operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Listing, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Archive(ctx context.Context, sellerID, id uuid.UUID) error
}

// CreateInput captures the fields a seller supplies for a new listing.
type CreateInput struct {
	SellerID    uuid.UUID
	Title       string
	Description *string
	PriceCents  int64
	OneTime     bool
}

// ListParams controls listing pages.
type ListParams struct {
	SellerID   *uuid.UUID
	ActiveOnly bool
	Limit      int
	Cursor     string
}

// ListResult wraps a listing page with its next cursor.
type ListResult struct {
	Items  []models.Listing `json:"items"`
	Cursor string           `json:"cursor,omitempty"`
}

type service struct {
	repo Repository
}

// NewService builds a listings service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Listing, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	listing := &models.Listing{
		SellerID:    input.SellerID,
		Title:       title,
		Description: input.Description,
		PriceCents:  input.PriceCents,
		OneTime:     input.OneTime,
		IsActive:    true,
	}
	created, err := s.repo.Create(ctx, listing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListQuery{
		SellerID:   params.SellerID,
		ActiveOnly: params.ActiveOnly,
		Limit:      params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}

	result := &ListResult{Items: rows}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Archive(ctx context.Context, sellerID, id uuid.UUID) error {
	if sellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	listing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if listing.SellerID != sellerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "listing does not belong to seller")
	}
	if !listing.IsActive {
		return nil
	}
	updates := map[string]any{
		"is_active":   false,
		"archived_at": time.Now().UTC(),
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive listing")
	}
	return nil
}
