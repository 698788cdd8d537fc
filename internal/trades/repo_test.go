package trades

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

func setupTradesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	tradeOrders := `
CREATE TABLE IF NOT EXISTS trade_orders (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  listing_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'requested',
  quantity INTEGER NOT NULL DEFAULT 1,
  unit_price_cents INTEGER NOT NULL DEFAULT 0,
  subtotal_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL DEFAULT 0,
  escrow_payment_id TEXT,
  buyer_note TEXT,
  cancel_reason TEXT,
  accepted_at DATETIME,
  paid_at DATETIME,
  buyer_confirmed_at DATETIME,
  seller_confirmed_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  refunded_at DATETIME,
  settled_at DATETIME,
  dispute_deadline_at DATETIME,
  last_transition_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(tradeOrders).Error)
	return db
}

func createTestOrder(t *testing.T, db *gorm.DB, buyerID, sellerID uuid.UUID, status enums.TradeStatus, created time.Time) *models.TradeOrder {
	t.Helper()

	order := &models.TradeOrder{
		ID:               uuid.New(),
		Code:             "STC-" + uuid.NewString()[:6],
		ListingID:        uuid.New(),
		BuyerID:          buyerID,
		SellerID:         sellerID,
		Status:           status,
		Quantity:         1,
		UnitPriceCents:   10000,
		SubtotalCents:    10000,
		TotalCents:       10000,
		LastTransitionAt: created,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryListFiltersAndPaginates(t *testing.T) {
	db := setupTradesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyer := uuid.New()
	seller := uuid.New()
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	createTestOrder(t, db, buyer, seller, enums.TradeStatusRequested, base)
	createTestOrder(t, db, buyer, seller, enums.TradeStatusAccepted, base.Add(time.Minute))
	createTestOrder(t, db, buyer, seller, enums.TradeStatusCompleted, base.Add(2*time.Minute))
	// An unrelated user's order must never leak into the page.
	createTestOrder(t, db, uuid.New(), uuid.New(), enums.TradeStatusRequested, base.Add(3*time.Minute))

	page, next, err := repo.List(ctx, ListQuery{UserID: buyer, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.Equal(t, enums.TradeStatusCompleted, page[0].Status)
	assert.Equal(t, enums.TradeStatusAccepted, page[1].Status)

	rest, last, err := repo.List(ctx, ListQuery{UserID: buyer, Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, last)
	assert.Equal(t, enums.TradeStatusRequested, rest[0].Status)

	status := enums.TradeStatusAccepted
	filtered, _, err := repo.List(ctx, ListQuery{UserID: buyer, Status: &status, Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, enums.TradeStatusAccepted, filtered[0].Status)

	// The seller sees the same trades from their side.
	sellerPage, _, err := repo.List(ctx, ListQuery{UserID: seller, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, sellerPage, 3)
}

func TestRepositoryListStaleCandidates(t *testing.T) {
	db := setupTradesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyer := uuid.New()
	seller := uuid.New()
	cutoff := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	stale := createTestOrder(t, db, buyer, seller, enums.TradeStatusRequested, cutoff.Add(-2*time.Hour))
	fresh := createTestOrder(t, db, buyer, seller, enums.TradeStatusAccepted, cutoff.Add(time.Hour))
	// Terminal rows are never stale candidates regardless of age.
	done := createTestOrder(t, db, buyer, seller, enums.TradeStatusCompleted, cutoff.Add(-3*time.Hour))

	ids, err := repo.ListStaleCandidates(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, stale.ID, ids[0])
	assert.NotContains(t, ids, fresh.ID)
	assert.NotContains(t, ids, done.ID)
}

func TestRepositoryUpdateWritesOnlyGivenColumns(t *testing.T) {
	db := setupTradesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	order := createTestOrder(t, db, uuid.New(), uuid.New(), enums.TradeStatusRequested, created)

	accepted := created.Add(time.Minute)
	err := repo.Update(ctx, order.ID, map[string]any{
		"status":             enums.TradeStatusAccepted,
		"accepted_at":        accepted,
		"last_transition_at": accepted,
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TradeStatusAccepted, got.Status)
	require.NotNil(t, got.AcceptedAt)
	assert.True(t, got.AcceptedAt.Equal(accepted))
	assert.Equal(t, order.Code, got.Code)
	assert.Equal(t, int64(10000), got.TotalCents)
}
