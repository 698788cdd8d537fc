package outbox

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	// The uuid default mirrors gen_random_uuid() closely enough for
	// rows inserted without an explicit id.
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(
    hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-4' ||
    substr(hex(randomblob(2)), 2) || '-a' || substr(hex(randomblob(2)), 2) ||
    '-' || hex(randomblob(6)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(outboxEvents).Error)
	return db
}

func testOutboxService(t *testing.T, db *gorm.DB) (*Service, *Repository) {
	t.Helper()
	logg := logger.New(logger.Options{
		ServiceName: "outbox-test",
		Output:      io.Discard,
	})
	repo := NewRepository(db)
	return NewService(repo, logg), repo
}

func countOutboxEvents(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	return count
}

func TestEmitWritesEnvelopeRow(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc, _ := testOutboxService(t, db)
	aggregateID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventTradeRequested,
			AggregateType: enums.AggregateTradeOrder,
			AggregateID:   aggregateID,
			Version:       1,
			Data:          map[string]string{"order_code": "STC-AB23CD"},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.Where("aggregate_id = ?", aggregateID).First(&row).Error)
	assert.Equal(t, enums.EventTradeRequested, row.EventType)
	assert.Equal(t, enums.AggregateTradeOrder, row.AggregateType)
	assert.Nil(t, row.PublishedAt)
	assert.NotEmpty(t, row.Payload)
}

func TestExistsTxDistinguishesAggregates(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc, repo := testOutboxService(t, db)
	aggregateID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventTradeCancelled,
			AggregateType: enums.AggregateTradeOrder,
			AggregateID:   aggregateID,
			Version:       1,
			Data:          map[string]string{"reason": "auto-cancelled after inactivity"},
		})
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		exists, err := repo.ExistsTx(tx, enums.EventTradeCancelled, enums.AggregateTradeOrder, aggregateID)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsTx(tx, enums.EventTradeCompleted, enums.AggregateTradeOrder, aggregateID)
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = repo.ExistsTx(tx, enums.EventTradeCancelled, enums.AggregateTradeOrder, uuid.New())
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.ExistsTx(nil, enums.EventTradeCancelled, enums.AggregateTradeOrder, aggregateID)
	assert.Error(t, err)
}

func TestEmitIfNotExistsSkipsDuplicate(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc, _ := testOutboxService(t, db)
	aggregateID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventTradeRefunded,
		AggregateType: enums.AggregateTradeOrder,
		AggregateID:   aggregateID,
		Version:       1,
		Data:          map[string]int64{"amount_cents": 10000},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.EmitIfNotExists(context.Background(), tx, event)
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countOutboxEvents(t, db))

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.EmitIfNotExists(context.Background(), tx, event)
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countOutboxEvents(t, db))
}
