package trades

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
	"github.com/safetradehq/safetrade-backend/pkg/escrow"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/idempotency"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/payloads"
)

const refundConsumer = "escrow-refunds"

type refundMarker interface {
	MarkRefunded(ctx context.Context, orderID uuid.UUID) error
}

// RefundConsumer returns escrowed money to buyers whose funded trades
// were cancelled. The provider call runs on an idempotency key derived
// from the order, so redeliveries cannot double-refund.
type RefundConsumer struct {
	trades      refundMarker
	escrow      escrow.Provider
	subscriber  *pubsub.Subscriber
	idempotency *idempotency.Manager
	logg        *logger.Logger
}

// NewRefundConsumer builds the cancelled-trade refund consumer.
func NewRefundConsumer(trades refundMarker, provider escrow.Provider, subscriber *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*RefundConsumer, error) {
	if trades == nil {
		return nil, fmt.Errorf("trades service required")
	}
	if provider == nil {
		return nil, fmt.Errorf("escrow provider required")
	}
	if subscriber == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &RefundConsumer{
		trades:      trades,
		escrow:      provider,
		subscriber:  subscriber,
		idempotency: manager,
		logg:        logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *RefundConsumer) Run(ctx context.Context) error {
	return c.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *RefundConsumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventTradeCancelled) {
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}

	var payload payloads.TradeCancelledEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return true
	}
	// Unfunded cancellations carry no hold to return.
	if payload.EscrowPaymentID == nil || *payload.EscrowPaymentID == "" {
		return true
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, refundConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		return true
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"order_id":     payload.OrderID.String(),
		"order_code":   payload.OrderCode,
		"amount_cents": payload.AmountCents,
	})
	err = c.escrow.Refund(ctx, escrow.RefundParams{
		PaymentID:      *payload.EscrowPaymentID,
		AmountCents:    payload.AmountCents,
		Currency:       "USD",
		Reason:         "trade cancelled",
		IdempotencyKey: payload.OrderID.String(),
	})
	if err != nil {
		c.logg.Error(logCtx, "provider refund failed", err)
		_ = c.idempotency.Delete(ctx, refundConsumer, eventID)
		return false
	}

	if err := c.trades.MarkRefunded(ctx, payload.OrderID); err != nil {
		c.logg.Error(logCtx, "failed to record refund", err)
		_ = c.idempotency.Delete(ctx, refundConsumer, eventID)
		return false
	}
	c.logg.Info(logCtx, "escrow refund issued")
	return true
}
