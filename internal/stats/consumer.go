package stats

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/idempotency"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/payloads"
)

const sellerStatsConsumer = "seller-stats"

// Consumer recomputes seller rollups when settlements and proof
// reviews land.
type Consumer struct {
	svc         Service
	subscriber  *pubsub.Subscriber
	idempotency *idempotency.Manager
	logg        *logger.Logger
}

// NewConsumer builds a seller stats consumer.
func NewConsumer(svc Service, subscriber *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if svc == nil {
		return nil, fmt.Errorf("stats service required")
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
	return &Consumer{
		svc:         svc,
		subscriber:  subscriber,
		idempotency: manager,
		logg:        logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}

	sellerID, err := sellerFromEvent(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return true
	}
	if sellerID == uuid.Nil {
		return true
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}
	already, err := c.idempotency.CheckAndMarkProcessed(ctx, sellerStatsConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		return true
	}

	if _, err := c.svc.Recompute(ctx, sellerID); err != nil {
		c.logg.Error(logCtx, "stats recompute failed", err)
		_ = c.idempotency.Delete(ctx, sellerStatsConsumer, eventID)
		return false
	}
	c.logg.Info(c.logg.WithUserID(logCtx, sellerID.String()), "seller stats recomputed")
	return true
}

func sellerFromEvent(eventType enums.OutboxEventType, data json.RawMessage) (uuid.UUID, error) {
	switch eventType {
	case enums.EventTradeCompleted:
		var p payloads.TradeCompletedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return uuid.Nil, err
		}
		return p.SellerID, nil
	case enums.EventProofAccepted:
		var p payloads.ProofReviewedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return uuid.Nil, err
		}
		return p.AuthorID, nil
	default:
		return uuid.Nil, nil
	}
}
