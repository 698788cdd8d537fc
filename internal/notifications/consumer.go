package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/idempotency"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/payloads"
)

const tradeNotificationConsumer = "trade-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type dedupStore interface {
	ClaimNotification(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
}

// Consumer turns trade lifecycle events into in-app notifications for
// the party that did not act.
type Consumer struct {
	repo        repository
	subscriber  *pubsub.Subscriber
	idempotency *idempotency.Manager
	dedup       dedupStore
	dedupTTL    time.Duration
	logg        *logger.Logger
}

// NewConsumer builds a trade notification consumer.
func NewConsumer(repo repository, subscriber *pubsub.Subscriber, manager *idempotency.Manager, dedup dedupStore, dedupTTL time.Duration, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscriber == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if dedup == nil {
		return nil, fmt.Errorf("dedup store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if dedupTTL <= 0 {
		dedupTTL = 2 * time.Second
	}
	return &Consumer{
		repo:        repo,
		subscriber:  subscriber,
		idempotency: manager,
		dedup:       dedup,
		dedupTTL:    dedupTTL,
		logg:        logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, tradeNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	drafts, err := c.draft(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, tradeNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	if len(drafts) == 0 {
		c.logg.Info(logCtx, "event type not handled")
		return processResult{ack: true}
	}

	for _, draft := range drafts {
		if err := c.deliver(ctx, draft, logCtx); err != nil {
			c.logg.Error(logCtx, "notification handling failed", err)
			_ = c.idempotency.Delete(ctx, tradeNotificationConsumer, eventID)
			return processResult{nack: true}
		}
	}
	return processResult{ack: true}
}

// deliver writes one notification unless an identical one was created
// inside the dedup window. Bursts of replayed events collapse into a
// single row per fingerprint.
func (c *Consumer) deliver(ctx context.Context, draft *models.Notification, logCtx context.Context) error {
	fingerprint := fmt.Sprintf("%s:%s:%s", draft.UserID, draft.Type, draft.Title)
	claimed, err := c.dedup.ClaimNotification(ctx, fingerprint, c.dedupTTL)
	if err != nil {
		return err
	}
	if !claimed {
		c.logg.Info(logCtx, "duplicate notification suppressed")
		return nil
	}
	if err := c.repo.Create(ctx, draft); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithUserID(logCtx, draft.UserID.String()), "notification created")
	return nil
}

// draft maps one domain event to the notifications it produces. Unknown
// event types map to nothing and are acked.
func (c *Consumer) draft(eventType enums.OutboxEventType, data json.RawMessage) ([]*models.Notification, error) {
	switch eventType {
	case enums.EventTradeRequested:
		var p payloads.TradeRequestedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(p.SellerID, enums.NotificationTypeTrade,
			"New trade request",
			fmt.Sprintf("You received a trade request for order %s.", p.OrderCode),
			tradeLink(p.OrderID))}, nil
	case enums.EventTradeAccepted:
		var p payloads.TradeDecisionEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(p.BuyerID, enums.NotificationTypeTrade,
			"Trade accepted",
			fmt.Sprintf("The seller accepted order %s. You can fund escrow now.", p.OrderCode),
			tradeLink(p.OrderID))}, nil
	case enums.EventTradeDeclined:
		var p payloads.TradeDecisionEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(p.BuyerID, enums.NotificationTypeTrade,
			"Trade declined",
			fmt.Sprintf("The seller declined order %s.", p.OrderCode),
			tradeLink(p.OrderID))}, nil
	case enums.EventTradeFunded:
		var p payloads.TradeFundedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(p.SellerID, enums.NotificationTypeTrade,
			"Escrow funded",
			fmt.Sprintf("Order %s is funded. Deliver and upload proof to get paid.", p.OrderCode),
			tradeLink(p.OrderID))}, nil
	case enums.EventTradeConfirmed:
		var p payloads.TradeConfirmedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(p.ByUserID, enums.NotificationTypeTrade,
			"Confirmation recorded",
			fmt.Sprintf("Your confirmation for order %s was recorded.", p.OrderCode),
			tradeLink(p.OrderID))}, nil
	case enums.EventTradeCompleted:
		var p payloads.TradeCompletedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{
			notify(p.SellerID, enums.NotificationTypeTrade,
				"Trade completed",
				fmt.Sprintf("Order %s completed. %s was credited to your wallet.", p.OrderCode, formatCents(p.SellerCents)),
				tradeLink(p.OrderID)),
			notify(p.BuyerID, enums.NotificationTypeTrade,
				"Trade completed",
				fmt.Sprintf("Order %s is complete. Thanks for trading safely.", p.OrderCode),
				tradeLink(p.OrderID)),
		}, nil
	case enums.EventTradeCancelled:
		var p payloads.TradeCancelledEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("Order %s was cancelled.", p.OrderCode)
		if p.Reason != "" {
			message = fmt.Sprintf("Order %s was cancelled: %s", p.OrderCode, p.Reason)
		}
		return []*models.Notification{
			notify(p.BuyerID, enums.NotificationTypeTrade, "Trade cancelled", message, tradeLink(p.OrderID)),
			notify(p.SellerID, enums.NotificationTypeTrade, "Trade cancelled", message, tradeLink(p.OrderID)),
		}, nil
	case enums.EventTradeRefunded:
		var p payloads.TradeRefundedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(p.BuyerID, enums.NotificationTypeTrade,
			"Refund issued",
			fmt.Sprintf("%s from order %s is on its way back to you.", formatCents(p.AmountCents), p.OrderCode),
			tradeLink(p.OrderID))}, nil
	case enums.EventProofSubmitted:
		var p payloads.ProofSubmittedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(p.CounterpartyID, enums.NotificationTypeProof,
			"Delivery proof uploaded",
			fmt.Sprintf("A %s proof was uploaded on order %s.", p.Kind, p.OrderCode),
			tradeLink(p.OrderID))}, nil
	case enums.EventProofAccepted:
		var p payloads.ProofReviewedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(p.AuthorID, enums.NotificationTypeProof,
			"Proof reviewed",
			fmt.Sprintf("Your delivery proof on order %s was %s.", p.OrderCode, p.Status),
			tradeLink(p.OrderID))}, nil
	case enums.EventDisputeOpened:
		var p payloads.DisputeOpenedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(p.CounterpartyID, enums.NotificationTypeDispute,
			"Dispute opened",
			fmt.Sprintf("A dispute was opened on order %s. The trade is frozen until staff resolve it.", p.OrderCode),
			tradeLink(p.OrderID))}, nil
	case enums.EventDisputeResolved:
		var p payloads.DisputeResolvedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("The dispute on order %s was resolved: %s.", p.OrderCode, p.Decision)
		return []*models.Notification{
			notify(p.BuyerID, enums.NotificationTypeDispute, "Dispute resolved", message, tradeLink(p.OrderID)),
			notify(p.SellerID, enums.NotificationTypeDispute, "Dispute resolved", message, tradeLink(p.OrderID)),
		}, nil
	default:
		return nil, nil
	}
}

func notify(userID uuid.UUID, kind enums.NotificationType, title, message string, link *string) *models.Notification {
	return &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    link,
	}
}

func tradeLink(orderID uuid.UUID) *string {
	link := fmt.Sprintf("/trades/%s", orderID)
	return &link
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
