package disputes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/internal/trades"
	"github.com/safetradehq/safetrade-backend/pkg/config"
	"github.com/safetradehq/safetrade-backend/pkg/db"
	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/escrow"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/payloads"
)

const escrowCurrency = "USD"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type buyerLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type settler interface {
	Settle(ctx context.Context, tx *gorm.DB, order *models.TradeOrder, buyer *models.User) (*models.Purchase, error)
}

// Service freezes contested trades and applies staff decisions.
type Service interface {
	Open(ctx context.Context, input OpenInput) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	Get(ctx context.Context, input GetInput) (*models.Dispute, error)
	ListOpen(ctx context.Context, limit int) ([]models.Dispute, error)
}

// OpenInput raises a dispute against a funded trade.
type OpenInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  string
}

// ResolveInput applies a staff decision to an open dispute.
type ResolveInput struct {
	DisputeID   uuid.UUID
	ResolvedBy  uuid.UUID
	Decision    enums.DisputeDecision
	RefundCents *int64
	Note        *string
}

// GetInput fetches a dispute. Admin bypasses the party check.
type GetInput struct {
	DisputeID   uuid.UUID
	RequesterID uuid.UUID
	Admin       bool
}

type service struct {
	repo       Repository
	orders     trades.Repository
	buyers     buyerLoader
	settlement settler
	escrow     escrow.Provider
	tx         txRunner
	outbox     outboxPublisher
	cfg        config.TradeConfig
	now        func() time.Time
}

// NewService builds a disputes service with the required dependencies.
func NewService(
	repo Repository,
	orders trades.Repository,
	buyers buyerLoader,
	settlement settler,
	provider escrow.Provider,
	tx txRunner,
	outboxSvc outboxPublisher,
	cfg config.TradeConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("disputes repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("trades repository required")
	}
	if buyers == nil {
		return nil, fmt.Errorf("buyer loader required")
	}
	if settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if provider == nil {
		return nil, fmt.Errorf("escrow provider required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:       repo,
		orders:     orders,
		buyers:     buyers,
		settlement: settlement,
		escrow:     provider,
		tx:         tx,
		outbox:     outboxSvc,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Open(ctx context.Context, input OpenInput) (*models.Dispute, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}

	var created *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.ActorID != order.BuyerID && input.ActorID != order.SellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this trade")
		}
		// Completed trades are final. A dispute attempt here is a
		// recorded inconsistency, not a valid transition.
		if order.Status != enums.TradeStatusPaidEscrow && order.Status != enums.TradeStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot dispute an order in status %s", order.Status))
		}
		now := s.now()
		// An order idle past the inactivity cutoff is already bound
		// for cancellation; the next read materializes it.
		if now.Sub(order.LastTransitionAt) > s.cfg.StaleTTL {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order expired due to inactivity")
		}
		if order.DisputeDeadlineAt == nil || !now.Before(*order.DisputeDeadlineAt) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute window has closed")
		}

		dispute := &models.Dispute{
			OrderID:          order.ID,
			OpenedByID:       input.ActorID,
			Status:           enums.DisputeStatusOpen,
			Reason:           input.Reason,
			PriorOrderStatus: order.Status,
		}
		created, err = s.repo.WithTx(tx).Create(ctx, dispute)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "a dispute is already open for this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}

		err = ordersRepo.Update(ctx, order.ID, map[string]any{
			"status":             enums.TradeStatusDisputeOpen,
			"last_transition_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "freeze order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisputeOpened,
			AggregateType: enums.AggregateDispute,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data: payloads.DisputeOpenedEvent{
				OrderID:        order.ID,
				OrderCode:      order.Code,
				DisputeID:      created.ID,
				OpenedByID:     input.ActorID,
				CounterpartyID: disputeCounterparty(order, input.ActorID),
				Reason:         input.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dispute decision")
	}

	var resolved *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := repo.FindByID(ctx, input.DisputeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
		}
		if dispute.Status != enums.DisputeStatusOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute already resolved")
		}

		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindByIDForUpdate(ctx, dispute.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.TradeStatusDisputeOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order left dispute state unexpectedly: %s", order.Status))
		}

		var refundCents int64
		switch input.Decision {
		case enums.DisputeDecisionRefundBuyer:
			refundCents = order.TotalCents
			if err := s.refundBuyer(ctx, tx, ordersRepo, dispute, order, refundCents); err != nil {
				return err
			}
		case enums.DisputeDecisionPartialRefund:
			if input.RefundCents == nil || *input.RefundCents <= 0 || *input.RefundCents >= order.TotalCents {
				return pkgerrors.New(pkgerrors.CodeValidation, "partial refund requires an amount below the order total")
			}
			refundCents = *input.RefundCents
			if err := s.partialRefund(ctx, tx, ordersRepo, dispute, order, refundCents); err != nil {
				return err
			}
		case enums.DisputeDecisionReleaseSeller:
			if err := s.releaseSeller(ctx, tx, ordersRepo, order); err != nil {
				return err
			}
		}

		now := s.now()
		updates := map[string]any{
			"status":         enums.DisputeStatusResolved,
			"decision":       input.Decision,
			"refund_cents":   refundCents,
			"resolved_by_id": input.ResolvedBy,
			"resolved_at":    now,
		}
		if input.Note != nil {
			updates["resolution_note"] = *input.Note
		}
		if err := repo.Update(ctx, dispute.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update dispute")
		}
		dispute.Status = enums.DisputeStatusResolved
		dispute.Decision = &input.Decision
		dispute.RefundCents = &refundCents
		dispute.ResolutionNote = input.Note
		dispute.ResolvedByID = &input.ResolvedBy
		dispute.ResolvedAt = &now

		resolved = dispute
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisputeResolved,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ResolvedBy, Role: "admin"},
			Data: payloads.DisputeResolvedEvent{
				OrderID:     order.ID,
				OrderCode:   order.Code,
				DisputeID:   dispute.ID,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				Decision:    input.Decision,
				RefundCents: refundCents,
				ResolvedAt:  now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// refundBuyer returns the full hold to the buyer and closes the order
// as REFUNDED. No settlement occurs.
func (s *service) refundBuyer(ctx context.Context, tx *gorm.DB, ordersRepo trades.Repository, dispute *models.Dispute, order *models.TradeOrder, amountCents int64) error {
	if err := s.providerRefund(ctx, dispute, order, amountCents); err != nil {
		return err
	}
	now := s.now()
	err := ordersRepo.Update(ctx, order.ID, map[string]any{
		"status":             enums.TradeStatusRefunded,
		"refunded_at":        now,
		"last_transition_at": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	order.Status = enums.TradeStatusRefunded
	order.RefundedAt = &now
	order.LastTransitionAt = now
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTradeRefunded,
		AggregateType: enums.AggregateTradeOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.TradeRefundedEvent{
			OrderID:     order.ID,
			OrderCode:   order.Code,
			BuyerID:     order.BuyerID,
			AmountCents: amountCents,
			RefundedAt:  now,
		},
	})
}

// partialRefund returns part of the hold, then releases and settles the
// remainder as a completed trade.
func (s *service) partialRefund(ctx context.Context, tx *gorm.DB, ordersRepo trades.Repository, dispute *models.Dispute, order *models.TradeOrder, refundCents int64) error {
	if err := s.providerRefund(ctx, dispute, order, refundCents); err != nil {
		return err
	}
	// Settlement splits only the money the seller actually keeps.
	remainder := *order
	remainder.TotalCents = order.TotalCents - refundCents
	remainder.SubtotalCents = remainder.TotalCents
	if err := s.completeOrder(ctx, tx, ordersRepo, order, &remainder); err != nil {
		return err
	}
	now := s.now()
	if err := ordersRepo.Update(ctx, order.ID, map[string]any{"refunded_at": now}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	order.RefundedAt = &now
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTradeRefunded,
		AggregateType: enums.AggregateTradeOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.TradeRefundedEvent{
			OrderID:     order.ID,
			OrderCode:   order.Code,
			BuyerID:     order.BuyerID,
			AmountCents: refundCents,
			RefundedAt:  now,
		},
	})
}

// releaseSeller pays the full hold out to the seller and completes the
// trade with a normal settlement.
func (s *service) releaseSeller(ctx context.Context, tx *gorm.DB, ordersRepo trades.Repository, order *models.TradeOrder) error {
	return s.completeOrder(ctx, tx, ordersRepo, order, order)
}

// completeOrder releases the hold, settles settleAs (which may carry a
// reduced total after a partial refund) and marks the order COMPLETED.
func (s *service) completeOrder(ctx context.Context, tx *gorm.DB, ordersRepo trades.Repository, order *models.TradeOrder, settleAs *models.TradeOrder) error {
	buyer, err := s.buyers.Get(ctx, order.BuyerID)
	if err != nil {
		return err
	}
	purchase, err := s.settlement.Settle(ctx, tx, settleAs, buyer)
	if err != nil {
		return err
	}
	paymentID := ""
	if order.EscrowPaymentID != nil {
		paymentID = *order.EscrowPaymentID
	}
	if err := s.escrow.Release(ctx, paymentID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release escrow")
	}

	now := s.now()
	err = ordersRepo.Update(ctx, order.ID, map[string]any{
		"status":             enums.TradeStatusCompleted,
		"completed_at":       now,
		"settled_at":         now,
		"last_transition_at": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	order.Status = enums.TradeStatusCompleted
	order.CompletedAt = &now
	order.SettledAt = &now
	order.LastTransitionAt = now

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTradeCompleted,
		AggregateType: enums.AggregateTradeOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.TradeCompletedEvent{
			OrderID:          order.ID,
			OrderCode:        order.Code,
			BuyerID:          order.BuyerID,
			SellerID:         order.SellerID,
			ReferrerID:       purchase.ReferrerID,
			TotalCents:       purchase.TotalCents,
			OwnerCutCents:    purchase.OwnerCutCents,
			ReferrerCutCents: purchase.ReferrerCutCents,
			SellerCents:      purchase.SellerCents,
			CompletedAt:      now,
		},
	})
}

func (s *service) providerRefund(ctx context.Context, dispute *models.Dispute, order *models.TradeOrder, amountCents int64) error {
	if order.EscrowPaymentID == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "disputed order has no escrow payment")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.EscrowCallTimeout)
	defer cancel()
	err := s.escrow.Refund(callCtx, escrow.RefundParams{
		PaymentID:      *order.EscrowPaymentID,
		AmountCents:    amountCents,
		Currency:       escrowCurrency,
		Reason:         "dispute resolution",
		IdempotencyKey: dispute.ID.String(),
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "escrow refund failed")
	}
	return nil
}

func (s *service) Get(ctx context.Context, input GetInput) (*models.Dispute, error) {
	dispute, err := s.repo.FindByID(ctx, input.DisputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	if input.Admin {
		return dispute, nil
	}
	order, err := s.orders.FindByID(ctx, dispute.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if input.RequesterID != order.BuyerID && input.RequesterID != order.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this trade")
	}
	return dispute, nil
}

func (s *service) ListOpen(ctx context.Context, limit int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	disputes, err := s.repo.ListOpen(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	return disputes, nil
}

func disputeCounterparty(order *models.TradeOrder, userID uuid.UUID) uuid.UUID {
	if userID == order.BuyerID {
		return order.SellerID
	}
	return order.BuyerID
}
