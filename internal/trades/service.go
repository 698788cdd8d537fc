package trades

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/internal/listings"
	"github.com/safetradehq/safetrade-backend/internal/settlement"
	"github.com/safetradehq/safetrade-backend/pkg/config"
	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/escrow"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/payloads"
	"github.com/safetradehq/safetrade-backend/pkg/pagination"
)

const escrowCurrency = "USD"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	IsSetupComplete(ctx context.Context, id uuid.UUID) (bool, error)
}

type proofGate interface {
	CountByOrderAndAuthor(ctx context.Context, orderID, authorID uuid.UUID) (int64, error)
}

type settler interface {
	Settle(ctx context.Context, tx *gorm.DB, order *models.TradeOrder, buyer *models.User) (*models.Purchase, error)
}

// Service drives the trade order lifecycle.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.TradeOrder, error)
	Decide(ctx context.Context, input DecisionInput) (*models.TradeOrder, error)
	Cancel(ctx context.Context, input CancelInput) (*models.TradeOrder, error)
	Pay(ctx context.Context, input PayInput) (*models.TradeOrder, error)
	Confirm(ctx context.Context, input ConfirmInput) (*models.TradeOrder, error)
	Get(ctx context.Context, input GetInput) (*models.TradeOrder, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	SweepStale(ctx context.Context, batchSize int) (int, error)
	MarkRefunded(ctx context.Context, orderID uuid.UUID) error
}

// RequestInput opens a trade against a listing. Quantity defaults to
// one when unset.
type RequestInput struct {
	BuyerID   uuid.UUID
	ListingID uuid.UUID
	Quantity  int64
	Note      *string
}

// DecisionInput records the seller's accept or decline.
type DecisionInput struct {
	OrderID  uuid.UUID
	SellerID uuid.UUID
	Accept   bool
	Reason   *string
}

// CancelInput withdraws an unfunded trade.
type CancelInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  *string
}

// PayInput funds escrow for an accepted trade.
type PayInput struct {
	OrderID  uuid.UUID
	BuyerID  uuid.UUID
	SourceID string
}

// ConfirmInput records one party's exchange confirmation.
type ConfirmInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}

// GetInput fetches one order. Admin bypasses the party check.
type GetInput struct {
	OrderID     uuid.UUID
	RequesterID uuid.UUID
	Admin       bool
}

// ListInput pages a user's trades.
type ListInput struct {
	UserID uuid.UUID
	Status *enums.TradeStatus
	Limit  int
	Cursor string
}

// ListResult wraps a trade page with its next cursor.
type ListResult struct {
	Items  []models.TradeOrder `json:"items"`
	Cursor string              `json:"cursor,omitempty"`
}

type service struct {
	repo       Repository
	listings   listings.Repository
	users      userLoader
	proofs     proofGate
	settlement settler
	escrow     escrow.Provider
	tx         txRunner
	outbox     outboxPublisher
	cfg        config.TradeConfig
	now        func() time.Time
}

// NewService builds a trades service with the required dependencies.
func NewService(
	repo Repository,
	listingsRepo listings.Repository,
	users userLoader,
	proofs proofGate,
	settlementSvc settler,
	provider escrow.Provider,
	tx txRunner,
	outboxSvc outboxPublisher,
	cfg config.TradeConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("trades repository required")
	}
	if listingsRepo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if proofs == nil {
		return nil, fmt.Errorf("proof gate required")
	}
	if settlementSvc == nil {
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
		listings:   listingsRepo,
		users:      users,
		proofs:     proofs,
		settlement: settlementSvc,
		escrow:     provider,
		tx:         tx,
		outbox:     outboxSvc,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.TradeOrder, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	buyer, err := s.users.Get(ctx, input.BuyerID)
	if err != nil {
		return nil, err
	}

	listing, err := s.listings.FindByID(ctx, input.ListingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if !listing.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if listing.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot trade with yourself")
	}

	code, err := NewTradeCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate trade code")
	}

	total := listing.PriceCents * quantity
	// Fee recorded here is an estimate from the buyer's current VIP and
	// referrer state; settlement rewrites it with the final split.
	estimate := settlement.Compute(total, buyer.ReferredByID, buyer.VIPActive(s.now()))

	var created *models.TradeOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order := &models.TradeOrder{
			Code:             code,
			ListingID:        listing.ID,
			BuyerID:          input.BuyerID,
			SellerID:         listing.SellerID,
			Status:           enums.TradeStatusRequested,
			Quantity:         quantity,
			UnitPriceCents:   listing.PriceCents,
			SubtotalCents:    total,
			TotalCents:       total,
			PlatformFeeCents: estimate.PlatformFeeCents(),
			BuyerNote:        input.Note,
			LastTransitionAt: s.now(),
		}
		var innerErr error
		created, innerErr = repo.Create(ctx, order)
		if innerErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, innerErr, "create trade order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTradeRequested,
			AggregateType: enums.AggregateTradeOrder,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID},
			Data: payloads.TradeRequestedEvent{
				OrderID:   created.ID,
				OrderCode: created.Code,
				ListingID: listing.ID,
				BuyerID:   created.BuyerID,
				SellerID:  created.SellerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Decide(ctx context.Context, input DecisionInput) (*models.TradeOrder, error) {
	if input.Accept {
		ok, err := s.users.IsSetupComplete(ctx, input.SellerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "seller account setup incomplete")
		}
	}

	var result *models.TradeOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockFresh(ctx, tx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.SellerID != input.SellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller decides a trade request")
		}

		// Replayed decisions are a no-op, not an error.
		if input.Accept && order.Status == enums.TradeStatusAccepted {
			result = order
			return nil
		}
		if !input.Accept && order.Status == enums.TradeStatusDeclined {
			result = order
			return nil
		}
		if order.Status != enums.TradeStatusRequested {
			return stateConflict(order.Status, "decide")
		}

		now := s.now()
		updates := map[string]any{"last_transition_at": now}
		if input.Accept {
			updates["status"] = enums.TradeStatusAccepted
			updates["accepted_at"] = now
			order.Status = enums.TradeStatusAccepted
			order.AcceptedAt = &now
		} else {
			updates["status"] = enums.TradeStatusDeclined
			updates["cancelled_at"] = now
			if input.Reason != nil {
				updates["cancel_reason"] = *input.Reason
				order.CancelReason = input.Reason
			}
			order.Status = enums.TradeStatusDeclined
			order.CancelledAt = &now
		}
		order.LastTransitionAt = now
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update trade order")
		}

		if input.Accept {
			if err := s.deactivateOneTimeListing(ctx, tx, order.ListingID); err != nil {
				return err
			}
			result = order
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventTradeAccepted,
				AggregateType: enums.AggregateTradeOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: input.SellerID},
				Data: payloads.TradeDecisionEvent{
					OrderID:   order.ID,
					OrderCode: order.Code,
					BuyerID:   order.BuyerID,
					SellerID:  order.SellerID,
					Status:    order.Status,
				},
			})
		}
		result = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTradeDeclined,
			AggregateType: enums.AggregateTradeOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.SellerID},
			Data: payloads.TradeDecisionEvent{
				OrderID:   order.ID,
				OrderCode: order.Code,
				BuyerID:   order.BuyerID,
				SellerID:  order.SellerID,
				Status:    order.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.TradeOrder, error) {
	var result *models.TradeOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockFresh(ctx, tx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if input.ActorID != order.BuyerID && input.ActorID != order.SellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this trade")
		}
		if order.Status == enums.TradeStatusCancelled {
			result = order
			return nil
		}
		// Only a pending request can be withdrawn. Once the seller has
		// accepted, the buyer either pays or lets the acceptance window
		// lapse; funded trades go through the dispute flow.
		if order.Status != enums.TradeStatusRequested {
			return stateConflict(order.Status, "cancel")
		}

		reason := "cancelled by user"
		if input.Reason != nil && *input.Reason != "" {
			reason = *input.Reason
		}
		if err := s.cancelLocked(ctx, tx, repo, order, reason, &input.ActorID); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Pay(ctx context.Context, input PayInput) (*models.TradeOrder, error) {
	if input.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}

	var result *models.TradeOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockFresh(ctx, tx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer funds escrow")
		}
		if order.Status != enums.TradeStatusAccepted {
			return stateConflict(order.Status, "pay")
		}

		// A fresh display code is issued with every funding attempt.
		code, err := NewTradeCode()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate trade code")
		}

		// Bounded provider call; on timeout the transaction rolls back
		// and the order stays ACCEPTED for the caller to retry. The
		// idempotency key pins retries to the same provider payment.
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.EscrowCallTimeout)
		defer cancel()
		hold, err := s.escrow.Fund(callCtx, escrow.FundParams{
			OrderCode:      code,
			SourceID:       input.SourceID,
			AmountCents:    order.TotalCents,
			Currency:       escrowCurrency,
			IdempotencyKey: order.ID.String(),
		})
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "escrow funding failed")
		}

		now := s.now()
		deadline := now.Add(s.cfg.DisputeWindow)
		updates := map[string]any{
			"code":                code,
			"status":              enums.TradeStatusPaidEscrow,
			"escrow_payment_id":   hold.PaymentID,
			"paid_at":             now,
			"dispute_deadline_at": deadline,
			"last_transition_at":  now,
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update trade order")
		}
		order.Code = code
		order.Status = enums.TradeStatusPaidEscrow
		order.EscrowPaymentID = &hold.PaymentID
		order.PaidAt = &now
		order.DisputeDeadlineAt = &deadline
		order.LastTransitionAt = now

		result = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTradeFunded,
			AggregateType: enums.AggregateTradeOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID},
			Data: payloads.TradeFundedEvent{
				OrderID:         order.ID,
				OrderCode:       order.Code,
				BuyerID:         order.BuyerID,
				SellerID:        order.SellerID,
				EscrowPaymentID: hold.PaymentID,
				AmountCents:     order.TotalCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*models.TradeOrder, error) {
	var result *models.TradeOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockFresh(ctx, tx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if input.ActorID != order.BuyerID && input.ActorID != order.SellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this trade")
		}
		if order.Status != enums.TradeStatusPaidEscrow && order.Status != enums.TradeStatusDelivered {
			return stateConflict(order.Status, "confirm")
		}

		isSeller := input.ActorID == order.SellerID
		if isSeller {
			if order.SellerConfirmedAt != nil {
				result = order
				return nil
			}
			ok, err := s.users.IsSetupComplete(ctx, order.SellerID)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodePrecondition, "seller account setup incomplete")
			}
			// Upload, not acceptance, is the gate: any proof authored
			// by the seller satisfies it.
			count, err := s.proofs.CountByOrderAndAuthor(ctx, order.ID, order.SellerID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count delivery proofs")
			}
			if count == 0 {
				return pkgerrors.New(pkgerrors.CodePrecondition, "delivery proof required before confirming")
			}
		} else if order.BuyerConfirmedAt != nil {
			result = order
			return nil
		}

		now := s.now()
		updates := map[string]any{"last_transition_at": now}
		if isSeller {
			updates["seller_confirmed_at"] = now
			order.SellerConfirmedAt = &now
		} else {
			updates["buyer_confirmed_at"] = now
			order.BuyerConfirmedAt = &now
		}
		order.LastTransitionAt = now

		bothConfirmed := order.BuyerConfirmedAt != nil && order.SellerConfirmedAt != nil
		if bothConfirmed {
			updates["status"] = enums.TradeStatusCompleted
			updates["completed_at"] = now
			updates["settled_at"] = now
			order.Status = enums.TradeStatusCompleted
			order.CompletedAt = &now
			order.SettledAt = &now
		} else if isSeller && order.Status == enums.TradeStatusPaidEscrow {
			updates["status"] = enums.TradeStatusDelivered
			order.Status = enums.TradeStatusDelivered
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update trade order")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTradeConfirmed,
			AggregateType: enums.AggregateTradeOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data: payloads.TradeConfirmedEvent{
				OrderID:   order.ID,
				OrderCode: order.Code,
				ByUserID:  input.ActorID,
				Status:    order.Status,
			},
		}); err != nil {
			return err
		}

		if bothConfirmed {
			if err := s.complete(ctx, tx, order); err != nil {
				return err
			}
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// complete runs the settlement branch inside the confirming transaction:
// if any step fails, the COMPLETED status write rolls back with it.
func (s *service) complete(ctx context.Context, tx *gorm.DB, order *models.TradeOrder) error {
	buyer, err := s.users.Get(ctx, order.BuyerID)
	if err != nil {
		return err
	}
	purchase, err := s.settlement.Settle(ctx, tx, order, buyer)
	if err != nil {
		return err
	}
	if err := s.escrow.Release(ctx, derefString(order.EscrowPaymentID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release escrow")
	}
	if err := s.deactivateOneTimeListing(ctx, tx, order.ListingID); err != nil {
		return err
	}
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
			CompletedAt:      *order.CompletedAt,
		},
	})
}

func (s *service) Get(ctx context.Context, input GetInput) (*models.TradeOrder, error) {
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !input.Admin && input.RequesterID != order.BuyerID && input.RequesterID != order.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this trade")
	}

	if s.isStale(order) {
		if err := s.materializeStale(ctx, order.ID); err != nil {
			return nil, err
		}
		return s.load(ctx, input.OrderID)
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var cursor *pagination.Cursor
	if input.Cursor != "" {
		parsed, err := pagination.ParseCursor(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		cursor = parsed
	}

	orders, next, err := s.repo.List(ctx, ListQuery{
		UserID: input.UserID,
		Status: input.Status,
		Limit:  input.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list trade orders")
	}
	result := &ListResult{Items: orders}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// SweepStale is the scheduled complement to the read-time staleness
// check: it walks inactive orders in batches and cancels each under the
// same row-locked materialization the lazy path uses.
func (s *service) SweepStale(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	cutoff := s.now().Add(-s.cfg.StaleTTL)
	ids, err := s.repo.ListStaleCandidates(ctx, cutoff, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}

	cancelled := 0
	for _, id := range ids {
		if err := s.materializeStale(ctx, id); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

// MarkRefunded records that the provider refund for a cancelled trade
// landed. Invoked by the refund worker, it is idempotent under redelivery.
func (s *service) MarkRefunded(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.RefundedAt != nil {
			return nil
		}
		now := s.now()
		if err := repo.Update(ctx, order.ID, map[string]any{"refunded_at": now}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update trade order")
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
				AmountCents: order.TotalCents,
				RefundedAt:  now,
			},
		})
	})
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.TradeOrder, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) isStale(order *models.TradeOrder) bool {
	if !order.Status.IsStaleCancellable() {
		return false
	}
	return s.now().Sub(order.LastTransitionAt) > s.cfg.StaleTTL
}

// lockFresh locks the order row and materializes a pending stale
// cancellation before the caller's guard runs, so every transition sees
// the status a fresh read would have returned.
func (s *service) lockFresh(ctx context.Context, tx *gorm.DB, repo Repository, orderID uuid.UUID) (*models.TradeOrder, error) {
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if s.isStale(order) {
		if err := s.cancelLocked(ctx, tx, repo, order, "auto-cancelled after inactivity", nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// materializeStale cancels one stale order inside its own transaction.
// A concurrent reader racing this sees either the pre-cancel row (and
// re-runs the same idempotent step) or the already-cancelled one.
func (s *service) materializeStale(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		// Re-check under the lock; a racing reader may have won.
		if !s.isStale(order) {
			return nil
		}
		return s.cancelLocked(ctx, tx, repo, order, "auto-cancelled after inactivity", nil)
	})
}

// cancelLocked flips a row-locked order to CANCELLED and emits the
// cancellation event. Trades cancelled after funding carry the escrow
// payment id so the refund worker can return the buyer's money.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, repo Repository, order *models.TradeOrder, reason string, actorID *uuid.UUID) error {
	now := s.now()
	updates := map[string]any{
		"status":             enums.TradeStatusCancelled,
		"cancel_reason":      reason,
		"cancelled_at":       now,
		"last_transition_at": now,
	}
	if err := repo.Update(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel trade order")
	}
	order.Status = enums.TradeStatusCancelled
	order.CancelReason = &reason
	order.CancelledAt = &now
	order.LastTransitionAt = now

	var actor *outbox.ActorRef
	if actorID != nil {
		actor = &outbox.ActorRef{UserID: *actorID}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTradeCancelled,
		AggregateType: enums.AggregateTradeOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.TradeCancelledEvent{
			OrderID:         order.ID,
			OrderCode:       order.Code,
			BuyerID:         order.BuyerID,
			SellerID:        order.SellerID,
			EscrowPaymentID: order.EscrowPaymentID,
			AmountCents:     order.TotalCents,
			CancelledAt:     now,
			Reason:          reason,
		},
	})
}

func (s *service) deactivateOneTimeListing(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) error {
	listing, err := s.listings.WithTx(tx).FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if !listing.OneTime || !listing.IsActive {
		return nil
	}
	now := s.now()
	err = s.listings.WithTx(tx).Update(ctx, listing.ID, map[string]any{
		"is_active":   false,
		"archived_at": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate listing")
	}
	return nil
}

func stateConflict(status enums.TradeStatus, action string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot %s an order in status %s", action, status))
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
