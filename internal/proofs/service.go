package proofs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.TradeOrder, error)
}

// Service manages delivery proofs attached to funded trades.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.DeliveryProof, error)
	Review(ctx context.Context, input ReviewInput) (*models.DeliveryProof, error)
	ListForOrder(ctx context.Context, orderID, requesterID uuid.UUID) ([]models.DeliveryProof, error)
}

// SubmitInput attaches evidence to an order.
type SubmitInput struct {
	OrderID  uuid.UUID
	AuthorID uuid.UUID
	Kind     enums.ProofKind
	URL      string
	Note     *string
}

// ReviewInput records the counterparty's verdict on a proof.
type ReviewInput struct {
	ProofID    uuid.UUID
	ReviewerID uuid.UUID
	Accept     bool
}

type service struct {
	repo   Repository
	orders orderLoader
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a proofs service with the required dependencies.
func NewService(repo Repository, orders orderLoader, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("proofs repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, orders: orders, tx: tx, outbox: outboxSvc}, nil
}

// Statuses that still accept evidence. Disputed orders stay open for
// uploads so both sides can argue their case.
func acceptsProofs(status enums.TradeStatus) bool {
	switch status {
	case enums.TradeStatusPaidEscrow, enums.TradeStatusDelivered, enums.TradeStatusDisputeOpen:
		return true
	default:
		return false
	}
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.DeliveryProof, error) {
	if input.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof url required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown proof kind")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.AuthorID != order.BuyerID && input.AuthorID != order.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this trade")
	}
	if !acceptsProofs(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s does not accept proofs", order.Status))
	}

	var created *models.DeliveryProof
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		proof := &models.DeliveryProof{
			OrderID:  order.ID,
			AuthorID: input.AuthorID,
			Kind:     input.Kind,
			Status:   enums.ProofStatusPending,
			URL:      input.URL,
			Note:     input.Note,
		}
		var innerErr error
		created, innerErr = repo.Create(ctx, proof)
		if innerErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, innerErr, "create proof")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProofSubmitted,
			AggregateType: enums.AggregateTradeOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.AuthorID},
			Data: payloads.ProofSubmittedEvent{
				OrderID:        order.ID,
				OrderCode:      order.Code,
				ProofID:        created.ID,
				AuthorID:       input.AuthorID,
				CounterpartyID: counterparty(order, input.AuthorID),
				Kind:           input.Kind,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Review(ctx context.Context, input ReviewInput) (*models.DeliveryProof, error) {
	proof, err := s.repo.FindByID(ctx, input.ProofID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "proof not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load proof")
	}

	order, err := s.loadOrder(ctx, proof.OrderID)
	if err != nil {
		return nil, err
	}
	if input.ReviewerID != order.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer reviews proofs")
	}
	if input.ReviewerID == proof.AuthorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot review your own proof")
	}
	if proof.Status != enums.ProofStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "proof already reviewed")
	}

	status := enums.ProofStatusRejected
	if input.Accept {
		status = enums.ProofStatusAccepted
	}
	now := time.Now().UTC()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if innerErr := repo.UpdateReview(ctx, proof.ID, status, input.ReviewerID, now); innerErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, innerErr, "update proof review")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProofAccepted,
			AggregateType: enums.AggregateTradeOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ReviewerID},
			Data: payloads.ProofReviewedEvent{
				OrderID:    order.ID,
				OrderCode:  order.Code,
				ProofID:    proof.ID,
				AuthorID:   proof.AuthorID,
				Status:     status,
				ReviewerID: input.ReviewerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	proof.Status = status
	proof.ReviewedBy = &input.ReviewerID
	proof.ReviewedAt = &now
	return proof, nil
}

func (s *service) ListForOrder(ctx context.Context, orderID, requesterID uuid.UUID) ([]models.DeliveryProof, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if requesterID != order.BuyerID && requesterID != order.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this trade")
	}
	proofs, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list proofs")
	}
	return proofs, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.TradeOrder, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func counterparty(order *models.TradeOrder, userID uuid.UUID) uuid.UUID {
	if userID == order.BuyerID {
		return order.SellerID
	}
	return order.BuyerID
}
