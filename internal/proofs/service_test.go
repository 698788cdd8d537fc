package proofs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/payloads"
)

type stubProofsRepo struct {
	proofs map[uuid.UUID]*models.DeliveryProof
}

func (s *stubProofsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubProofsRepo) Create(ctx context.Context, proof *models.DeliveryProof) (*models.DeliveryProof, error) {
	if proof.ID == uuid.Nil {
		proof.ID = uuid.New()
	}
	if s.proofs == nil {
		s.proofs = make(map[uuid.UUID]*models.DeliveryProof)
	}
	s.proofs[proof.ID] = proof
	return proof, nil
}

func (s *stubProofsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryProof, error) {
	proof, ok := s.proofs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return proof, nil
}

func (s *stubProofsRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryProof, error) {
	var out []models.DeliveryProof
	for _, proof := range s.proofs {
		if proof.OrderID == orderID {
			out = append(out, *proof)
		}
	}
	return out, nil
}

func (s *stubProofsRepo) CountByOrderAndAuthor(ctx context.Context, orderID, authorID uuid.UUID) (int64, error) {
	var count int64
	for _, proof := range s.proofs {
		if proof.OrderID == orderID && proof.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

func (s *stubProofsRepo) UpdateReview(ctx context.Context, id uuid.UUID, status enums.ProofStatus, reviewerID uuid.UUID, reviewedAt time.Time) error {
	proof, ok := s.proofs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	proof.Status = status
	proof.ReviewedBy = &reviewerID
	proof.ReviewedAt = &reviewedAt
	return nil
}

type stubOrderLoader struct {
	order *models.TradeOrder
}

func (s *stubOrderLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.TradeOrder, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func fundedOrder(buyerID, sellerID uuid.UUID) *models.TradeOrder {
	return &models.TradeOrder{
		ID:       uuid.New(),
		Code:     "STC-TEST1",
		BuyerID:  buyerID,
		SellerID: sellerID,
		Status:   enums.TradeStatusPaidEscrow,
	}
}

func TestSubmitProof(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	order := fundedOrder(buyerID, sellerID)
	repo := &stubProofsRepo{}
	bus := &stubOutboxPublisher{}
	svc, err := NewService(repo, &stubOrderLoader{order: order}, stubTxRunner{}, bus)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}

	proof, err := svc.Submit(context.Background(), SubmitInput{
		OrderID:  order.ID,
		AuthorID: sellerID,
		Kind:     enums.ProofKindTracking,
		URL:      "https://tracking.example/123",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if proof.Status != enums.ProofStatusPending {
		t.Fatalf("unexpected status %s", proof.Status)
	}
	if len(bus.events) != 1 || bus.events[0].EventType != enums.EventProofSubmitted {
		t.Fatalf("expected submitted event got %+v", bus.events)
	}
	payload, ok := bus.events[0].Data.(payloads.ProofSubmittedEvent)
	if !ok {
		t.Fatalf("unexpected payload %T", bus.events[0].Data)
	}
	if payload.OrderCode != "STC-TEST1" || payload.AuthorID != sellerID {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestSubmitProofRejectsOutsiders(t *testing.T) {
	order := fundedOrder(uuid.New(), uuid.New())
	svc, _ := NewService(&stubProofsRepo{}, &stubOrderLoader{order: order}, stubTxRunner{}, &stubOutboxPublisher{})

	_, err := svc.Submit(context.Background(), SubmitInput{
		OrderID:  order.ID,
		AuthorID: uuid.New(),
		Kind:     enums.ProofKindImage,
		URL:      "https://img.example/1.jpg",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSubmitProofRequiresFundedOrder(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	order := fundedOrder(buyerID, sellerID)
	order.Status = enums.TradeStatusRequested
	svc, _ := NewService(&stubProofsRepo{}, &stubOrderLoader{order: order}, stubTxRunner{}, &stubOutboxPublisher{})

	_, err := svc.Submit(context.Background(), SubmitInput{
		OrderID:  order.ID,
		AuthorID: sellerID,
		Kind:     enums.ProofKindImage,
		URL:      "https://img.example/1.jpg",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestReviewProof(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	order := fundedOrder(buyerID, sellerID)
	proofID := uuid.New()
	repo := &stubProofsRepo{proofs: map[uuid.UUID]*models.DeliveryProof{
		proofID: {
			ID:       proofID,
			OrderID:  order.ID,
			AuthorID: sellerID,
			Kind:     enums.ProofKindImage,
			Status:   enums.ProofStatusPending,
			URL:      "https://img.example/1.jpg",
		},
	}}
	bus := &stubOutboxPublisher{}
	svc, _ := NewService(repo, &stubOrderLoader{order: order}, stubTxRunner{}, bus)

	proof, err := svc.Review(context.Background(), ReviewInput{
		ProofID:    proofID,
		ReviewerID: buyerID,
		Accept:     true,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if proof.Status != enums.ProofStatusAccepted {
		t.Fatalf("unexpected status %s", proof.Status)
	}
	if proof.ReviewedBy == nil || *proof.ReviewedBy != buyerID {
		t.Fatalf("reviewer not recorded %+v", proof)
	}
	if len(bus.events) != 1 || bus.events[0].EventType != enums.EventProofAccepted {
		t.Fatalf("expected review event got %+v", bus.events)
	}
}

func TestReviewProofRejectsAuthor(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	order := fundedOrder(buyerID, sellerID)
	proofID := uuid.New()
	repo := &stubProofsRepo{proofs: map[uuid.UUID]*models.DeliveryProof{
		proofID: {
			ID:       proofID,
			OrderID:  order.ID,
			AuthorID: sellerID,
			Status:   enums.ProofStatusPending,
		},
	}}
	svc, _ := NewService(repo, &stubOrderLoader{order: order}, stubTxRunner{}, &stubOutboxPublisher{})

	_, err := svc.Review(context.Background(), ReviewInput{ProofID: proofID, ReviewerID: sellerID, Accept: true})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestReviewProofAlreadyReviewed(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	order := fundedOrder(buyerID, sellerID)
	proofID := uuid.New()
	repo := &stubProofsRepo{proofs: map[uuid.UUID]*models.DeliveryProof{
		proofID: {
			ID:       proofID,
			OrderID:  order.ID,
			AuthorID: sellerID,
			Status:   enums.ProofStatusAccepted,
		},
	}}
	bus := &stubOutboxPublisher{}
	svc, _ := NewService(repo, &stubOrderLoader{order: order}, stubTxRunner{}, bus)

	_, err := svc.Review(context.Background(), ReviewInput{ProofID: proofID, ReviewerID: buyerID, Accept: false})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error %v", err)
	}
	if len(bus.events) != 0 {
		t.Fatal("unexpected outbox event")
	}
}

func TestListForOrderRequiresParty(t *testing.T) {
	order := fundedOrder(uuid.New(), uuid.New())
	svc, _ := NewService(&stubProofsRepo{}, &stubOrderLoader{order: order}, stubTxRunner{}, &stubOutboxPublisher{})

	_, err := svc.ListForOrder(context.Background(), order.ID, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}

	proofs, err := svc.ListForOrder(context.Background(), order.ID, order.BuyerID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(proofs) != 0 {
		t.Fatalf("unexpected proofs %v", proofs)
	}
}
