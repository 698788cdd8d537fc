package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetradehq/safetrade-backend/internal/wallet"
	"github.com/safetradehq/safetrade-backend/pkg/db/models"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
)

type stubSettlementRepo struct {
	purchase       *models.Purchase
	entries        []models.PayoutLedgerEntry
	feeWrites      []int64
	createPurchase func(ctx context.Context, purchase *models.Purchase) (*models.Purchase, error)
}

func (s *stubSettlementRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubSettlementRepo) CreatePurchase(ctx context.Context, purchase *models.Purchase) (*models.Purchase, error) {
	if s.createPurchase != nil {
		return s.createPurchase(ctx, purchase)
	}
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	s.purchase = purchase
	return purchase, nil
}

func (s *stubSettlementRepo) CreatePayoutEntries(ctx context.Context, entries []models.PayoutLedgerEntry) error {
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *stubSettlementRepo) UpdateOrderPlatformFee(ctx context.Context, orderID uuid.UUID, feeCents int64) error {
	s.feeWrites = append(s.feeWrites, feeCents)
	return nil
}

func (s *stubSettlementRepo) FindPurchaseByOrder(ctx context.Context, orderID uuid.UUID) (*models.Purchase, error) {
	if s.purchase == nil || s.purchase.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.purchase, nil
}

func (s *stubSettlementRepo) SellerTotals(ctx context.Context, sellerID uuid.UUID) (*SellerTotals, error) {
	return &SellerTotals{}, nil
}

type stubCreditor struct {
	calls []wallet.CreditInput
	err   error
}

func (s *stubCreditor) Credit(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, input)
	return nil
}

func TestSettleWithReferrer(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	referrerID := uuid.New()
	order := &models.TradeOrder{
		ID:         uuid.New(),
		BuyerID:    buyerID,
		SellerID:   sellerID,
		TotalCents: 10000,
	}
	buyer := &models.User{ID: buyerID, ReferredByID: &referrerID}

	repo := &stubSettlementRepo{}
	creditor := &stubCreditor{}
	svc, err := NewService(repo, creditor)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}

	purchase, err := svc.Settle(context.Background(), &gorm.DB{}, order, buyer)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if purchase.OwnerCutCents != 700 || purchase.ReferrerCutCents != 300 || purchase.SellerCents != 9000 {
		t.Fatalf("unexpected split %+v", purchase)
	}
	if purchase.ReferrerID == nil || *purchase.ReferrerID != referrerID {
		t.Fatalf("referrer not recorded %+v", purchase)
	}

	if len(repo.entries) != 3 {
		t.Fatalf("expected three payout rows got %d", len(repo.entries))
	}
	byRole := map[enums.PayoutRole]models.PayoutLedgerEntry{}
	for _, entry := range repo.entries {
		byRole[entry.Role] = entry
	}
	if byRole[enums.PayoutRoleOwner].BeneficiaryID != nil {
		t.Fatal("owner row must have nil beneficiary")
	}
	if byRole[enums.PayoutRoleOwner].AmountCents != 700 {
		t.Fatalf("unexpected owner amount %d", byRole[enums.PayoutRoleOwner].AmountCents)
	}
	sellerRow := byRole[enums.PayoutRoleSeller]
	if sellerRow.BeneficiaryID == nil || *sellerRow.BeneficiaryID != sellerID || sellerRow.AmountCents != 9000 {
		t.Fatalf("unexpected seller row %+v", sellerRow)
	}
	referrerRow := byRole[enums.PayoutRoleReferrer]
	if referrerRow.BeneficiaryID == nil || *referrerRow.BeneficiaryID != referrerID || referrerRow.AmountCents != 300 {
		t.Fatalf("unexpected referrer row %+v", referrerRow)
	}

	if len(creditor.calls) != 2 {
		t.Fatalf("expected two wallet credits got %d", len(creditor.calls))
	}
	if creditor.calls[0].UserID != sellerID || creditor.calls[0].AmountCents != 9000 ||
		creditor.calls[0].Source != enums.CreditSourceTradePayout {
		t.Fatalf("unexpected seller credit %+v", creditor.calls[0])
	}
	if creditor.calls[1].UserID != referrerID || creditor.calls[1].AmountCents != 300 ||
		creditor.calls[1].Source != enums.CreditSourceReferralCut {
		t.Fatalf("unexpected referrer credit %+v", creditor.calls[1])
	}

	if len(repo.feeWrites) != 1 || repo.feeWrites[0] != 1000 {
		t.Fatalf("expected platform fee write of 1000 got %v", repo.feeWrites)
	}
	if order.PlatformFeeCents != 1000 {
		t.Fatalf("order fee not refreshed, got %d", order.PlatformFeeCents)
	}
}

func TestSettleWithoutReferrer(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	order := &models.TradeOrder{
		ID:         uuid.New(),
		BuyerID:    buyerID,
		SellerID:   sellerID,
		TotalCents: 5000,
	}
	buyer := &models.User{ID: buyerID}

	repo := &stubSettlementRepo{}
	creditor := &stubCreditor{}
	svc, _ := NewService(repo, creditor)

	purchase, err := svc.Settle(context.Background(), &gorm.DB{}, order, buyer)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if purchase.OwnerCutCents != 500 || purchase.SellerCents != 4500 || purchase.ReferrerCutCents != 0 {
		t.Fatalf("unexpected split %+v", purchase)
	}
	if len(repo.entries) != 2 {
		t.Fatalf("expected two payout rows got %d", len(repo.entries))
	}
	if len(creditor.calls) != 1 {
		t.Fatalf("expected one wallet credit got %d", len(creditor.calls))
	}
}

func TestSettleVIPWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	buyerID := uuid.New()
	referrerID := uuid.New()

	cases := []struct {
		name     string
		buyer    *models.User
		ownerCut int64
		seller   int64
	}{
		{
			name: "active timed vip halves owner cut",
			buyer: &models.User{
				ID:             buyerID,
				ReferredByID:   &referrerID,
				VIPStatus:      enums.VIPStatusTimed,
				VIPActiveUntil: ptrTime(now.Add(time.Hour)),
			},
			ownerCut: 350,
			seller:   9350,
		},
		{
			name: "expired timed vip pays full rate",
			buyer: &models.User{
				ID:             buyerID,
				ReferredByID:   &referrerID,
				VIPStatus:      enums.VIPStatusTimed,
				VIPActiveUntil: ptrTime(now.Add(-time.Hour)),
			},
			ownerCut: 700,
			seller:   9000,
		},
		{
			name: "lifetime status never lapses",
			buyer: &models.User{
				ID:           buyerID,
				ReferredByID: &referrerID,
				VIPStatus:    enums.VIPStatusLifetime,
			},
			ownerCut: 350,
			seller:   9350,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := &models.TradeOrder{
				ID:         uuid.New(),
				BuyerID:    buyerID,
				SellerID:   uuid.New(),
				TotalCents: 10000,
			}
			repo := &stubSettlementRepo{}
			svc := &service{
				repo:    repo,
				wallets: &stubCreditor{},
				now:     func() time.Time { return now },
			}

			purchase, err := svc.Settle(context.Background(), &gorm.DB{}, order, tc.buyer)
			if err != nil {
				t.Fatalf("expected success got %v", err)
			}
			if purchase.OwnerCutCents != tc.ownerCut || purchase.SellerCents != tc.seller {
				t.Fatalf("unexpected split %+v", purchase)
			}
			if order.PlatformFeeCents != tc.ownerCut+300 {
				t.Fatalf("unexpected platform fee %d", order.PlatformFeeCents)
			}
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestSettleReplayReturnsExistingPurchase(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	orderID := uuid.New()
	existing := &models.Purchase{
		ID:          uuid.New(),
		OrderID:     orderID,
		SellerID:    sellerID,
		TotalCents:  10000,
		SellerCents: 9000,
	}
	repo := &stubSettlementRepo{
		purchase: existing,
		createPurchase: func(ctx context.Context, purchase *models.Purchase) (*models.Purchase, error) {
			return nil, errors.New(`duplicate key value violates unique constraint "idx_purchases_order_id"`)
		},
	}
	creditor := &stubCreditor{}
	svc, _ := NewService(repo, creditor)

	order := &models.TradeOrder{ID: orderID, BuyerID: buyerID, SellerID: sellerID, TotalCents: 10000}
	purchase, err := svc.Settle(context.Background(), &gorm.DB{}, order, &models.User{ID: buyerID})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if purchase.ID != existing.ID {
		t.Fatalf("expected existing purchase got %+v", purchase)
	}
	if len(repo.entries) != 0 {
		t.Fatal("replay must not write payout rows")
	}
	if len(creditor.calls) != 0 {
		t.Fatal("replay must not credit wallets")
	}
}

func TestSettleValidatesInput(t *testing.T) {
	repo := &stubSettlementRepo{}
	svc, _ := NewService(repo, &stubCreditor{})

	buyerID := uuid.New()
	order := &models.TradeOrder{ID: uuid.New(), BuyerID: buyerID, SellerID: uuid.New(), TotalCents: 1000}

	_, err := svc.Settle(context.Background(), nil, order, &models.User{ID: buyerID})
	if err == nil {
		t.Fatal("expected error for nil transaction")
	}

	_, err = svc.Settle(context.Background(), &gorm.DB{}, order, &models.User{ID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("unexpected error %v", err)
	}

	order.TotalCents = 0
	_, err = svc.Settle(context.Background(), &gorm.DB{}, order, &models.User{ID: buyerID})
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}
