package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

// TradeRequestedEvent signals a buyer opened a safe trade against a listing.
type TradeRequestedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	OrderCode string    `json:"order_code"`
	ListingID uuid.UUID `json:"listing_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`
}

// TradeDecisionEvent is emitted when the seller accepts or declines.
type TradeDecisionEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	OrderCode string            `json:"order_code"`
	BuyerID   uuid.UUID         `json:"buyer_id"`
	SellerID  uuid.UUID         `json:"seller_id"`
	Status    enums.TradeStatus `json:"status"`
}

// TradeFundedEvent surfaces an escrow hold against an accepted trade.
type TradeFundedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	OrderCode       string    `json:"order_code"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	EscrowPaymentID string    `json:"escrow_payment_id"`
	AmountCents     int64     `json:"amount_cents"`
}

// TradeConfirmedEvent reports one side's receipt/delivery confirmation.
type TradeConfirmedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	OrderCode string            `json:"order_code"`
	ByUserID  uuid.UUID         `json:"by_user_id"`
	Status    enums.TradeStatus `json:"status"`
}

// TradeCompletedEvent carries the settlement breakdown for a finished trade.
type TradeCompletedEvent struct {
	OrderID          uuid.UUID  `json:"order_id"`
	OrderCode        string     `json:"order_code"`
	BuyerID          uuid.UUID  `json:"buyer_id"`
	SellerID         uuid.UUID  `json:"seller_id"`
	ReferrerID       *uuid.UUID `json:"referrer_id,omitempty"`
	TotalCents       int64      `json:"total_cents"`
	OwnerCutCents    int64      `json:"owner_cut_cents"`
	ReferrerCutCents int64      `json:"referrer_cut_cents"`
	SellerCents      int64      `json:"seller_cents"`
	CompletedAt      time.Time  `json:"completed_at"`
}

// TradeCancelledEvent is emitted whenever a trade is cancelled or declined.
// Trades cancelled after funding carry the escrow payment id so the worker
// can issue the provider refund.
type TradeCancelledEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	OrderCode       string    `json:"order_code"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	EscrowPaymentID *string   `json:"escrow_payment_id,omitempty"`
	AmountCents     int64     `json:"amount_cents"`
	CancelledAt     time.Time `json:"cancelled_at"`
	Reason          string    `json:"reason,omitempty"`
}

// TradeRefundedEvent reports funds returned to the buyer.
type TradeRefundedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderCode   string    `json:"order_code"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	AmountCents int64     `json:"amount_cents"`
	RefundedAt  time.Time `json:"refunded_at"`
}

// ProofSubmittedEvent tells downstream systems a proof was attached.
type ProofSubmittedEvent struct {
	OrderID        uuid.UUID       `json:"order_id"`
	OrderCode      string          `json:"order_code"`
	ProofID        uuid.UUID       `json:"proof_id"`
	AuthorID       uuid.UUID       `json:"author_id"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	Kind           enums.ProofKind `json:"kind"`
}

// ProofReviewedEvent surfaces a proof acceptance or rejection.
type ProofReviewedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	OrderCode  string            `json:"order_code"`
	ProofID    uuid.UUID         `json:"proof_id"`
	AuthorID   uuid.UUID         `json:"author_id"`
	Status     enums.ProofStatus `json:"status"`
	ReviewerID uuid.UUID         `json:"reviewer_id"`
}

// DisputeOpenedEvent signals a trade entered dispute.
type DisputeOpenedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderCode      string    `json:"order_code"`
	DisputeID      uuid.UUID `json:"dispute_id"`
	OpenedByID     uuid.UUID `json:"opened_by_id"`
	CounterpartyID uuid.UUID `json:"counterparty_id"`
	Reason         string    `json:"reason"`
}

// DisputeResolvedEvent carries the admin decision for a dispute.
type DisputeResolvedEvent struct {
	OrderID     uuid.UUID             `json:"order_id"`
	OrderCode   string                `json:"order_code"`
	DisputeID   uuid.UUID             `json:"dispute_id"`
	BuyerID     uuid.UUID             `json:"buyer_id"`
	SellerID    uuid.UUID             `json:"seller_id"`
	Decision    enums.DisputeDecision `json:"decision"`
	RefundCents int64                 `json:"refund_cents"`
	ResolvedAt  time.Time             `json:"resolved_at"`
}

// WalletAdjustedEvent reports a ledgered balance movement.
type WalletAdjustedEvent struct {
	WalletID    uuid.UUID  `json:"wallet_id"`
	UserID      uuid.UUID  `json:"user_id"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	DeltaCents  int64      `json:"delta_cents,omitempty"`
	DeltaPoints int64      `json:"delta_points,omitempty"`
	Source      string     `json:"source"`
}
