package escrow

import (
	"context"
)

// Hold identifies funds reserved with the payment provider.
type Hold struct {
	PaymentID   string
	AmountCents int64
	Currency    string
}

// FundParams describes the escrow hold to create for a trade.
type FundParams struct {
	OrderCode      string
	SourceID       string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

// RefundParams describes a full or partial return of held funds.
type RefundParams struct {
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

// Provider is the payment-side escrow surface. Implementations must be
// safe for concurrent use; callers pass bounded contexts.
type Provider interface {
	// Fund reserves the buyer's money without capturing it.
	Fund(ctx context.Context, params FundParams) (*Hold, error)
	// Release captures a previously funded hold, paying out the trade.
	Release(ctx context.Context, paymentID string) error
	// Refund returns held funds to the buyer. Amount may be partial.
	Refund(ctx context.Context, params RefundParams) error
}
