package escrow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
)

type holdState string

const (
	holdStateHeld     holdState = "held"
	holdStateReleased holdState = "released"
	holdStateRefunded holdState = "refunded"
)

type memoryHold struct {
	amountCents   int64
	refundedCents int64
	currency      string
	state         holdState
}

// MemoryProvider is a deterministic in-process Provider used in dev mode
// and tests. It enforces the same state rules a real provider would.
type MemoryProvider struct {
	mu    sync.Mutex
	holds map[string]*memoryHold
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{holds: make(map[string]*memoryHold)}
}

func (p *MemoryProvider) Fund(_ context.Context, params FundParams) (*Hold, error) {
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow amount must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	paymentID := fmt.Sprintf("mem-%s", uuid.NewString())
	p.holds[paymentID] = &memoryHold{
		amountCents: params.AmountCents,
		currency:    params.Currency,
		state:       holdStateHeld,
	}
	return &Hold{
		PaymentID:   paymentID,
		AmountCents: params.AmountCents,
		Currency:    params.Currency,
	}, nil
}

func (p *MemoryProvider) Release(_ context.Context, paymentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	hold, ok := p.holds[paymentID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "escrow hold not found")
	}
	if hold.state != holdStateHeld {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("hold is %s", hold.state))
	}
	hold.state = holdStateReleased
	return nil
}

func (p *MemoryProvider) Refund(_ context.Context, params RefundParams) error {
	if params.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	hold, ok := p.holds[params.PaymentID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "escrow hold not found")
	}
	if hold.state == holdStateRefunded {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "hold already refunded")
	}
	if hold.refundedCents+params.AmountCents > hold.amountCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds held amount")
	}
	hold.refundedCents += params.AmountCents
	if hold.refundedCents == hold.amountCents {
		hold.state = holdStateRefunded
	}
	return nil
}

// State reports the hold state for assertions in tests.
func (p *MemoryProvider) State(paymentID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hold, ok := p.holds[paymentID]
	if !ok {
		return "", false
	}
	return string(hold.state), true
}
