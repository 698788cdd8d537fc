package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/square"
)

var errSquareClientRequired = errors.New("square client is required")

// SquareProvider backs escrow holds with Square delayed-capture payments.
type SquareProvider struct {
	client *square.Client
}

// NewSquareProvider wires the Square client into the Provider surface.
func NewSquareProvider(client *square.Client) (*SquareProvider, error) {
	if client == nil {
		return nil, errSquareClientRequired
	}
	return &SquareProvider{client: client}, nil
}

func (p *SquareProvider) Fund(ctx context.Context, params FundParams) (*Hold, error) {
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow amount must be positive")
	}
	if strings.TrimSpace(params.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}

	payment, err := p.client.HoldPayment(ctx, square.PaymentHoldParams{
		AmountCents:    params.AmountCents,
		Currency:       params.Currency,
		SourceID:       params.SourceID,
		IdempotencyKey: params.IdempotencyKey,
		ReferenceID:    params.OrderCode,
		Note:           fmt.Sprintf("escrow hold for %s", params.OrderCode),
	})
	if err != nil {
		return nil, err
	}

	paymentID := payment.GetID()
	if paymentID == nil || *paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned payment without id")
	}

	return &Hold{
		PaymentID:   *paymentID,
		AmountCents: params.AmountCents,
		Currency:    params.Currency,
	}, nil
}

func (p *SquareProvider) Release(ctx context.Context, paymentID string) error {
	if strings.TrimSpace(paymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	_, err := p.client.CompletePayment(ctx, paymentID)
	return err
}

func (p *SquareProvider) Refund(ctx context.Context, params RefundParams) error {
	if strings.TrimSpace(params.PaymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if params.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	_, err := p.client.RefundPayment(ctx, square.RefundParams{
		PaymentID:      params.PaymentID,
		AmountCents:    params.AmountCents,
		Currency:       params.Currency,
		Reason:         params.Reason,
		IdempotencyKey: params.IdempotencyKey,
	})
	return err
}
