package settlement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fee rates applied at settlement. When the buyer was referred, the
// owner's share drops and the referrer takes the difference. VIP buyers
// halve the owner rate; the referrer rate is never discounted.
var (
	ownerRateSolo     = decimal.NewFromFloat(0.10)
	ownerRateReferred = decimal.NewFromFloat(0.07)
	referrerRate      = decimal.NewFromFloat(0.03)
	vipDiscount       = decimal.NewFromInt(2)
)

// Breakdown is the settlement split for one order. Cuts are rounded
// independently and the seller receives the exact remainder, so the
// three parts always sum to TotalCents.
type Breakdown struct {
	TotalCents       int64
	OwnerCutCents    int64
	ReferrerCutCents int64
	SellerCents      int64
	ReferrerID       *uuid.UUID
	VIPApplied       bool
}

// PlatformFeeCents is the platform's total take for the order.
func (b Breakdown) PlatformFeeCents() int64 {
	return b.OwnerCutCents + b.ReferrerCutCents
}

// Compute splits totalCents between the marketplace owner, the buyer's
// referrer, and the seller.
func Compute(totalCents int64, referrerID *uuid.UUID, buyerVIP bool) Breakdown {
	total := decimal.NewFromInt(totalCents)

	ownerRate := ownerRateSolo
	if referrerID != nil {
		ownerRate = ownerRateReferred
	}
	if buyerVIP {
		ownerRate = ownerRate.Div(vipDiscount)
	}

	ownerCut := total.Mul(ownerRate).Round(0).IntPart()

	var referrerCut int64
	if referrerID != nil {
		referrerCut = total.Mul(referrerRate).Round(0).IntPart()
	}

	return Breakdown{
		TotalCents:       totalCents,
		OwnerCutCents:    ownerCut,
		ReferrerCutCents: referrerCut,
		SellerCents:      totalCents - ownerCut - referrerCut,
		ReferrerID:       referrerID,
		VIPApplied:       buyerVIP,
	}
}
