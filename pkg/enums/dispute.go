package enums

import "fmt"

// DisputeStatus tracks whether a dispute still blocks its order.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

func (d DisputeStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	return d == DisputeStatusOpen || d == DisputeStatusResolved
}

// DisputeDecision is the staff outcome applied to a resolved dispute.
type DisputeDecision string

const (
	DisputeDecisionRefundBuyer   DisputeDecision = "refund_buyer"
	DisputeDecisionPartialRefund DisputeDecision = "partial_refund"
	DisputeDecisionReleaseSeller DisputeDecision = "release_seller"
)

var validDisputeDecisions = []DisputeDecision{
	DisputeDecisionRefundBuyer,
	DisputeDecisionPartialRefund,
	DisputeDecisionReleaseSeller,
}

func (d DisputeDecision) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeDecision.
func (d DisputeDecision) IsValid() bool {
	for _, candidate := range validDisputeDecisions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeDecision converts raw input into a DisputeDecision.
func ParseDisputeDecision(value string) (DisputeDecision, error) {
	for _, candidate := range validDisputeDecisions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute decision %q", value)
}
