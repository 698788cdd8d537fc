package enums

import "fmt"

// TradeStatus tracks the lifecycle of a safe-trade order.
type TradeStatus string

const (
	TradeStatusRequested   TradeStatus = "requested"
	TradeStatusAccepted    TradeStatus = "accepted"
	TradeStatusPaidEscrow  TradeStatus = "paid_escrow"
	TradeStatusDelivered   TradeStatus = "delivered"
	TradeStatusCompleted   TradeStatus = "completed"
	TradeStatusCancelled   TradeStatus = "cancelled"
	TradeStatusDeclined    TradeStatus = "declined"
	TradeStatusDisputeOpen TradeStatus = "dispute_open"
	TradeStatusRefunded    TradeStatus = "refunded"
)

var validTradeStatuses = []TradeStatus{
	TradeStatusRequested,
	TradeStatusAccepted,
	TradeStatusPaidEscrow,
	TradeStatusDelivered,
	TradeStatusCompleted,
	TradeStatusCancelled,
	TradeStatusDeclined,
	TradeStatusDisputeOpen,
	TradeStatusRefunded,
}

// String implements fmt.Stringer.
func (t TradeStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TradeStatus.
func (t TradeStatus) IsValid() bool {
	for _, candidate := range validTradeStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order can no longer transition.
func (t TradeStatus) IsTerminal() bool {
	switch t {
	case TradeStatusCompleted, TradeStatusCancelled, TradeStatusDeclined, TradeStatusRefunded:
		return true
	default:
		return false
	}
}

// IsStaleCancellable reports whether the inactivity policy may auto-cancel
// an order in this status. Disputed orders are frozen, not stale.
func (t TradeStatus) IsStaleCancellable() bool {
	switch t {
	case TradeStatusRequested, TradeStatusAccepted, TradeStatusPaidEscrow, TradeStatusDelivered:
		return true
	default:
		return false
	}
}

// ParseTradeStatus converts raw input into a TradeStatus.
func ParseTradeStatus(value string) (TradeStatus, error) {
	for _, candidate := range validTradeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trade status %q", value)
}
