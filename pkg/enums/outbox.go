package enums

// OutboxEventType enumerates the domain events recorded in outbox_events.
type OutboxEventType string

const (
	EventTradeRequested  OutboxEventType = "trade.requested"
	EventTradeAccepted   OutboxEventType = "trade.accepted"
	EventTradeDeclined   OutboxEventType = "trade.declined"
	EventTradeCancelled  OutboxEventType = "trade.cancelled"
	EventTradeFunded     OutboxEventType = "trade.funded"
	EventTradeConfirmed  OutboxEventType = "trade.confirmed"
	EventTradeCompleted  OutboxEventType = "trade.completed"
	EventTradeRefunded   OutboxEventType = "trade.refunded"
	EventProofSubmitted  OutboxEventType = "proof.submitted"
	EventProofAccepted   OutboxEventType = "proof.accepted"
	EventDisputeOpened   OutboxEventType = "dispute.opened"
	EventDisputeResolved OutboxEventType = "dispute.resolved"
	EventWalletAdjusted  OutboxEventType = "wallet.adjusted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTradeRequested,
	EventTradeAccepted,
	EventTradeDeclined,
	EventTradeCancelled,
	EventTradeFunded,
	EventTradeConfirmed,
	EventTradeCompleted,
	EventTradeRefunded,
	EventProofSubmitted,
	EventProofAccepted,
	EventDisputeOpened,
	EventDisputeResolved,
	EventWalletAdjusted,
}

func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateTradeOrder OutboxAggregateType = "trade_order"
	AggregateDispute    OutboxAggregateType = "dispute"
	AggregateWallet     OutboxAggregateType = "wallet"
)

func (o OutboxAggregateType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (o OutboxAggregateType) IsValid() bool {
	switch o {
	case AggregateTradeOrder, AggregateDispute, AggregateWallet:
		return true
	default:
		return false
	}
}
