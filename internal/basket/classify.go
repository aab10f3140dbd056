package basket

import "basket-console/internal/types"

var badges = map[types.BrokerStatus]types.Badge{
	types.StatusComplete:       {Color: "green", Icon: "✅", Label: "COMPLETE"},
	types.StatusOpen:           {Color: "blue", Icon: "⏳", Label: "OPEN"},
	types.StatusPending:        {Color: "yellow", Icon: "⏱️", Label: "PENDING"},
	types.StatusTriggerPending: {Color: "orange", Icon: "⏱️", Label: "TRIGGER PENDING"},
	types.StatusCancelled:      {Color: "gray", Icon: "❌", Label: "CANCELLED"},
	types.StatusRejected:       {Color: "red", Icon: "🚫", Label: "REJECTED"},
	types.StatusFailed:         {Color: "red", Icon: "❌", Label: "FAILED"},
	types.StatusUnknown:        {Color: "gray", Icon: "❓", Label: "UNKNOWN"},
}

// Classify maps a broker status to its display badge. Unrecognized values,
// including statuses added by the broker later, classify as UNKNOWN.
func Classify(status types.BrokerStatus) types.Badge {
	return badges[types.ParseBrokerStatus(string(status))]
}
