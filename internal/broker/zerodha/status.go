package zerodha

import (
	"strings"

	"basket-console/internal/types"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// Intermediate order-book states Kite reports while an order moves between
// the states the console knows about.
var transientStatuses = map[string]bool{
	"PUT ORDER REQ RECEIVED":    true,
	"VALIDATION PENDING":        true,
	"OPEN PENDING":              true,
	"MODIFY VALIDATION PENDING": true,
	"MODIFY PENDING":            true,
	"MODIFIED":                  true,
	"CANCEL PENDING":            true,
	"AMO REQ RECEIVED":          true,
}

func mapKiteStatus(s string) types.BrokerStatus {
	if st := types.ParseBrokerStatus(s); st != types.StatusUnknown {
		return st
	}
	if transientStatuses[strings.ToUpper(strings.TrimSpace(s))] {
		return types.StatusPending
	}
	return types.StatusUnknown
}

func statusFromKiteOrder(o kiteconnect.Order) types.OrderStatus {
	return types.OrderStatus{
		OrderID:        o.OrderID,
		Status:         mapKiteStatus(o.Status),
		FilledQuantity: int(o.FilledQuantity),
		AveragePrice:   decimal.NewFromFloat(o.AveragePrice),
		StatusMessage:  o.StatusMessage,
	}
}
