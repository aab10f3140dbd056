package zerodha

import (
	"context"
	"time"

	"basket-console/internal/logger"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// setupEventHandlers configures all WebSocket event callbacks
func (f *OrderFeed) setupEventHandlers() {
	f.ticker.OnConnect(f.onConnect)
	f.ticker.OnError(f.onError)
	f.ticker.OnClose(f.onClose)
	f.ticker.OnReconnect(f.onReconnect)
	f.ticker.OnNoReconnect(f.onNoReconnect)
	f.ticker.OnOrderUpdate(f.onOrderUpdate)
}

func (f *OrderFeed) onConnect() {
	logger.Info(context.Background(), "WebSocket connected successfully")
}

func (f *OrderFeed) onError(err error) {
	logger.ErrorWithErr(context.Background(), "WebSocket error occurred", err)
}

func (f *OrderFeed) onClose(code int, reason string) {
	logger.Warn(context.Background(), "WebSocket connection closed",
		"code", code,
		"reason", reason,
	)
}

func (f *OrderFeed) onReconnect(attempt int, delay time.Duration) {
	logger.Info(context.Background(), "WebSocket reconnecting",
		"attempt", attempt,
		"delay", delay,
	)
}

func (f *OrderFeed) onNoReconnect(attempt int) {
	logger.Warn(context.Background(), "WebSocket reconnection failed - giving up",
		"attempts", attempt,
	)
}

func (f *OrderFeed) onOrderUpdate(order kiteconnect.Order) {
	ctx := context.Background()
	logger.Debug(ctx, "Order update received",
		"order_id", order.OrderID,
		"status", order.Status,
		"symbol", order.TradingSymbol,
	)
	if order.OrderID == "" {
		return
	}
	f.handler(ctx, statusFromKiteOrder(order))
}
