package zerodha

import (
	"context"
	"errors"
	"sync"

	"basket-console/internal/logger"
	"basket-console/internal/types"

	kiteticker "github.com/zerodha/gokiteconnect/v4/ticker"
)

// OrderFeed streams order updates from the Kite ticker websocket and hands
// each one to the handler as an OrderStatus. It complements polling; the
// handler is usually basket.Manager.ApplyStatus.
type OrderFeed struct {
	apiKey      string
	accessToken string
	handler     func(context.Context, types.OrderStatus)

	ticker *kiteticker.Ticker
	mu     sync.Mutex
	done   chan struct{}
}

func NewOrderFeed(apiKey, accessToken string, handler func(context.Context, types.OrderStatus)) (*OrderFeed, error) {
	if apiKey == "" || accessToken == "" {
		return nil, errors.New("missing API key/access token")
	}
	if handler == nil {
		return nil, errors.New("order feed needs a handler")
	}
	return &OrderFeed{apiKey: apiKey, accessToken: accessToken, handler: handler}, nil
}

// Start connects the ticker in the background. The feed stops when ctx is
// cancelled or Stop is called.
func (f *OrderFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticker != nil {
		return errors.New("order feed already started")
	}

	f.ticker = kiteticker.New(f.apiKey, f.accessToken)
	f.done = make(chan struct{})
	f.setupEventHandlers()

	ticker, done := f.ticker, f.done
	go func() {
		ticker.Serve()
	}()
	go func() {
		select {
		case <-ctx.Done():
			f.Stop()
		case <-done:
		}
	}()

	logger.Info(ctx, "Order feed started")
	return nil
}

func (f *OrderFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticker == nil {
		return
	}
	f.ticker.Stop()
	close(f.done)
	f.ticker = nil
}
