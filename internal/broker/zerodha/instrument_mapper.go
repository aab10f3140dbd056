package zerodha

import (
	"context"
	"fmt"
	"sync"

	"basket-console/internal/logger"
)

// instrumentCache maps exchange symbols to lot sizes. Each exchange's
// instrument dump is downloaded once, on first use.
type instrumentCache struct {
	kc       kiteClient
	lotSizes map[string]int // "EXCHANGE:SYMBOL" -> lot size
	loaded   map[string]bool
	mu       sync.RWMutex
}

func newInstrumentCache(kc kiteClient) *instrumentCache {
	return &instrumentCache{
		kc:       kc,
		lotSizes: make(map[string]int),
		loaded:   make(map[string]bool),
	}
}

func instrumentKey(exchange, symbol string) string {
	return exchange + ":" + symbol
}

// lotSize returns the lot size for a symbol, loading the exchange if needed.
func (ic *instrumentCache) lotSize(ctx context.Context, exchange, symbol string) (int, error) {
	if err := ic.load(ctx, exchange); err != nil {
		return 0, err
	}

	ic.mu.RLock()
	defer ic.mu.RUnlock()

	size, ok := ic.lotSizes[instrumentKey(exchange, symbol)]
	if !ok || size <= 0 {
		return 0, fmt.Errorf("lot size unknown for %s:%s", exchange, symbol)
	}
	return size, nil
}

func (ic *instrumentCache) load(ctx context.Context, exchange string) error {
	ic.mu.RLock()
	done := ic.loaded[exchange]
	ic.mu.RUnlock()
	if done {
		return nil
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.loaded[exchange] {
		return nil
	}

	instruments, err := ic.kc.GetInstrumentsByExchange(exchange)
	if err != nil {
		return fmt.Errorf("load %s instruments: %w", exchange, err)
	}
	for _, inst := range instruments {
		ic.lotSizes[instrumentKey(exchange, inst.Tradingsymbol)] = int(inst.LotSize)
	}
	ic.loaded[exchange] = true

	logger.Debug(ctx, "Instrument lot sizes loaded", "exchange", exchange, "instruments", len(instruments))
	return nil
}
