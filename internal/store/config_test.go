package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"basket-console/internal/types"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
gateway: REST
backend:
  base_url: http://localhost:8000
`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Mode != "LIVE" {
		t.Errorf("Expected LIVE mode, got %s", cfg.Mode)
	}
	if cfg.Tracking.PollInterval.Std() != 3*time.Second {
		t.Errorf("Expected 3s poll interval, got %v", cfg.Tracking.PollInterval.Std())
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Backend.Timeout.Std() != 30*time.Second {
		t.Errorf("Unexpected retry defaults %+v", cfg.Retry)
	}
	if cfg.Defaults.Exchange != "NFO" || cfg.Defaults.Lots != 1 {
		t.Errorf("Unexpected leg defaults %+v", cfg.Defaults)
	}
}

func TestParseConfigDurations(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
gateway: KITE
mode: DRY_RUN
tracking:
  poll_interval: 1m30s
retry:
  max_wait: 1d
`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Tracking.PollInterval.Std() != 90*time.Second {
		t.Errorf("Expected 1m30s, got %v", cfg.Tracking.PollInterval.Std())
	}
	if cfg.Retry.MaxWait.Std() != 24*time.Hour {
		t.Errorf("Expected 1d, got %v", cfg.Retry.MaxWait.Std())
	}
	if cfg.Kite.APIKeyEnv != "KITE_API_KEY" {
		t.Errorf("Expected default key env, got %s", cfg.Kite.APIKeyEnv)
	}
}

func TestParseConfigRejects(t *testing.T) {
	cases := map[string]string{
		"bad mode":         "mode: PAPER\ngateway: KITE\n",
		"missing base url": "gateway: REST\n",
		"dry run on rest":  "gateway: REST\nmode: DRY_RUN\nbackend:\n  base_url: http://x\n",
		"feed on rest":     "gateway: REST\nbackend:\n  base_url: http://x\ntracking:\n  order_feed: true\n",
		"bad duration":     "gateway: KITE\ntracking:\n  poll_interval: soon\n",
		"bad gateway":      "gateway: SOAP\n",
	}
	for name, doc := range cases {
		if _, err := ParseConfig([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestEnvBackedSecrets(t *testing.T) {
	t.Setenv("BASKET_USER_ID", "AB1234")
	t.Setenv("KITE_API_KEY", "key")
	t.Setenv("KITE_ACCESS_TOKEN", "token")

	cfg, err := ParseConfig([]byte("gateway: KITE\n"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.UserID() != "AB1234" {
		t.Errorf("Expected user id from env, got %q", cfg.UserID())
	}
	if key, token := cfg.KiteCredentials(); key != "key" || token != "token" {
		t.Errorf("Expected kite credentials from env, got %q %q", key, token)
	}
	if cfg.RedisPassword() != "" {
		t.Errorf("Expected empty redis password, got %q", cfg.RedisPassword())
	}
}

func TestLoadBasketFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "basket.yaml")
	doc := `
orders:
  - symbol: NIFTY24JAN21000CE
    side: buy
    lot_size: 50
    order_type: SL-M
    trigger_price: 118.25
  - symbol: BANKNIFTY24JAN47000PE
    exchange: nfo
    side: SELL
    lots: 2
    order_type: LIMIT
    price: "240.5"
strategies:
  - type: credit_spread
    sell: {symbol: NIFTY24JAN21500PE, lot_size: 50}
    buy: {symbol: NIFTY24JAN21000PE, lot_size: 50}
`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _ := ParseConfig([]byte("gateway: KITE\n"))

	f, err := LoadBasketFile(p)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(f.Orders) != 2 || len(f.Strategies) != 1 {
		t.Fatalf("Unexpected file contents %+v", f)
	}

	first, err := f.Orders[0].Order(cfg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first.Kind != types.KindSLM || first.TriggerPrice == nil || first.TriggerPrice.String() != "118.25" {
		t.Errorf("Expected SL-M with trigger, got %+v", first)
	}
	if first.Exchange != types.ExchangeNFO || first.Product != types.ProductNRML || first.Lots != 1 || first.Side != types.SideBuy {
		t.Errorf("Expected defaults applied, got %+v", first)
	}

	second, _ := f.Orders[1].Order(cfg)
	if second.LimitPrice == nil || second.LimitPrice.String() != "240.5" || second.Lots != 2 {
		t.Errorf("Unexpected second order %+v", second)
	}

	legs, err := f.Strategies[0].Orders(cfg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(legs) != 2 || legs[0].Side != types.SideBuy || legs[1].Symbol != "NIFTY24JAN21500PE" {
		t.Errorf("Expected bought wing first, got %+v", legs)
	}
}

func TestStrategySpecErrors(t *testing.T) {
	cfg, _ := ParseConfig([]byte("gateway: KITE\n"))
	if _, err := (StrategySpec{Type: "iron_fly"}).Orders(cfg); err == nil || !strings.Contains(err.Error(), "iron_fly") {
		t.Errorf("Expected unknown strategy error, got %v", err)
	}
	if _, err := (StrategySpec{Type: "future_hedge", Direction: "up"}).Orders(cfg); err == nil {
		t.Error("Expected direction error")
	}
	bad := "abc"
	if _, err := (OrderSpec{Symbol: "X", Price: &bad}).Order(cfg); err == nil {
		t.Error("Expected price parse error")
	}
}

func TestLoadBasketFileEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "empty.yaml")
	_ = os.WriteFile(p, []byte("orders: []\n"), 0o644)
	if _, err := LoadBasketFile(p); err == nil {
		t.Error("Expected error for empty basket file")
	}
}
