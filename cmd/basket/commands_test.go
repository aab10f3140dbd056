package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"basket-console/internal/basket"
	"basket-console/internal/store"
	"basket-console/internal/types"

	"github.com/shopspring/decimal"
)

type nopGateway struct{}

func (nopGateway) CheckMargin(ctx context.Context, orders []types.Order) (types.MarginReport, error) {
	return types.MarginReport{}, nil
}

func (nopGateway) Deploy(ctx context.Context, orders []types.Order) (types.DeploymentSummary, error) {
	return types.DeploymentSummary{}, nil
}

func (nopGateway) OrderStatuses(ctx context.Context, ids []string) ([]types.OrderStatus, error) {
	return nil, nil
}

func TestLoadBasketAddsOrdersAndGroups(t *testing.T) {
	p := filepath.Join(t.TempDir(), "basket.yaml")
	doc := `
orders:
  - {symbol: NIFTY24JANFUT, side: BUY, lot_size: 50, order_type: MARKET}
strategies:
  - type: short_straddle
    call: {symbol: NIFTY24JAN21500CE, lot_size: 50}
    put: {symbol: NIFTY24JAN21500PE, lot_size: 50}
    hedge_call: {symbol: NIFTY24JAN22000CE, lot_size: 50}
    hedge_put: {symbol: NIFTY24JAN21000PE, lot_size: 50}
`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := store.ParseConfig([]byte("gateway: KITE\n"))
	if err != nil {
		t.Fatal(err)
	}

	m := basket.NewManager(nopGateway{})
	if err := loadBasket(cfg, m, p); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	orders := m.Orders()
	if len(orders) != 5 {
		t.Fatalf("Expected 5 orders, got %d", len(orders))
	}
	if orders[1].GroupID == "" || orders[1].GroupID != orders[4].GroupID {
		t.Errorf("Expected straddle legs to share a group, got %q and %q", orders[1].GroupID, orders[4].GroupID)
	}
	if orders[1].Role != types.RoleHedge || orders[3].Side != types.SideSell {
		t.Errorf("Expected hedges before sold legs, got %+v", orders[1:])
	}
}

func TestLoadBasketRequiresPath(t *testing.T) {
	if err := loadBasket(&store.Config{}, basket.NewManager(nopGateway{}), ""); err == nil {
		t.Error("Expected error without a basket file")
	}
}

func TestPrintMarginShortfall(t *testing.T) {
	var buf bytes.Buffer
	printMargin(&buf, types.MarginReport{
		AvailableBalance: decimal.NewFromInt(100000),
		TotalRequired:    decimal.RequireFromString("125000.5"),
	})
	if !strings.Contains(buf.String(), "you need ₹25000.50 more") {
		t.Errorf("Expected shortfall message, got %q", buf.String())
	}
}

func TestPrintSummaryUsesBadges(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, types.DeploymentSummary{
		DeploymentID: "d1",
		TotalOrders:  1,
		Failed:       1,
		Results: []types.DeployedOrderResult{
			{Symbol: "NIFTY24JANFUT", Status: types.StatusRejected, ErrorMessage: "Insufficient margin"},
		},
	})
	out := buf.String()
	if !strings.Contains(out, "🚫 REJECTED") || !strings.Contains(out, "Insufficient margin") {
		t.Errorf("Unexpected summary output %q", out)
	}
}
