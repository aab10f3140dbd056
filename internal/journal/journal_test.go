package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"basket-console/internal/basket"
	"basket-console/internal/types"

	"github.com/shopspring/decimal"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Expected journal to open, got %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func deployment(id string, at time.Time) ([]types.Order, types.DeploymentSummary) {
	orders := []types.Order{
		{Symbol: "NIFTY24JAN21000PE", Exchange: types.ExchangeNFO, Side: types.SideBuy, Role: types.RoleHedge},
		{Symbol: "NIFTY24JAN21500PE", Exchange: types.ExchangeNFO, Side: types.SideSell},
	}
	summary := types.DeploymentSummary{
		DeploymentID: id,
		Fingerprint:  "abc",
		DeployedAt:   at,
		TotalOrders:  2,
		Successful:   2,
		Results: []types.DeployedOrderResult{
			{RequestIndex: 0, Success: true, OrderID: id + "-1", Symbol: "NIFTY24JAN21000PE", Status: types.StatusComplete, Role: types.RoleHedge},
			{RequestIndex: 1, Success: true, OrderID: id + "-2", Symbol: "NIFTY24JAN21500PE", Status: types.StatusOpen},
		},
	}
	return orders, summary
}

func TestRecordAndReadBack(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	orders, summary := deployment("d1", time.UnixMilli(1_700_000_000_000))
	if err := j.RecordDeployment(ctx, orders, summary); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	recent, err := j.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(recent) != 1 || len(recent[0].Results) != 2 {
		t.Fatalf("Expected one deployment with two legs, got %+v", recent)
	}
	got := recent[0]
	if !got.DeployedAt.Equal(summary.DeployedAt) || got.Fingerprint != "abc" {
		t.Errorf("Unexpected deployment header %+v", got)
	}
	if got.Results[0].Role != types.RoleHedge || got.Results[1].Status != types.StatusOpen {
		t.Errorf("Unexpected legs %+v", got.Results)
	}
}

func TestOpenOrderIDsFollowStatusUpdates(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	orders, first := deployment("d1", time.UnixMilli(1_000))
	_ = j.RecordDeployment(ctx, orders, first)
	orders, second := deployment("d2", time.UnixMilli(2_000))
	_ = j.RecordDeployment(ctx, orders, second)

	ids, err := j.OpenOrderIDs(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(ids) != 2 || ids[0] != "d1-2" || ids[1] != "d2-2" {
		t.Fatalf("Expected open orders d1-2, d2-2, got %v", ids)
	}

	err = j.RecordStatuses(ctx, []types.OrderStatus{
		{OrderID: "d1-2", Status: types.StatusComplete, FilledQuantity: 50, AveragePrice: decimal.RequireFromString("12.5")},
		{OrderID: "d2-2", Status: types.StatusUnknown},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ids, _ = j.OpenOrderIDs(ctx)
	if len(ids) != 1 || ids[0] != "d2-2" {
		t.Errorf("Expected only d2-2 open, got %v", ids)
	}

	recent, _ := j.Recent(ctx, 1)
	if recent[0].DeploymentID != "d2" {
		t.Errorf("Expected newest deployment first, got %s", recent[0].DeploymentID)
	}
}

// cancellingGateway places every leg and cancels the caller while doing so.
type cancellingGateway struct {
	cancel context.CancelFunc
}

func (g cancellingGateway) CheckMargin(ctx context.Context, orders []types.Order) (types.MarginReport, error) {
	return types.MarginReport{}, nil
}

func (g cancellingGateway) Deploy(ctx context.Context, orders []types.Order) (types.DeploymentSummary, error) {
	g.cancel()
	return types.DeploymentSummary{
		TotalOrders: 1,
		Successful:  1,
		Results: []types.DeployedOrderResult{
			{RequestIndex: 0, Success: true, OrderID: "X1", Symbol: orders[0].Symbol, Status: types.StatusOpen},
		},
	}, nil
}

func (g cancellingGateway) OrderStatuses(ctx context.Context, ids []string) ([]types.OrderStatus, error) {
	return nil, nil
}

func TestDeploymentJournaledWhenCallerCancels(t *testing.T) {
	j := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := basket.NewManager(cancellingGateway{cancel: cancel}, basket.WithSinks(j))
	if err := m.Add(types.Order{
		Symbol: "NIFTY24JANFUT", Exchange: types.ExchangeNFO, Side: types.SideBuy,
		Lots: 1, Kind: types.KindMarket, Product: types.ProductNRML,
	}); err != nil {
		t.Fatalf("Expected order to be accepted, got %v", err)
	}

	if _, err := m.Deploy(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ids, err := j.OpenOrderIDs(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(ids) != 1 || ids[0] != "X1" {
		t.Errorf("Expected placed order X1 to be journaled, got %v", ids)
	}
}

func TestRecentReportsCorruptAveragePrice(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	orders, summary := deployment("d1", time.UnixMilli(1_700_000_000_000))
	if err := j.RecordDeployment(ctx, orders, summary); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := j.DB().Exec(`UPDATE legs SET avg_price = 'n/a' WHERE order_id = 'd1-1'`); err != nil {
		t.Fatalf("Expected update to succeed, got %v", err)
	}

	if _, err := j.Recent(ctx, 5); err == nil {
		t.Error("Expected corrupt average price to be reported")
	}
}
