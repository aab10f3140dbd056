package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"basket-console/internal/api"
	"basket-console/internal/types"

	"github.com/shopspring/decimal"
)

func testConfig(url string) Config {
	return Config{
		BaseURL:         url,
		UserID:          "AB1234",
		BatchStatusPath: DefaultBatchStatusPath,
		Retry:           &api.RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	}
}

func sampleOrders() []types.Order {
	price := decimal.RequireFromString("120.5")
	trigger := decimal.RequireFromString("118")
	return []types.Order{
		{Symbol: "NIFTY24JANFUT", Exchange: types.ExchangeNFO, Side: types.SideBuy, Lots: 1, LotSize: 50, Kind: types.KindMarket, Product: types.ProductNRML, Variety: "regular"},
		{Symbol: "NIFTY24JAN18000PE", Exchange: types.ExchangeNFO, Side: types.SideBuy, Lots: 2, Kind: types.KindSL, LimitPrice: &price, TriggerPrice: &trigger, Product: types.ProductNRML, Role: types.RoleHedge},
	}
}

func TestCheckMarginSendsBasketInOrder(t *testing.T) {
	var got basketRequest
	var user string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultMarginPath {
			t.Errorf("Expected path %s, got %s", DefaultMarginPath, r.URL.Path)
		}
		user = r.Header.Get(api.UserIDHeader)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"success":true,"available_balance":100000,"total_required":45000.5,"sufficient":true}`))
	}))
	defer srv.Close()

	report, err := New(testConfig(srv.URL)).CheckMargin(context.Background(), sampleOrders())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if user != "AB1234" {
		t.Errorf("Expected identity header AB1234, got %q", user)
	}
	if len(got.Orders) != 2 || got.Orders[0].Tradingsymbol != "NIFTY24JANFUT" {
		t.Fatalf("Expected orders in basket order, got %+v", got.Orders)
	}
	if got.Orders[0].Quantity != 50 {
		t.Errorf("Expected quantity 50, got %d", got.Orders[0].Quantity)
	}
	second := got.Orders[1]
	if second.OrderType != "SL" || second.Price == nil || second.Price.String() != "120.5" || second.TriggerPrice == nil || second.TriggerPrice.String() != "118" {
		t.Errorf("Expected SL with price and trigger, got %+v", second)
	}
	if second.Variety != "regular" {
		t.Errorf("Expected default variety, got %s", second.Variety)
	}
	if !report.TotalRequired.Equal(decimal.RequireFromString("45000.5")) || !report.Sufficient {
		t.Errorf("Unexpected report %+v", report)
	}
}

func TestCheckMarginSurfacesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"Invalid instrument NIFTY24JANFUT"}`))
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL)).CheckMargin(context.Background(), sampleOrders())
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Expected BackendError, got %v", err)
	}
	if be.Error() != "Invalid instrument NIFTY24JANFUT" {
		t.Errorf("Expected verbatim backend message, got %q", be.Error())
	}
}

func TestCheckMarginRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"success":true,"available_balance":1,"total_required":1,"sufficient":true}`))
	}))
	defer srv.Close()

	if _, err := New(testConfig(srv.URL)).CheckMargin(context.Background(), sampleOrders()); err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestDeployIsNeverRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"success":false,"error":"upstream timeout"}`))
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL)).Deploy(context.Background(), sampleOrders())
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Expected BackendError, got %v", err)
	}
	if be.Message != "upstream timeout" || be.HTTPStatus() != http.StatusBadGateway {
		t.Errorf("Expected message and status from body, got %q %d", be.Message, be.StatusCode)
	}
	if calls != 1 {
		t.Errorf("Expected exactly one deploy attempt, got %d", calls)
	}
}

func TestDeployParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"success": true, "total_orders": 2, "successful": 1, "failed": 1,
			"results": [
				{"success": true, "order_id": "240112000123456", "symbol": "NIFTY24JANFUT", "lots": 1, "quantity": 50,
				 "status": "COMPLETE", "filled_quantity": 50, "average_price": 21750.35},
				{"index": 1, "success": false, "symbol": "NIFTY24JAN18000PE", "lots": 2, "status": "REJECTED",
				 "error": "Insufficient margin"}
			]
		}`))
	}))
	defer srv.Close()

	summary, err := New(testConfig(srv.URL)).Deploy(context.Background(), sampleOrders())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.TotalOrders != 2 || summary.Successful != 1 || summary.Failed != 1 {
		t.Errorf("Unexpected counters %+v", summary)
	}

	first := summary.Results[0]
	if first.RequestIndex != 0 || first.OrderID != "240112000123456" || first.Status != types.StatusComplete {
		t.Errorf("Unexpected first result %+v", first)
	}
	if !first.AveragePrice.Equal(decimal.RequireFromString("21750.35")) || first.FilledQuantity != 50 {
		t.Errorf("Expected fill details, got %+v", first)
	}
	second := summary.Results[1]
	if second.RequestIndex != 1 || second.ErrorMessage != "Insufficient margin" || second.Status != types.StatusRejected {
		t.Errorf("Unexpected second result %+v", second)
	}
}

func TestBatchStatusSkipsUnknownIDs(t *testing.T) {
	var got batchStatusRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"success": true, "results": [
			{"success": true, "order_id": "1", "status": "OPEN", "filled_quantity": 0, "average_price": 0},
			{"success": false, "order_id": "2", "error": "Order not found"},
			{"success": true, "order_id": "3", "status": "TRIGGER PENDING", "status_message": "waiting"}
		]}`))
	}))
	defer srv.Close()

	statuses, err := New(testConfig(srv.URL)).OrderStatuses(context.Background(), []string{"1", "2", "3"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got.OrderIDs) != 3 {
		t.Errorf("Expected 3 ids sent, got %v", got.OrderIDs)
	}
	if len(statuses) != 2 {
		t.Fatalf("Expected unknown id omitted, got %+v", statuses)
	}
	if statuses[1].Status != types.StatusTriggerPending || statuses[1].StatusMessage != "waiting" {
		t.Errorf("Unexpected status %+v", statuses[1])
	}
}

func TestSingleStatusFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case DefaultStatusPath + "/1":
			w.Write([]byte(`{"success": true, "order_id": "1", "status": "COMPLETE", "filled_quantity": 75, "average_price": "99.95"}`))
		case DefaultStatusPath + "/2":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchStatusPath = ""
	statuses, err := New(cfg).OrderStatuses(context.Background(), []string{"1", "2"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(statuses) != 1 || statuses[0].FilledQuantity != 75 {
		t.Fatalf("Expected only order 1, got %+v", statuses)
	}
	if !statuses[0].AveragePrice.Equal(decimal.RequireFromString("99.95")) {
		t.Errorf("Expected average price 99.95, got %s", statuses[0].AveragePrice)
	}
}

func TestPricesSentAsExactDecimals(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Write([]byte(`{"success":true,"available_balance":1,"total_required":1,"sufficient":true}`))
	}))
	defer srv.Close()

	price := decimal.RequireFromString("21750.123456789012345")
	orders := []types.Order{{Symbol: "NIFTY24JANFUT", Exchange: types.ExchangeNFO, Side: types.SideBuy, Lots: 1,
		Kind: types.KindLimit, LimitPrice: &price, Product: types.ProductNRML}}
	if _, err := New(testConfig(srv.URL)).CheckMargin(context.Background(), orders); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(body, `"price":21750.123456789012345`) {
		t.Errorf("Expected exact unquoted price in body, got %s", body)
	}
}
