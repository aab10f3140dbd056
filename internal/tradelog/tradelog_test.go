package tradelog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"basket-console/internal/types"

	"github.com/shopspring/decimal"
)

func fixedLog(t *testing.T) *Log {
	t.Helper()
	l := New(t.TempDir())
	l.now = func() time.Time { return time.Date(2024, 1, 12, 4, 0, 0, 0, time.UTC) }
	return l
}

func readLines(t *testing.T, p string) []map[string]any {
	t.Helper()
	f, err := os.Open(p)
	if err != nil {
		t.Fatalf("Expected log file %s, got %v", p, err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("Expected JSON line, got %q", sc.Text())
		}
		out = append(out, m)
	}
	return out
}

func TestRecordDeploymentWritesOneLinePerLeg(t *testing.T) {
	l := fixedLog(t)
	price := decimal.RequireFromString("101.5")
	orders := []types.Order{
		{Symbol: "NIFTY24JAN21000PE", Exchange: types.ExchangeNFO, Side: types.SideBuy, Kind: types.KindLimit, LimitPrice: &price, Product: types.ProductNRML},
		{Symbol: "NIFTY24JAN21500PE", Exchange: types.ExchangeNFO, Side: types.SideSell, Kind: types.KindMarket, Product: types.ProductNRML},
	}
	summary := types.DeploymentSummary{
		DeploymentID: "dep-1",
		Results: []types.DeployedOrderResult{
			{RequestIndex: 0, Success: true, OrderID: "1", Symbol: "NIFTY24JAN21000PE", Status: types.StatusOpen},
			{RequestIndex: 1, Symbol: "NIFTY24JAN21500PE", Status: types.StatusRejected, ErrorMessage: "Insufficient margin"},
		},
	}

	if err := l.RecordDeployment(context.Background(), orders, summary); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	lines := readLines(t, filepath.Join(l.Dir(), "2024-01-12.txt"))
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0]["Side"] != "BUY" || lines[0]["Price"] != "101.5" || lines[0]["Time"] != "2024-01-12 09:30:00" {
		t.Errorf("Unexpected first line %v", lines[0])
	}
	if lines[1]["Error"] != "Insufficient margin" || lines[1]["DeploymentID"] != "dep-1" {
		t.Errorf("Unexpected second line %v", lines[1])
	}
}

func TestRecordStatusesUsesStatusDir(t *testing.T) {
	l := fixedLog(t)
	err := l.RecordStatuses(context.Background(), []types.OrderStatus{
		{OrderID: "1", Status: types.StatusComplete, FilledQuantity: 50, AveragePrice: decimal.RequireFromString("99.95")},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	lines := readLines(t, filepath.Join(l.Dir(), "status", "2024-01-12.txt"))
	if len(lines) != 1 || lines[0]["AvgPrice"] != "99.95" {
		t.Errorf("Unexpected status lines %v", lines)
	}
}

func TestCompressOlder(t *testing.T) {
	l := New(t.TempDir())
	old := filepath.Join(l.Dir(), "2023-12-01.txt")
	fresh := filepath.Join(l.Dir(), "2024-01-12.txt")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	if err := l.CompressOlder(7); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := os.Stat(old + ".gz"); err != nil {
		t.Errorf("Expected compressed file, got %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("Expected original removed, got %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("Expected recent file kept, got %v", err)
	}
}
