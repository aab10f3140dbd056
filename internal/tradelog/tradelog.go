package tradelog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"basket-console/internal/interfaces"
	"basket-console/internal/types"

	"github.com/klauspost/compress/gzip"
)

var ist = time.FixedZone("IST", 19800)

// LegEntry is one deployed leg as written to the daily file.
type LegEntry struct {
	Time, DeploymentID, Fingerprint, Symbol, Side, OrderID, Status string
	Exchange, Product, OrderType, Role, GroupID                     string
	Lots, Quantity, FilledQty                                       int
	Price                                                           string `json:"Price,omitempty"`
	Error                                                           string `json:"Error,omitempty"`
}

type StatusEntry struct {
	Time, OrderID, Status, Message string
	FilledQty                      int
	AvgPrice                       string
}

// Log appends deployment and status records as JSON lines to one file per
// IST day.
type Log struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

var _ interfaces.DeploymentSink = (*Log)(nil)

// New writes under dir, or TRADER_LOG_DIR, or ./logs.
func New(dir string) *Log {
	if dir == "" {
		dir = logDir()
	}
	return &Log{dir: dir, now: time.Now}
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) dailyFilepath(t time.Time) string {
	return filepath.Join(l.dir, t.In(ist).Format("2006-01-02")+".txt")
}

func (l *Log) statusFilepath(t time.Time) string {
	return filepath.Join(l.dir, "status", t.In(ist).Format("2006-01-02")+".txt")
}

func (l *Log) RecordDeployment(ctx context.Context, orders []types.Order, summary types.DeploymentSummary) error {
	now := l.now().In(ist)
	stamp := now.Format("2006-01-02 15:04:05")

	lines := make([]any, 0, len(summary.Results))
	for _, r := range summary.Results {
		e := LegEntry{
			Time:         stamp,
			DeploymentID: summary.DeploymentID,
			Fingerprint:  summary.Fingerprint,
			Symbol:       r.Symbol,
			OrderID:      r.OrderID,
			Status:       string(r.Status),
			Role:         string(r.Role),
			GroupID:      r.GroupID,
			Lots:         r.Lots,
			Quantity:     r.Quantity,
			FilledQty:    r.FilledQuantity,
			Error:        r.ErrorMessage,
		}
		if r.RequestIndex >= 0 && r.RequestIndex < len(orders) {
			o := orders[r.RequestIndex]
			e.Side = string(o.Side)
			e.Exchange = string(o.Exchange)
			e.Product = string(o.Product)
			e.OrderType = o.Kind.Wire()
			if o.LimitPrice != nil {
				e.Price = o.LimitPrice.String()
			}
		}
		lines = append(lines, e)
	}
	return l.append(l.dailyFilepath(now), lines)
}

func (l *Log) RecordStatuses(ctx context.Context, statuses []types.OrderStatus) error {
	now := l.now().In(ist)
	stamp := now.Format("2006-01-02 15:04:05")

	lines := make([]any, 0, len(statuses))
	for _, st := range statuses {
		lines = append(lines, StatusEntry{
			Time:      stamp,
			OrderID:   st.OrderID,
			Status:    string(st.Status),
			Message:   st.StatusMessage,
			FilledQty: st.FilledQuantity,
			AvgPrice:  st.AveragePrice.String(),
		})
	}
	return l.append(l.statusFilepath(now), lines)
}

func (l *Log) append(p string, lines []any) error {
	if len(lines) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, line := range lines {
		b, err := json.Marshal(line)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(f, string(b)); err != nil {
			return err
		}
	}
	return nil
}

// CompressOlder gzips daily files last modified before the retention window.
func (l *Log) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := l.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// if already gz exists, remove original .txt
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := compressFile(p, gz); err == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	_, err = io.Copy(gw, in)
	if cerr := gw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
	}
	return err
}
