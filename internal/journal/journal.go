package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"basket-console/internal/interfaces"
	"basket-console/internal/logger"
	"basket-console/internal/types"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Journal persists deployments and order statuses in SQLite so a later
// process can resume tracking.
type Journal struct {
	db *sql.DB
}

var _ interfaces.DeploymentSink = (*Journal)(nil)

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Open opens (or creates) the journal at path with WAL mode and schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	logger.Debug(context.Background(), "Journal opened", "path", path)
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS deployments (
			id          TEXT    PRIMARY KEY,
			fingerprint TEXT    NOT NULL,
			deployed_at INTEGER NOT NULL,
			total       INTEGER NOT NULL,
			successful  INTEGER NOT NULL,
			failed      INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS legs (
			deployment_id  TEXT    NOT NULL,
			idx            INTEGER NOT NULL,
			symbol         TEXT    NOT NULL,
			exchange       TEXT,
			side           TEXT,
			lots           INTEGER,
			quantity       INTEGER,
			role           TEXT,
			group_id       TEXT,
			success        INTEGER NOT NULL,
			order_id       TEXT,
			status         TEXT    NOT NULL,
			filled         INTEGER,
			avg_price      TEXT,
			error          TEXT,
			status_message TEXT,
			PRIMARY KEY (deployment_id, idx)
		);

		CREATE INDEX IF NOT EXISTS legs_order_id ON legs(order_id);
	`)
	return err
}

func (j *Journal) RecordDeployment(ctx context.Context, orders []types.Order, summary types.DeploymentSummary) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO deployments (id, fingerprint, deployed_at, total, successful, failed) VALUES (?, ?, ?, ?, ?, ?)`,
		summary.DeploymentID, summary.Fingerprint, summary.DeployedAt.UnixMilli(),
		summary.TotalOrders, summary.Successful, summary.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert deployment: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO legs (deployment_id, idx, symbol, exchange, side, lots, quantity, role, group_id,
			success, order_id, status, filled, avg_price, error, status_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range summary.Results {
		var exchange, side string
		if r.RequestIndex >= 0 && r.RequestIndex < len(orders) {
			exchange = string(orders[r.RequestIndex].Exchange)
			side = string(orders[r.RequestIndex].Side)
		}
		_, err := stmt.ExecContext(ctx,
			summary.DeploymentID, r.RequestIndex, r.Symbol, exchange, side, r.Lots, r.Quantity,
			string(r.Role), r.GroupID, r.Success, r.OrderID, string(r.Status), r.FilledQuantity,
			r.AveragePrice.String(), r.ErrorMessage, r.StatusMessage,
		)
		if err != nil {
			return fmt.Errorf("insert leg %d: %w", r.RequestIndex, err)
		}
	}
	return tx.Commit()
}

// RecordStatuses updates every leg carrying one of the order ids. UNKNOWN
// results leave the stored status untouched.
func (j *Journal) RecordStatuses(ctx context.Context, statuses []types.OrderStatus) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE legs SET status = ?, filled = ?, avg_price = ?, status_message = ? WHERE order_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, st := range statuses {
		if st.Status == types.StatusUnknown {
			continue
		}
		if _, err := stmt.ExecContext(ctx, string(st.Status), st.FilledQuantity, st.AveragePrice.String(), st.StatusMessage, st.OrderID); err != nil {
			return fmt.Errorf("update %s: %w", st.OrderID, err)
		}
	}
	return tx.Commit()
}

// OpenOrderIDs returns placed orders whose last known status is not terminal,
// oldest deployment first.
func (j *Journal) OpenOrderIDs(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT l.order_id FROM legs l JOIN deployments d ON d.id = l.deployment_id
		WHERE l.success = 1 AND l.order_id <> '' AND l.status NOT IN ('COMPLETE', 'CANCELLED', 'REJECTED', 'FAILED')
		ORDER BY d.deployed_at, l.idx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Recent returns the latest n deployments, newest first, with their legs.
func (j *Journal) Recent(ctx context.Context, n int) ([]types.DeploymentSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, fingerprint, deployed_at, total, successful, failed
		FROM deployments ORDER BY deployed_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	var out []types.DeploymentSummary
	for rows.Next() {
		var s types.DeploymentSummary
		var at int64
		if err := rows.Scan(&s.DeploymentID, &s.Fingerprint, &at, &s.TotalOrders, &s.Successful, &s.Failed); err != nil {
			rows.Close()
			return nil, err
		}
		s.DeployedAt = time.UnixMilli(at)
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		legs, err := j.legs(ctx, out[i].DeploymentID)
		if err != nil {
			return nil, err
		}
		out[i].Results = legs
	}
	return out, nil
}

func (j *Journal) legs(ctx context.Context, deploymentID string) ([]types.DeployedOrderResult, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT idx, symbol, lots, quantity, role, group_id, success, order_id, status, filled, avg_price, error, status_message
		FROM legs WHERE deployment_id = ? ORDER BY idx`, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.DeployedOrderResult
	for rows.Next() {
		var r types.DeployedOrderResult
		var role, status string
		var avg decimal.NullDecimal
		if err := rows.Scan(&r.RequestIndex, &r.Symbol, &r.Lots, &r.Quantity, &role, &r.GroupID, &r.Success,
			&r.OrderID, &status, &r.FilledQuantity, &avg, &r.ErrorMessage, &r.StatusMessage); err != nil {
			return nil, fmt.Errorf("scan leg of %s: %w", deploymentID, err)
		}
		r.Role = types.LegRole(role)
		r.Status = types.ParseBrokerStatus(status)
		r.AveragePrice = avg.Decimal
		out = append(out, r)
	}
	return out, rows.Err()
}
