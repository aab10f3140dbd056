package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"basket-console/internal/interfaces"
	"basket-console/internal/logger"
	"basket-console/internal/types"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultPrefix = "basket"
	statusTTL     = 24 * time.Hour
)

type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	Prefix   string
}

// Publisher mirrors deployments and order statuses into Redis hashes and
// announces them on pub/sub channels for dashboards.
type Publisher struct {
	client *goredis.Client
	prefix string
	cb     *breaker
}

var _ interfaces.DeploymentSink = (*Publisher)(nil)

// New connects and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info(ctx, "Connected to Redis", "addr", cfg.Addr)
	return newPublisher(client, cfg.Prefix), nil
}

func newPublisher(client *goredis.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Publisher{client: client, prefix: prefix, cb: newBreaker(5, 10*time.Second)}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

func (p *Publisher) Close() error { return p.client.Close() }

func (p *Publisher) orderKey(id string) string      { return p.prefix + ":order:" + id }
func (p *Publisher) deploymentKey(id string) string { return p.prefix + ":deployment:" + id }
func (p *Publisher) ordersChannel() string          { return "pub:" + p.prefix + ":orders" }
func (p *Publisher) deploymentsChannel() string     { return "pub:" + p.prefix + ":deployments" }

func (p *Publisher) RecordDeployment(ctx context.Context, orders []types.Order, summary types.DeploymentSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	return p.cb.execute(func() error {
		_, err := p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, p.deploymentKey(summary.DeploymentID), deploymentFields(summary, payload))
			pipe.Expire(ctx, p.deploymentKey(summary.DeploymentID), statusTTL)
			for _, r := range summary.Results {
				if r.OrderID == "" {
					continue
				}
				pipe.HSet(ctx, p.orderKey(r.OrderID), resultFields(summary.DeploymentID, r))
				pipe.Expire(ctx, p.orderKey(r.OrderID), statusTTL)
			}
			pipe.Publish(ctx, p.deploymentsChannel(), string(payload))
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis deployment %s: %w", summary.DeploymentID, err)
		}
		return nil
	})
}

func (p *Publisher) RecordStatuses(ctx context.Context, statuses []types.OrderStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	return p.cb.execute(func() error {
		pipe := p.client.Pipeline()
		for _, st := range statuses {
			if st.Status == types.StatusUnknown {
				continue
			}
			b, err := json.Marshal(st)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, p.orderKey(st.OrderID), statusFields(st))
			pipe.Publish(ctx, p.ordersChannel(), string(b))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis status batch (%d orders): %w", len(statuses), err)
		}
		return nil
	})
}

func deploymentFields(s types.DeploymentSummary, payload []byte) map[string]interface{} {
	return map[string]interface{}{
		"fingerprint": s.Fingerprint,
		"deployed_at": s.DeployedAt.UnixMilli(),
		"total":       s.TotalOrders,
		"successful":  s.Successful,
		"failed":      s.Failed,
		"data":        string(payload),
	}
}

func resultFields(deploymentID string, r types.DeployedOrderResult) map[string]interface{} {
	return map[string]interface{}{
		"deployment_id": deploymentID,
		"symbol":        r.Symbol,
		"status":        string(r.Status),
		"filled":        r.FilledQuantity,
		"avg_price":     r.AveragePrice.String(),
		"message":       r.StatusMessage,
	}
}

func statusFields(st types.OrderStatus) map[string]interface{} {
	return map[string]interface{}{
		"status":     string(st.Status),
		"filled":     st.FilledQuantity,
		"avg_price":  st.AveragePrice.String(),
		"message":    st.StatusMessage,
		"updated_at": time.Now().UnixMilli(),
	}
}
