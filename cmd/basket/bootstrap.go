package main

import (
	"context"
	"fmt"
	"io"

	"basket-console/internal/api"
	"basket-console/internal/basket"
	"basket-console/internal/broker/zerodha"
	"basket-console/internal/gateway"
	"basket-console/internal/gateway/gatewayobs"
	"basket-console/internal/interfaces"
	"basket-console/internal/journal"
	"basket-console/internal/logger"
	"basket-console/internal/metrics"
	"basket-console/internal/monitor"
	"basket-console/internal/session"
	"basket-console/internal/store"
	"basket-console/internal/store/redis"
	"basket-console/internal/trace"
	"basket-console/internal/tradelog"
	"basket-console/internal/types"

	"github.com/joho/godotenv"
)

// runtime holds everything a command needs; close releases it.
type runtime struct {
	cfg     *store.Config
	metrics *metrics.Metrics
	gw      interfaces.Gateway
	kite    *zerodha.Gateway
	journal *journal.Journal
	sinks   []interfaces.DeploymentSink
	closers []io.Closer
}

// initializeSystem initializes the logger. Tracing waits for the config.
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads the configuration, applying the --mode override
func loadConfig(ctx context.Context, path, mode string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	if mode != "" && mode != cfg.Mode {
		cfg.Mode = mode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newRuntime(ctx context.Context, cfg *store.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, metrics: metrics.New()}

	if err := trace.Init(trace.Deployment{Mode: cfg.Mode, Gateway: cfg.Gateway}); err != nil {
		logger.Warn(ctx, "Failed to initialize tracer", "error", err)
	}

	if err := rt.initializeGateway(ctx); err != nil {
		return nil, err
	}
	if err := rt.initializeSinks(ctx); err != nil {
		rt.close(ctx)
		return nil, err
	}
	compressOldLogs(ctx, cfg)
	return rt, nil
}

// initializeGateway builds the REST or Kite gateway with observability
func (rt *runtime) initializeGateway(ctx context.Context) error {
	cfg := rt.cfg
	var base interfaces.Gateway

	switch cfg.Gateway {
	case "KITE":
		apiKey, token := cfg.KiteCredentials()
		kite, err := zerodha.NewGateway(zerodha.Params{
			Mode:        cfg.Mode,
			APIKey:      apiKey,
			AccessToken: token,
		})
		if err != nil {
			return fmt.Errorf("kite gateway: %w", err)
		}
		rt.kite = kite
		base = kite
		if cfg.Mode == "DRY_RUN" {
			logger.Info(ctx, "DRY_RUN mode: orders are simulated")
		}
	default:
		userID := cfg.UserID()
		if userID == "" {
			logger.Warn(ctx, "No backend user id set", "env", cfg.Backend.UserIDEnv)
		}
		base = gateway.New(gateway.Config{
			BaseURL:         cfg.Backend.BaseURL,
			UserID:          userID,
			MarginPath:      cfg.Backend.MarginPath,
			DeployPath:      cfg.Backend.DeployPath,
			StatusPath:      cfg.Backend.StatusPath,
			BatchStatusPath: cfg.Backend.BatchStatusPath,
			Timeout:         cfg.Backend.Timeout.Std(),
			Retry: &api.RetryConfig{
				MaxAttempts: cfg.Retry.MaxAttempts,
				InitialWait: cfg.Retry.InitialWait.Std(),
				MaxWait:     cfg.Retry.MaxWait.Std(),
			},
			Logging: cfg.Backend.LogRequests,
		})
	}

	rt.gw = gatewayobs.Wrap(base, rt.metrics)
	logger.Debug(ctx, "Gateway initialized", "gateway", cfg.Gateway, "mode", cfg.Mode)
	return nil
}

// initializeSinks opens every configured deployment record destination
func (rt *runtime) initializeSinks(ctx context.Context) error {
	cfg := rt.cfg
	rt.sinks = append(rt.sinks, rt.metrics, tradelog.New(cfg.TradeLog.Dir))

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		rt.journal = j
		rt.sinks = append(rt.sinks, j)
		rt.closers = append(rt.closers, j)
	}

	if cfg.Redis.Addr != "" {
		pub, err := redis.New(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.RedisPassword(),
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			// Redis is a mirror only; carry on without it.
			logger.Warn(ctx, "Redis publisher disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			rt.sinks = append(rt.sinks, pub)
			rt.closers = append(rt.closers, pub)
		}
	}
	return nil
}

func (rt *runtime) newSession(ctx context.Context, autoTrack bool, onResult func(monitor.Result)) *session.Session {
	return session.New(ctx, rt.gw, session.Config{
		Poll: monitor.Config{
			Interval:        rt.cfg.Tracking.PollInterval.Std(),
			StopWhenSettled: rt.cfg.Tracking.StopWhenSettled,
			OnResult:        onResult,
			Metrics:         rt.metrics,
		},
		AutoTrack: autoTrack,
	}, basket.WithSinks(rt.sinks...))
}

// startOrderFeed streams Kite order updates into the manager when enabled
func (rt *runtime) startOrderFeed(ctx context.Context, m *basket.Manager, onUpdate func(string)) {
	if !rt.cfg.Tracking.OrderFeed || rt.kite == nil || rt.cfg.Mode == "DRY_RUN" {
		return
	}
	apiKey, token := rt.cfg.KiteCredentials()
	feed, err := zerodha.NewOrderFeed(apiKey, token, func(ctx context.Context, st types.OrderStatus) {
		if m.ApplyStatus(st) && onUpdate != nil {
			onUpdate(st.OrderID)
		}
	})
	if err != nil {
		logger.Warn(ctx, "Order feed disabled", "error", err)
		return
	}
	if err := feed.Start(ctx); err != nil {
		logger.Warn(ctx, "Order feed not started", "error", err)
	}
}

// serveMetrics exposes /metrics in the background until ctx ends
func (rt *runtime) serveMetrics(ctx context.Context) {
	if rt.cfg.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := rt.metrics.Serve(ctx, rt.cfg.Metrics.Addr); err != nil {
			logger.ErrorWithErr(ctx, "Metrics endpoint failed", err, "addr", rt.cfg.Metrics.Addr)
		}
	}()
}

func (rt *runtime) close(ctx context.Context) {
	for _, c := range rt.closers {
		if err := c.Close(); err != nil {
			logger.Warn(ctx, "Failed to close resource", "error", err)
		}
	}
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Failed to shut down tracer", "error", err)
	}
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context, cfg *store.Config) {
	if cfg.TradeLog.RetentionDays <= 0 {
		return
	}
	if err := tradelog.New(cfg.TradeLog.Dir).CompressOlder(cfg.TradeLog.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}
