package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"basket-console/internal/logger"
	"basket-console/internal/metrics"
	"basket-console/internal/types"
)

const DefaultInterval = 3 * time.Second

var ErrAlreadyRunning = errors.New("poller already running")

// Refresher is the part of basket.Manager the poller drives.
type Refresher interface {
	RefreshStatus(ctx context.Context, ids ...string) ([]types.OrderStatus, error)
	Settled() bool
}

// Result is one completed refresh. Err is set when the refresh failed.
type Result struct {
	At       time.Time
	Statuses []types.OrderStatus
	Err      error
}

type Config struct {
	Interval        time.Duration
	StopWhenSettled bool
	OnResult        func(Result)
	Metrics         *metrics.Metrics
}

// Poller refreshes tracked order statuses on a fixed interval until it is
// stopped. At most one loop runs at a time.
type Poller struct {
	r   Refresher
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(r Refresher, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{r: r, cfg: cfg}
}

// Start refreshes immediately and then on every interval tick. The loop
// ends on Stop, on ctx cancellation, or once settled when configured to.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		select {
		case <-p.done:
		default:
			return ErrAlreadyRunning
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.run(loopCtx, done)

	logger.Info(ctx, "Status polling started", "interval", p.cfg.Interval.String())
	return nil
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done is closed when the current loop exits. It is nil before the first Start.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(p.cfg.Interval)
	defer tick.Stop()

	for {
		if p.refresh(ctx) {
			logger.Info(ctx, "All tracked orders settled, polling stopped")
			return
		}
		select {
		case <-ctx.Done():
			logger.Debug(context.WithoutCancel(ctx), "Status polling stopped")
			return
		case <-tick.C:
		}
	}
}

// refresh runs one cycle and reports whether the loop should end.
func (p *Poller) refresh(ctx context.Context) bool {
	statuses, err := p.r.RefreshStatus(ctx)
	if ctx.Err() != nil {
		return false
	}
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObservePoll(err)
	}
	if err != nil {
		logger.Warn(ctx, "Status refresh failed", "error", err)
	}
	if p.cfg.OnResult != nil {
		p.cfg.OnResult(Result{At: time.Now(), Statuses: statuses, Err: err})
	}
	return err == nil && p.cfg.StopWhenSettled && p.r.Settled()
}
