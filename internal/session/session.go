package session

import (
	"context"
	"errors"

	"basket-console/internal/basket"
	"basket-console/internal/interfaces"
	"basket-console/internal/logger"
	"basket-console/internal/monitor"
	"basket-console/internal/types"

	"github.com/google/uuid"
)

type Config struct {
	Poll monitor.Config
	// AutoTrack starts status polling after every deploy that placed orders.
	AutoTrack bool
}

// Session pairs one basket manager with its status poller. Sessions are
// independent of each other.
type Session struct {
	id      string
	manager *basket.Manager
	poller  *monitor.Poller
	cfg     Config

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a session bound to ctx; cancelling ctx stops its poller.
func New(ctx context.Context, gw interfaces.Gateway, cfg Config, opts ...basket.Option) *Session {
	ctx, cancel := context.WithCancel(ctx)
	m := basket.NewManager(gw, opts...)
	s := &Session{
		id:      uuid.NewString(),
		manager: m,
		poller:  monitor.New(m, cfg.Poll),
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
	logger.Debug(ctx, "Session created", "session_id", s.id)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Manager() *basket.Manager { return s.manager }

// Deploy submits the basket and, with AutoTrack, begins polling the placed
// orders.
func (s *Session) Deploy(ctx context.Context) (types.DeploymentSummary, error) {
	summary, err := s.manager.Deploy(ctx)
	if err != nil {
		return summary, err
	}
	if s.cfg.AutoTrack && len(s.manager.TrackedOrderIDs()) > 0 {
		if err := s.Track(); err != nil {
			logger.Warn(ctx, "Status tracking not started", "session_id", s.id, "error", err)
		}
	}
	return summary, nil
}

// Track starts polling tracked orders. A poller that is already running
// picks up newly tracked ids on its next tick.
func (s *Session) Track() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	err := s.poller.Start(s.ctx)
	if errors.Is(err, monitor.ErrAlreadyRunning) {
		return nil
	}
	return err
}

func (s *Session) StopTracking() {
	s.poller.Stop()
}

func (s *Session) Tracking() bool {
	return s.poller.Running()
}

// Done is closed when the current polling loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.poller.Done()
}

// Clear stops polling and empties the basket.
func (s *Session) Clear() error {
	s.poller.Stop()
	return s.manager.Clear()
}

func (s *Session) Close() {
	s.cancel()
	s.poller.Stop()
	logger.Debug(context.WithoutCancel(s.ctx), "Session closed", "session_id", s.id)
}
