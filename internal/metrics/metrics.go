package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"basket-console/internal/interfaces"
	"basket-console/internal/logger"
	"basket-console/internal/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for gateway calls, deployments and
// status tracking. It also acts as a DeploymentSink.
type Metrics struct {
	registry *prometheus.Registry

	GatewayCalls    *prometheus.CounterVec   // labels: op, outcome
	GatewayDuration *prometheus.HistogramVec // labels: op
	Deployments     prometheus.Counter
	LegsTotal       *prometheus.CounterVec // labels: outcome
	OrderStatuses   *prometheus.GaugeVec   // labels: status
	PollsTotal      *prometheus.CounterVec // labels: outcome
}

var _ interfaces.DeploymentSink = (*Metrics)(nil)

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_gateway_calls_total",
			Help: "Gateway calls by operation and outcome",
		}, []string{"op", "outcome"}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "basket_gateway_call_duration_seconds",
			Help:    "Gateway call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		Deployments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basket_deployments_total",
			Help: "Baskets accepted by the gateway",
		}),
		LegsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_legs_total",
			Help: "Deployed legs by outcome",
		}, []string{"outcome"}),
		OrderStatuses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "basket_tracked_orders",
			Help: "Tracked orders by broker status as of the latest refresh",
		}, []string{"status"}),
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_status_polls_total",
			Help: "Status poll cycles by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.GatewayCalls,
		m.GatewayDuration,
		m.Deployments,
		m.LegsTotal,
		m.OrderStatuses,
		m.PollsTotal,
	)
	return m
}

// ObserveCall records one gateway call.
func (m *Metrics) ObserveCall(op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GatewayCalls.WithLabelValues(op, outcome).Inc()
	m.GatewayDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObservePoll(err error) {
	if err != nil {
		m.PollsTotal.WithLabelValues("error").Inc()
		return
	}
	m.PollsTotal.WithLabelValues("ok").Inc()
}

func (m *Metrics) RecordDeployment(ctx context.Context, orders []types.Order, summary types.DeploymentSummary) error {
	m.Deployments.Inc()
	m.LegsTotal.WithLabelValues("success").Add(float64(summary.Successful))
	m.LegsTotal.WithLabelValues("failed").Add(float64(summary.Failed))
	return nil
}

func (m *Metrics) RecordStatuses(ctx context.Context, statuses []types.OrderStatus) error {
	m.OrderStatuses.Reset()
	for _, st := range statuses {
		m.OrderStatuses.WithLabelValues(string(st.Status)).Inc()
	}
	return nil
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "Metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
