package gatewayobs

import (
	"context"
	"time"

	"basket-console/internal/interfaces"
	"basket-console/internal/logger"
	"basket-console/internal/metrics"
	"basket-console/internal/trace"
	"basket-console/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// observableGateway wraps a Gateway with observability (logging, tracing & metrics)
type observableGateway struct {
	gw      interfaces.Gateway
	metrics *metrics.Metrics
}

// Compile-time interface check
var _ interfaces.Gateway = (*observableGateway)(nil)

// Wrap wraps a gateway with observability middleware. m may be nil.
func Wrap(gw interfaces.Gateway, m *metrics.Metrics) interfaces.Gateway {
	return &observableGateway{
		gw:      gw,
		metrics: m,
	}
}

func (og *observableGateway) observe(op string, started time.Time, err error) {
	if og.metrics != nil {
		og.metrics.ObserveCall(op, started, err)
	}
}

// CheckMargin evaluates basket margin with observability
func (og *observableGateway) CheckMargin(ctx context.Context, orders []types.Order) (types.MarginReport, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.CheckMargin")
	defer span.End()
	span.SetAttributes(attribute.Int("orders", len(orders)))

	logger.DebugSkip(ctx, 1, "Checking basket margin", "orders", len(orders))

	started := time.Now()
	report, err := og.gw.CheckMargin(ctx, orders)
	og.observe("check_margin", started, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to check basket margin", err, "orders", len(orders))
		return types.MarginReport{}, err
	}

	logger.DebugSkip(ctx, 1, "Basket margin checked",
		"available_balance", report.AvailableBalance.String(),
		"total_required", report.TotalRequired.String(),
		"sufficient", report.Sufficient,
	)
	return report, nil
}

// Deploy submits the basket with observability
func (og *observableGateway) Deploy(ctx context.Context, orders []types.Order) (types.DeploymentSummary, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.Deploy")
	defer span.End()
	span.SetAttributes(attribute.Int("orders", len(orders)))

	logger.InfoSkip(ctx, 1, "Deploying basket", "orders", len(orders))

	started := time.Now()
	summary, err := og.gw.Deploy(ctx, orders)
	og.observe("deploy", started, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to deploy basket", err, "orders", len(orders))
		return types.DeploymentSummary{}, err
	}

	span.SetAttributes(
		attribute.Int("successful", summary.Successful),
		attribute.Int("failed", summary.Failed),
	)
	logger.InfoSkip(ctx, 1, "Basket accepted by gateway",
		"results", len(summary.Results),
		"successful", summary.Successful,
		"failed", summary.Failed,
	)
	return summary, nil
}

// OrderStatuses fetches order statuses with observability
func (og *observableGateway) OrderStatuses(ctx context.Context, orderIDs []string) ([]types.OrderStatus, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.OrderStatuses")
	defer span.End()
	span.SetAttributes(attribute.Int("orders", len(orderIDs)))

	logger.DebugSkip(ctx, 1, "Fetching order statuses", "orders", len(orderIDs))

	started := time.Now()
	statuses, err := og.gw.OrderStatuses(ctx, orderIDs)
	og.observe("order_statuses", started, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch order statuses", err, "orders", len(orderIDs))
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Order statuses fetched", "requested", len(orderIDs), "returned", len(statuses))
	return statuses, nil
}
