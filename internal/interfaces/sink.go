package interfaces

import (
	"context"

	"basket-console/internal/types"
)

// DeploymentSink receives deployment outcomes and status refreshes for
// persistence or fan-out.
type DeploymentSink interface {
	RecordDeployment(ctx context.Context, orders []types.Order, summary types.DeploymentSummary) error
	RecordStatuses(ctx context.Context, statuses []types.OrderStatus) error
}
