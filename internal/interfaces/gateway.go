package interfaces

import (
	"context"

	"basket-console/internal/types"
)

// Gateway is the remote collaborator that evaluates margin, places basket
// legs and reports order status.
type Gateway interface {
	CheckMargin(ctx context.Context, orders []types.Order) (types.MarginReport, error)
	// Deploy places every leg independently and returns one result per
	// order. A non-nil error means the batch as a whole was not accepted.
	Deploy(ctx context.Context, orders []types.Order) (types.DeploymentSummary, error)
	// OrderStatuses may omit ids the backend does not know about.
	OrderStatuses(ctx context.Context, orderIDs []string) ([]types.OrderStatus, error)
}
