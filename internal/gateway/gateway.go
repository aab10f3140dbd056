package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"basket-console/internal/api"
	"basket-console/internal/interfaces"
	"basket-console/internal/types"
)

const (
	DefaultMarginPath      = "/api/strategy/check-basket-margin"
	DefaultDeployPath      = "/api/strategy/deploy-basket"
	DefaultStatusPath      = "/api/order-status"
	DefaultBatchStatusPath = "/api/orders-status/batch"
)

// Config describes the strategy backend. An empty BatchStatusPath makes
// OrderStatuses query each id individually.
type Config struct {
	BaseURL         string
	UserID          string
	MarginPath      string
	DeployPath      string
	StatusPath      string
	BatchStatusPath string
	Timeout         time.Duration
	Retry           *api.RetryConfig
	Logging         bool
}

// BackendError is a failed backend call. Error returns the backend's own
// message when one was supplied.
type BackendError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string { return e.Message }

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) HTTPStatus() int { return e.StatusCode }

// Client talks to the strategy backend over HTTP.
type Client struct {
	http *api.Client
	cfg  Config
}

var _ interfaces.Gateway = (*Client)(nil)

func New(cfg Config, opts ...api.ClientOption) *Client {
	if cfg.MarginPath == "" {
		cfg.MarginPath = DefaultMarginPath
	}
	if cfg.DeployPath == "" {
		cfg.DeployPath = DefaultDeployPath
	}
	if cfg.StatusPath == "" {
		cfg.StatusPath = DefaultStatusPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = api.DefaultRetryConfig()
	}

	base := []api.ClientOption{
		api.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		api.WithTimeout(cfg.Timeout),
		api.WithLogging(cfg.Logging),
		api.WithHeader("Accept", "application/json"),
	}
	if cfg.UserID != "" {
		base = append(base, api.WithUserID(cfg.UserID))
	}
	return &Client{http: api.NewClient(append(base, opts...)...), cfg: cfg}
}

// CheckMargin is read-only and retried on transient failures.
func (c *Client) CheckMargin(ctx context.Context, orders []types.Order) (types.MarginReport, error) {
	req := api.NewRequest(http.MethodPost, c.cfg.MarginPath).
		WithContext(ctx).
		WithBody(basketRequest{Orders: toWireOrders(orders)})

	resp, err := c.http.DoWithRetry(req, c.cfg.Retry)
	if err != nil {
		return types.MarginReport{}, backendError("check-margin", err, "Failed to check margin")
	}

	var out marginResponse
	if err := resp.ParseJSON(&out); err != nil {
		return types.MarginReport{}, &BackendError{Op: "check-margin", StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}
	if !out.Success {
		return types.MarginReport{}, envelopeError("check-margin", resp.StatusCode, out.envelope, "Failed to check margin")
	}

	return types.MarginReport{
		AvailableBalance: out.AvailableBalance,
		TotalRequired:    out.TotalRequired,
		Sufficient:       out.Sufficient,
	}, nil
}

// Deploy places real orders and is never retried.
func (c *Client) Deploy(ctx context.Context, orders []types.Order) (types.DeploymentSummary, error) {
	resp, err := c.http.POST(ctx, c.cfg.DeployPath, basketRequest{Orders: toWireOrders(orders)})
	if err != nil {
		return types.DeploymentSummary{}, backendError("deploy", err, "Failed to deploy basket")
	}

	var out deployResponse
	if err := resp.ParseJSON(&out); err != nil {
		return types.DeploymentSummary{}, &BackendError{Op: "deploy", StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}
	if !out.Success {
		return types.DeploymentSummary{}, envelopeError("deploy", resp.StatusCode, out.envelope, "Failed to deploy basket")
	}

	summary := types.DeploymentSummary{
		TotalOrders: out.TotalOrders,
		Successful:  out.Successful,
		Failed:      out.Failed,
		Results:     make([]types.DeployedOrderResult, len(out.Results)),
	}
	for i, r := range out.Results {
		summary.Results[i] = fromWireResult(i, r)
	}
	return summary, nil
}

// OrderStatuses omits ids the backend reports as unknown.
func (c *Client) OrderStatuses(ctx context.Context, orderIDs []string) ([]types.OrderStatus, error) {
	if c.cfg.BatchStatusPath == "" {
		return c.statusesOneByOne(ctx, orderIDs)
	}

	req := api.NewRequest(http.MethodPost, c.cfg.BatchStatusPath).
		WithContext(ctx).
		WithBody(batchStatusRequest{OrderIDs: orderIDs})

	resp, err := c.http.DoWithRetry(req, c.cfg.Retry)
	if err != nil {
		return nil, backendError("order-status", err, "Failed to refresh order statuses")
	}

	var out batchStatusResponse
	if err := resp.ParseJSON(&out); err != nil {
		return nil, &BackendError{Op: "order-status", StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}
	if !out.Success {
		return nil, envelopeError("order-status", resp.StatusCode, out.envelope, "Failed to refresh order statuses")
	}

	statuses := make([]types.OrderStatus, 0, len(out.Results))
	for _, r := range out.Results {
		if r.OrderID == "" || r.Error != "" {
			continue
		}
		statuses = append(statuses, fromStatusResponse(r))
	}
	return statuses, nil
}

func (c *Client) statusesOneByOne(ctx context.Context, orderIDs []string) ([]types.OrderStatus, error) {
	statuses := make([]types.OrderStatus, 0, len(orderIDs))
	for _, id := range orderIDs {
		req := api.NewRequest(http.MethodGet, c.cfg.StatusPath+"/"+url.PathEscape(id)).WithContext(ctx)

		resp, err := c.http.DoWithRetry(req, c.cfg.Retry)
		if err != nil {
			var se *api.StatusError
			if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
				continue
			}
			return nil, backendError("order-status", err, "Failed to refresh order status")
		}

		var out statusResponse
		if err := resp.ParseJSON(&out); err != nil {
			return nil, &BackendError{Op: "order-status", StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
		}
		if !out.Success {
			continue
		}
		if out.OrderID == "" {
			out.OrderID = id
		}
		statuses = append(statuses, fromStatusResponse(out))
	}
	return statuses, nil
}

// backendError extracts the backend's message from an HTTP error body.
func backendError(op string, err error, fallback string) *BackendError {
	be := &BackendError{Op: op, Message: err.Error(), Err: err}

	var se *api.StatusError
	if !errors.As(err, &se) {
		return be
	}
	be.StatusCode = se.StatusCode

	var env envelope
	if json.Unmarshal(se.Body, &env) == nil {
		if msg := firstNonEmpty(env.Error, env.Message); msg != "" {
			be.Message = msg
			return be
		}
	}
	if body := strings.TrimSpace(string(se.Body)); body != "" {
		be.Message = body
	} else {
		be.Message = fmt.Sprintf("%s (HTTP %d)", fallback, se.StatusCode)
	}
	return be
}

func envelopeError(op string, status int, env envelope, fallback string) *BackendError {
	msg := firstNonEmpty(env.Error, env.Message, fallback)
	return &BackendError{Op: op, StatusCode: status, Message: msg}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
