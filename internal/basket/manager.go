package basket

import (
	"context"
	"sync"
	"time"

	"basket-console/internal/interfaces"
	"basket-console/internal/logger"
	"basket-console/internal/types"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeCleared  ChangeKind = "cleared"
	ChangeDeployed ChangeKind = "deployed"
)

// Change is delivered to observers after every basket composition change.
type Change struct {
	Kind ChangeKind
	Len  int
}

type Option func(*Manager)

// WithObserver registers a callback for basket composition changes. It is
// invoked synchronously after the manager's lock is released.
func WithObserver(fn func(Change)) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, fn)
	}
}

// WithSinks registers destinations for deployment and status records.
func WithSinks(sinks ...interfaces.DeploymentSink) Option {
	return func(m *Manager) {
		m.sinks = append(m.sinks, sinks...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns one draft basket and the orders tracked from its last deploy.
// It is safe for concurrent use; at most one margin check or deploy runs at
// a time and the basket cannot be edited while a deploy is in flight.
type Manager struct {
	gw interfaces.Gateway

	mu        sync.Mutex
	orders    []types.Order
	version   uint64
	margin    *types.MarginReport
	tracked   []string
	summary   *types.DeploymentSummary
	byOrderID map[string]int
	inFlight  bool
	deploying bool

	observers []func(Change)
	sinks     []interfaces.DeploymentSink
	now       func() time.Time
}

func NewManager(gw interfaces.Gateway, opts ...Option) *Manager {
	m := &Manager{
		gw:        gw,
		byOrderID: make(map[string]int),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add validates and appends one order. Duplicate legs are allowed.
func (m *Manager) Add(order types.Order) error {
	order = normalize(order)
	if err := Validate(order); err != nil {
		return err
	}

	m.mu.Lock()
	if m.deploying {
		m.mu.Unlock()
		return ErrBusy
	}
	m.orders = append(m.orders, order)
	n := m.compositionChangedLocked()
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeAdded, Len: n})
	return nil
}

// AddGroup appends related legs under one new leg group id. Either every leg
// is appended or none is.
func (m *Manager) AddGroup(orders ...types.Order) (string, error) {
	if len(orders) == 0 {
		return "", &ValidationError{Field: "orders", Reason: "leg group must not be empty"}
	}

	groupID := uuid.NewString()
	legs := make([]types.Order, len(orders))
	for i, o := range orders {
		o = normalize(o)
		o.GroupID = groupID
		if err := Validate(o); err != nil {
			return "", err
		}
		legs[i] = o
	}

	m.mu.Lock()
	if m.deploying {
		m.mu.Unlock()
		return "", ErrBusy
	}
	m.orders = append(m.orders, legs...)
	n := m.compositionChangedLocked()
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeAdded, Len: n})
	return groupID, nil
}

// Remove deletes the order at index, keeping the others in their order.
func (m *Manager) Remove(index int) error {
	m.mu.Lock()
	if m.deploying {
		m.mu.Unlock()
		return ErrBusy
	}
	if index < 0 || index >= len(m.orders) {
		err := &IndexError{Index: index, Len: len(m.orders)}
		m.mu.Unlock()
		return err
	}
	m.orders = append(m.orders[:index:index], m.orders[index+1:]...)
	n := m.compositionChangedLocked()
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeRemoved, Len: n})
	return nil
}

// RemoveGroup deletes every leg sharing groupID and returns how many were removed.
func (m *Manager) RemoveGroup(groupID string) (int, error) {
	m.mu.Lock()
	if m.deploying {
		m.mu.Unlock()
		return 0, ErrBusy
	}
	kept := make([]types.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if groupID == "" || o.GroupID != groupID {
			kept = append(kept, o)
		}
	}
	removed := len(m.orders) - len(kept)
	if removed == 0 {
		m.mu.Unlock()
		return 0, ErrGroupNotFound
	}
	m.orders = kept
	n := m.compositionChangedLocked()
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeRemoved, Len: n})
	return removed, nil
}

// Clear empties the basket and ends tracking of previously deployed orders.
func (m *Manager) Clear() error {
	m.mu.Lock()
	if m.deploying {
		m.mu.Unlock()
		return ErrBusy
	}
	m.orders = nil
	m.tracked = nil
	m.summary = nil
	m.byOrderID = make(map[string]int)
	m.compositionChangedLocked()
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeCleared, Len: 0})
	return nil
}

// compositionChangedLocked invalidates results derived from the previous
// basket and returns the new length.
func (m *Manager) compositionChangedLocked() int {
	m.version++
	m.margin = nil
	return len(m.orders)
}

func (m *Manager) notify(c Change) {
	for _, fn := range m.observers {
		fn(c)
	}
}

// Orders returns a copy of the basket in insertion order.
func (m *Manager) Orders() []types.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Order(nil), m.orders...)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// LastMargin returns the margin report for the current basket, if one was
// computed after the last composition change.
func (m *Manager) LastMargin() (types.MarginReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.margin == nil {
		return types.MarginReport{}, false
	}
	return *m.margin, true
}

func (m *Manager) TrackedOrderIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tracked...)
}

// Summary returns the last deployment with statuses as of the latest refresh.
func (m *Manager) Summary() (types.DeploymentSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summary == nil {
		return types.DeploymentSummary{}, false
	}
	s := *m.summary
	s.Results = append([]types.DeployedOrderResult(nil), m.summary.Results...)
	return s, true
}

// Settled reports whether every tracked order has reached a terminal status.
func (m *Manager) Settled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summary == nil {
		return true
	}
	for _, id := range m.tracked {
		if i, ok := m.byOrderID[id]; ok && !m.summary.Results[i].Status.Terminal() {
			return false
		}
	}
	return true
}

// begin reserves the single in-flight slot and snapshots the basket.
func (m *Manager) begin(deploy bool) ([]types.Order, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.orders) == 0 {
		return nil, 0, ErrEmptyBasket
	}
	if m.inFlight {
		return nil, 0, ErrBusy
	}
	m.inFlight = true
	m.deploying = deploy
	return append([]types.Order(nil), m.orders...), m.version, nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.inFlight = false
	m.deploying = false
	m.mu.Unlock()
}

// CheckMargin asks the gateway to evaluate the whole basket in basket order.
// A report for a basket that changed while the request was in flight is
// returned but not kept as current.
func (m *Manager) CheckMargin(ctx context.Context) (types.MarginReport, error) {
	orders, version, err := m.begin(false)
	if err != nil {
		return types.MarginReport{}, err
	}

	report, err := m.gw.CheckMargin(ctx, orders)
	if err != nil {
		m.end()
		logger.ErrorWithErr(ctx, "Basket margin check failed", err, "orders", len(orders))
		return types.MarginReport{}, asRemoteError("check-margin", err)
	}

	m.mu.Lock()
	m.inFlight = false
	if m.version == version {
		r := report
		m.margin = &r
	} else {
		logger.Warn(ctx, "Basket changed during margin check, report not retained",
			"requested_version", version, "current_version", m.version)
	}
	m.mu.Unlock()

	logger.MarginCheck(ctx, report.AvailableBalance.String(), report.TotalRequired.String(), report.Sufficient,
		"orders", len(orders), "remaining", report.Remaining().String())
	return report, nil
}

// Deploy submits the basket in one request. The call is not cancellable once
// sent. On success the basket is cleared and every placed order id becomes
// tracked; on failure the basket is left untouched.
func (m *Manager) Deploy(ctx context.Context) (types.DeploymentSummary, error) {
	orders, _, err := m.begin(true)
	if err != nil {
		return types.DeploymentSummary{}, err
	}

	fingerprint, err := Fingerprint(orders)
	if err != nil {
		m.end()
		return types.DeploymentSummary{}, err
	}

	remote, err := m.gw.Deploy(context.WithoutCancel(ctx), orders)
	if err != nil {
		m.end()
		logger.ErrorWithErr(ctx, "Basket deploy failed", err, "orders", len(orders), "fingerprint", fingerprint)
		return types.DeploymentSummary{}, asRemoteError("deploy", err)
	}

	summary := reconcile(ctx, orders, remote)
	summary.DeploymentID = uuid.NewString()
	summary.Fingerprint = fingerprint
	summary.DeployedAt = m.now()

	m.mu.Lock()
	m.orders = nil
	m.compositionChangedLocked()
	m.tracked = nil
	m.byOrderID = make(map[string]int)
	for i, r := range summary.Results {
		if r.Success {
			m.tracked = append(m.tracked, r.OrderID)
			m.byOrderID[r.OrderID] = i
		}
	}
	stored := summary
	stored.Results = append([]types.DeployedOrderResult(nil), summary.Results...)
	m.summary = &stored
	m.inFlight = false
	m.deploying = false
	m.mu.Unlock()

	for _, r := range summary.Results {
		logger.Leg(ctx, r.Symbol, string(orders[r.RequestIndex].Side), r.Lots, r.OrderID, string(r.Status),
			"success", r.Success, "error", r.ErrorMessage)
	}
	logger.Deployment(ctx, summary.DeploymentID, summary.TotalOrders, summary.Successful, summary.Failed,
		"fingerprint", fingerprint)

	// The orders are live remotely; recording must outlive the caller.
	recCtx := context.WithoutCancel(ctx)
	for _, s := range m.sinks {
		if err := s.RecordDeployment(recCtx, orders, summary); err != nil {
			logger.Warn(ctx, "Failed to record deployment", "deployment_id", summary.DeploymentID, "error", err)
		}
	}

	m.notify(Change{Kind: ChangeDeployed, Len: 0})
	return summary, nil
}

// Resume tracks orders placed earlier, for example by a previous process.
// Their status is UNKNOWN until the next refresh. It replaces any tracked
// deployment and fails with ErrBusy while a deploy is in flight.
func (m *Manager) Resume(ids ...string) error {
	ids = dedupe(ids)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deploying {
		return ErrBusy
	}
	summary := &types.DeploymentSummary{
		TotalOrders: len(ids),
		Successful:  len(ids),
		Results:     make([]types.DeployedOrderResult, len(ids)),
	}
	m.tracked = ids
	m.byOrderID = make(map[string]int, len(ids))
	for i, id := range ids {
		summary.Results[i] = types.DeployedOrderResult{
			RequestIndex: i,
			Success:      true,
			OrderID:      id,
			Status:       types.StatusUnknown,
		}
		m.byOrderID[id] = i
	}
	m.summary = summary
	return nil
}

// reconcile aligns the gateway's results with the submitted orders so there
// is exactly one result per order, in order, with counters that add up.
func reconcile(ctx context.Context, orders []types.Order, remote types.DeploymentSummary) types.DeploymentSummary {
	results := make([]types.DeployedOrderResult, len(orders))
	seen := make([]bool, len(orders))

	for _, r := range remote.Results {
		idx := r.RequestIndex
		if idx < 0 || idx >= len(orders) || seen[idx] {
			logger.Warn(ctx, "Discarding unmatched deploy result", "index", idx, "symbol", r.Symbol, "order_id", r.OrderID)
			continue
		}
		seen[idx] = true
		results[idx] = r
	}

	summary := types.DeploymentSummary{TotalOrders: len(orders)}
	for i, o := range orders {
		r := results[i]
		if !seen[i] {
			r = types.DeployedOrderResult{ErrorMessage: "no result returned for leg"}
		}
		r.RequestIndex = i
		if r.Symbol == "" {
			r.Symbol = o.Symbol
		}
		if r.Lots == 0 {
			r.Lots = o.Lots
		}
		if r.Quantity == 0 {
			r.Quantity = o.Quantity()
		}
		r.Role = o.Role
		r.GroupID = o.GroupID
		r.Status = types.ParseBrokerStatus(string(r.Status))

		if r.Success && r.OrderID == "" {
			r.Success = false
			if r.ErrorMessage == "" {
				r.ErrorMessage = "order accepted without an order id"
			}
		}
		if !r.Success {
			r.OrderID = ""
			if r.ErrorMessage == "" {
				r.ErrorMessage = r.StatusMessage
			}
			if r.ErrorMessage == "" {
				r.ErrorMessage = "order placement failed"
			}
			if r.Status != types.StatusRejected && r.Status != types.StatusCancelled {
				r.Status = types.StatusFailed
			}
			summary.Failed++
		} else {
			summary.Successful++
		}
		results[i] = r
	}
	summary.Results = results

	if remote.TotalOrders != 0 && (remote.TotalOrders != summary.TotalOrders ||
		remote.Successful != summary.Successful || remote.Failed != summary.Failed) {
		logger.Warn(ctx, "Deploy counters disagree with leg results",
			"remote_total", remote.TotalOrders, "remote_successful", remote.Successful, "remote_failed", remote.Failed,
			"total", summary.TotalOrders, "successful", summary.Successful, "failed", summary.Failed)
	}
	return summary
}

// RefreshStatus queries the status of ids, or of every tracked order when
// none are given. The result has one entry per distinct id in request order;
// ids the backend does not report are UNKNOWN.
func (m *Manager) RefreshStatus(ctx context.Context, ids ...string) ([]types.OrderStatus, error) {
	if len(ids) == 0 {
		ids = m.TrackedOrderIDs()
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []types.OrderStatus{}, nil
	}

	remote, err := m.gw.OrderStatuses(ctx, ids)
	if err != nil {
		logger.ErrorWithErr(ctx, "Order status refresh failed", err, "orders", len(ids))
		return nil, asRemoteError("order-status", err)
	}

	byID := make(map[string]types.OrderStatus, len(remote))
	for _, st := range remote {
		byID[st.OrderID] = st
	}

	statuses := make([]types.OrderStatus, len(ids))
	for i, id := range ids {
		st, ok := byID[id]
		if !ok {
			st = types.OrderStatus{OrderID: id, Status: types.StatusUnknown}
		}
		st.Status = types.ParseBrokerStatus(string(st.Status))
		statuses[i] = st
	}

	m.mu.Lock()
	for _, st := range statuses {
		m.applyLocked(st)
	}
	m.mu.Unlock()

	for _, s := range m.sinks {
		if err := s.RecordStatuses(ctx, statuses); err != nil {
			logger.Warn(ctx, "Failed to record order statuses", "orders", len(statuses), "error", err)
		}
	}
	return statuses, nil
}

// ApplyStatus merges a pushed status update into the tracked results. It
// reports false when the order is not tracked.
func (m *Manager) ApplyStatus(st types.OrderStatus) bool {
	st.Status = types.ParseBrokerStatus(string(st.Status))
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(st)
}

func (m *Manager) applyLocked(st types.OrderStatus) bool {
	i, ok := m.byOrderID[st.OrderID]
	if !ok || m.summary == nil {
		return false
	}
	r := &m.summary.Results[i]
	// An order the backend no longer reports keeps its last known state.
	if st.Status == types.StatusUnknown && r.Status != types.StatusUnknown {
		return true
	}
	r.Status = st.Status
	r.FilledQuantity = st.FilledQuantity
	r.AveragePrice = st.AveragePrice
	r.StatusMessage = st.StatusMessage
	return true
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
