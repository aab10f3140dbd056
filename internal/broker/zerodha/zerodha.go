package zerodha

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"basket-console/internal/interfaces"
	"basket-console/internal/logger"
	"basket-console/internal/types"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

type Params struct {
	Mode        string // LIVE or DRY_RUN
	APIKey      string
	AccessToken string
}

// kiteClient is the subset of the Kite Connect client the gateway uses.
type kiteClient interface {
	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
	GetBasketMargins(baskparams kiteconnect.GetBasketParams) (kiteconnect.BasketMargins, error)
	GetUserMargins() (kiteconnect.AllMargins, error)
	GetOrderHistory(orderID string) ([]kiteconnect.Order, error)
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
}

// Gateway implements the basket gateway directly against Kite Connect. Legs
// are placed one by one and a failed leg never stops the others.
type Gateway struct {
	p           Params
	kc          kiteClient
	instruments *instrumentCache

	simSeq    atomic.Int64
	simMu     sync.Mutex
	simulated map[string]int // order id -> quantity
}

var _ interfaces.Gateway = (*Gateway)(nil)

func NewGateway(p Params) (*Gateway, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing API key/access token")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newGateway(p, kc), nil
}

func newGateway(p Params, kc kiteClient) *Gateway {
	return &Gateway{
		p:           p,
		kc:          kc,
		instruments: newInstrumentCache(kc),
		simulated:   make(map[string]int),
	}
}

func (g *Gateway) dryRun() bool { return g.p.Mode == "DRY_RUN" }

// quantity resolves the raw quantity of an order, falling back to the
// exchange instrument dump when the order carries no lot size.
func (g *Gateway) quantity(ctx context.Context, o types.Order) (int, error) {
	if q := o.Quantity(); q > 0 {
		return q, nil
	}
	lotSize, err := g.instruments.lotSize(ctx, string(o.Exchange), o.Symbol)
	if err != nil {
		return 0, err
	}
	return o.Lots * lotSize, nil
}

func (g *Gateway) CheckMargin(ctx context.Context, orders []types.Order) (types.MarginReport, error) {
	params := make([]kiteconnect.OrderMarginParam, 0, len(orders))
	commodity := false
	for _, o := range orders {
		qty, err := g.quantity(ctx, o)
		if err != nil {
			return types.MarginReport{}, err
		}
		p := kiteconnect.OrderMarginParam{
			Exchange:        string(o.Exchange),
			Tradingsymbol:   o.Symbol,
			TransactionType: string(o.Side),
			Variety:         o.Variety,
			Product:         string(o.Product),
			OrderType:       o.Kind.Wire(),
			Quantity:        float64(qty),
		}
		if o.LimitPrice != nil {
			p.Price = o.LimitPrice.InexactFloat64()
		}
		if o.TriggerPrice != nil {
			p.TriggerPrice = o.TriggerPrice.InexactFloat64()
		}
		if o.Exchange == types.ExchangeMCX {
			commodity = true
		}
		params = append(params, p)
	}

	basket, err := g.kc.GetBasketMargins(kiteconnect.GetBasketParams{
		OrderParams:       params,
		Compact:           true,
		ConsiderPositions: true,
	})
	if err != nil {
		return types.MarginReport{}, fmt.Errorf("basket margins: %w", err)
	}

	user, err := g.kc.GetUserMargins()
	if err != nil {
		return types.MarginReport{}, fmt.Errorf("user margins: %w", err)
	}

	available := decimal.NewFromFloat(user.Equity.Net)
	if commodity {
		available = available.Add(decimal.NewFromFloat(user.Commodity.Net))
	}
	required := decimal.NewFromFloat(basket.Final.Total)

	// This gateway is the remote side here: Final.Total already carries the
	// hedge benefit, so the verdict is computed once and passed through as is.

	return types.MarginReport{
		AvailableBalance: available,
		TotalRequired:    required,
		Sufficient:       available.GreaterThanOrEqual(required),
	}, nil
}

func (g *Gateway) Deploy(ctx context.Context, orders []types.Order) (types.DeploymentSummary, error) {
	summary := types.DeploymentSummary{
		TotalOrders: len(orders),
		Results:     make([]types.DeployedOrderResult, len(orders)),
	}

	for i, o := range orders {
		r := g.placeLeg(ctx, o)
		r.RequestIndex = i
		if r.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		summary.Results[i] = r
	}
	return summary, nil
}

func (g *Gateway) placeLeg(ctx context.Context, o types.Order) types.DeployedOrderResult {
	r := types.DeployedOrderResult{Symbol: o.Symbol, Lots: o.Lots}

	qty, err := g.quantity(ctx, o)
	if err != nil {
		r.Status = types.StatusFailed
		r.ErrorMessage = err.Error()
		return r
	}
	r.Quantity = qty

	if g.dryRun() {
		id := fmt.Sprintf("SIM-%d-%d", time.Now().UnixNano(), g.simSeq.Add(1))
		g.simMu.Lock()
		g.simulated[id] = qty
		g.simMu.Unlock()

		r.Success = true
		r.OrderID = id
		r.Status = types.StatusComplete
		r.FilledQuantity = qty
		r.StatusMessage = "dry-run"
		return r
	}

	params := kiteconnect.OrderParams{
		Exchange:        string(o.Exchange),
		Tradingsymbol:   o.Symbol,
		Validity:        "DAY",
		Product:         string(o.Product),
		OrderType:       o.Kind.Wire(),
		TransactionType: string(o.Side),
		Quantity:        qty,
		Tag:             o.Tag,
	}
	if o.LimitPrice != nil {
		params.Price = o.LimitPrice.InexactFloat64()
	}
	if o.TriggerPrice != nil {
		params.TriggerPrice = o.TriggerPrice.InexactFloat64()
	}

	resp, err := g.kc.PlaceOrder(o.Variety, params)
	if err != nil {
		r.Status = types.StatusFailed
		r.ErrorMessage = kiteMessage(err)
		return r
	}

	r.Success = true
	r.OrderID = resp.OrderID
	r.Status = types.StatusPending

	// The order book may lag the placement; a missing history keeps PENDING.
	if st, ok, err := g.orderStatus(resp.OrderID); err == nil && ok {
		r.Status = st.Status
		r.FilledQuantity = st.FilledQuantity
		r.AveragePrice = st.AveragePrice
		r.StatusMessage = st.StatusMessage
	} else if err != nil {
		logger.Warn(ctx, "Order placed but status unavailable", "order_id", resp.OrderID, "error", err)
	}
	return r
}

func (g *Gateway) OrderStatuses(ctx context.Context, orderIDs []string) ([]types.OrderStatus, error) {
	statuses := make([]types.OrderStatus, 0, len(orderIDs))
	for _, id := range orderIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if st, ok := g.simulatedStatus(id); ok {
			statuses = append(statuses, st)
			continue
		}
		st, ok, err := g.orderStatus(id)
		if err != nil {
			return nil, fmt.Errorf("order history %s: %w", id, err)
		}
		if ok {
			statuses = append(statuses, st)
		}
	}
	return statuses, nil
}

// orderStatus returns the latest state of an order. ok is false when Kite
// does not know the id.
func (g *Gateway) orderStatus(orderID string) (types.OrderStatus, bool, error) {
	history, err := g.kc.GetOrderHistory(orderID)
	if err != nil {
		if unknownOrder(err) {
			return types.OrderStatus{}, false, nil
		}
		return types.OrderStatus{}, false, err
	}
	if len(history) == 0 {
		return types.OrderStatus{}, false, nil
	}
	return statusFromKiteOrder(history[len(history)-1]), true, nil
}

func (g *Gateway) simulatedStatus(orderID string) (types.OrderStatus, bool) {
	g.simMu.Lock()
	defer g.simMu.Unlock()
	qty, ok := g.simulated[orderID]
	if !ok {
		return types.OrderStatus{}, false
	}
	return types.OrderStatus{
		OrderID:        orderID,
		Status:         types.StatusComplete,
		FilledQuantity: qty,
		StatusMessage:  "dry-run",
	}, true
}

func unknownOrder(err error) bool {
	var kerr kiteconnect.Error
	if !errors.As(err, &kerr) {
		return false
	}
	return kerr.Code == http.StatusNotFound || kerr.ErrorType == kiteconnect.InputError
}

func kiteMessage(err error) string {
	var kerr kiteconnect.Error
	if errors.As(err, &kerr) && kerr.Message != "" {
		return kerr.Message
	}
	return err.Error()
}
