package gateway

import (
	"encoding/json"

	"basket-console/internal/types"

	"github.com/shopspring/decimal"
)

// wireOrder is the backend's basket line item.
type wireOrder struct {
	Exchange        string `json:"exchange"`
	Tradingsymbol   string `json:"tradingsymbol"`
	TransactionType string `json:"transaction_type"`
	Lots            int    `json:"lots"`
	Quantity        int    `json:"quantity,omitempty"`
	LotSize         int    `json:"lot_size,omitempty"`
	OrderType       string `json:"order_type"`
	Product         string `json:"product"`
	Variety         string `json:"variety"`
	// Prices are sent as exact decimal literals.
	Price        *json.Number `json:"price,omitempty"`
	TriggerPrice *json.Number `json:"trigger_price,omitempty"`
	LegRole      string       `json:"leg_role,omitempty"`
	LegGroupID   string       `json:"leg_group_id,omitempty"`
	Tag          string       `json:"tag,omitempty"`
}

type basketRequest struct {
	Orders []wireOrder `json:"orders"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type marginResponse struct {
	envelope
	AvailableBalance decimal.Decimal `json:"available_balance"`
	TotalRequired    decimal.Decimal `json:"total_required"`
	Sufficient       bool            `json:"sufficient"`
}

type deployResponse struct {
	envelope
	TotalOrders int          `json:"total_orders"`
	Successful  int          `json:"successful"`
	Failed      int          `json:"failed"`
	Results     []wireResult `json:"results"`
}

type wireResult struct {
	Index          *int            `json:"index,omitempty"`
	Success        bool            `json:"success"`
	OrderID        string          `json:"order_id,omitempty"`
	Symbol         string          `json:"symbol"`
	Lots           int             `json:"lots"`
	Quantity       float64         `json:"quantity"`
	Status         string          `json:"status"`
	FilledQuantity float64         `json:"filled_quantity"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	StatusMessage  string          `json:"status_message,omitempty"`
	Error          string          `json:"error,omitempty"`
}

type batchStatusRequest struct {
	OrderIDs []string `json:"order_ids"`
}

type batchStatusResponse struct {
	envelope
	Results []statusResponse `json:"results"`
}

type statusResponse struct {
	envelope
	OrderID        string          `json:"order_id"`
	Status         string          `json:"status"`
	FilledQuantity float64         `json:"filled_quantity"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	StatusMessage  string          `json:"status_message,omitempty"`
}

func toWire(o types.Order) wireOrder {
	w := wireOrder{
		Exchange:        string(o.Exchange),
		Tradingsymbol:   o.Symbol,
		TransactionType: string(o.Side),
		Lots:            o.Lots,
		Quantity:        o.Quantity(),
		LotSize:         o.LotSize,
		OrderType:       o.Kind.Wire(),
		Product:         string(o.Product),
		Variety:         o.Variety,
		LegRole:         string(o.Role),
		LegGroupID:      o.GroupID,
		Tag:             o.Tag,
	}
	if w.Variety == "" {
		w.Variety = types.DefaultVariety
	}
	w.Price = wirePrice(o.LimitPrice)
	w.TriggerPrice = wirePrice(o.TriggerPrice)
	return w
}

func wirePrice(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := json.Number(d.String())
	return &n
}

func toWireOrders(orders []types.Order) []wireOrder {
	out := make([]wireOrder, len(orders))
	for i, o := range orders {
		out[i] = toWire(o)
	}
	return out
}

// fromWireResult converts one leg result; position is used when the backend
// omits the index.
func fromWireResult(position int, r wireResult) types.DeployedOrderResult {
	idx := position
	if r.Index != nil {
		idx = *r.Index
	}
	return types.DeployedOrderResult{
		RequestIndex:   idx,
		Success:        r.Success,
		OrderID:        r.OrderID,
		Symbol:         r.Symbol,
		Lots:           r.Lots,
		Quantity:       int(r.Quantity),
		Status:         types.ParseBrokerStatus(r.Status),
		FilledQuantity: int(r.FilledQuantity),
		AveragePrice:   r.AveragePrice,
		ErrorMessage:   r.Error,
		StatusMessage:  r.StatusMessage,
	}
}

func fromStatusResponse(s statusResponse) types.OrderStatus {
	return types.OrderStatus{
		OrderID:        s.OrderID,
		Status:         types.ParseBrokerStatus(s.Status),
		FilledQuantity: int(s.FilledQuantity),
		AveragePrice:   s.AveragePrice,
		StatusMessage:  s.StatusMessage,
	}
}
