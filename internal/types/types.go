package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
	ExchangeNFO Exchange = "NFO"
	ExchangeBFO Exchange = "BFO"
	ExchangeMCX Exchange = "MCX"
	ExchangeCDS Exchange = "CDS"
	ExchangeBCD Exchange = "BCD"
)

func (e Exchange) Valid() bool {
	switch e {
	case ExchangeNSE, ExchangeBSE, ExchangeNFO, ExchangeBFO, ExchangeMCX, ExchangeCDS, ExchangeBCD:
		return true
	}
	return false
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// OrderKind is the order type. SL_M is sent on the wire as "SL-M".
type OrderKind string

const (
	KindMarket OrderKind = "MARKET"
	KindLimit  OrderKind = "LIMIT"
	KindSL     OrderKind = "SL"
	KindSLM    OrderKind = "SL_M"
)

func (k OrderKind) Valid() bool {
	switch k {
	case KindMarket, KindLimit, KindSL, KindSLM:
		return true
	}
	return false
}

// RequiresPrice reports whether a limit price must accompany this kind.
func (k OrderKind) RequiresPrice() bool { return k == KindLimit || k == KindSL }

// RequiresTrigger reports whether a trigger price must accompany this kind.
func (k OrderKind) RequiresTrigger() bool { return k == KindSL || k == KindSLM }

// Wire returns the broker order_type value.
func (k OrderKind) Wire() string {
	if k == KindSLM {
		return "SL-M"
	}
	return string(k)
}

// UnmarshalText accepts both "SL_M" and the broker spelling "SL-M".
func (k *OrderKind) UnmarshalText(b []byte) error {
	*k = ParseOrderKind(string(b))
	return nil
}

func ParseOrderKind(s string) OrderKind {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "SL-M" {
		return KindSLM
	}
	return OrderKind(s)
}

type Product string

const (
	ProductMIS  Product = "MIS"
	ProductNRML Product = "NRML"
	ProductCNC  Product = "CNC"
)

func (p Product) Valid() bool {
	return p == ProductMIS || p == ProductNRML || p == ProductCNC
}

// LegRole is an informational tag describing a leg's place in a strategy.
type LegRole string

const (
	RoleNone    LegRole = ""
	RoleFuture  LegRole = "future"
	RoleHedge   LegRole = "hedge"
	RoleSellLeg LegRole = "sell_leg"
	RoleBuyLeg  LegRole = "buy_leg"
)

func (r LegRole) Valid() bool {
	switch r {
	case RoleNone, RoleFuture, RoleHedge, RoleSellLeg, RoleBuyLeg:
		return true
	}
	return false
}

const DefaultVariety = "regular"

// Order is one basket line item.
type Order struct {
	Symbol       string           `json:"tradingsymbol"`
	Exchange     Exchange         `json:"exchange"`
	Side         Side             `json:"transaction_type"`
	Lots         int              `json:"lots"`
	LotSize      int              `json:"lot_size,omitempty"`
	Kind         OrderKind        `json:"order_type"`
	LimitPrice   *decimal.Decimal `json:"price,omitempty"`
	TriggerPrice *decimal.Decimal `json:"trigger_price,omitempty"`
	Product      Product          `json:"product"`
	Variety      string           `json:"variety"`
	Role         LegRole          `json:"leg_role,omitempty"`
	GroupID      string           `json:"leg_group_id,omitempty"`
	Tag          string           `json:"tag,omitempty"`
}

// Quantity returns lots multiplied by lot size, or 0 when the lot size is unknown.
func (o Order) Quantity() int {
	if o.LotSize <= 0 {
		return 0
	}
	return o.Lots * o.LotSize
}

type BrokerStatus string

const (
	StatusComplete       BrokerStatus = "COMPLETE"
	StatusOpen           BrokerStatus = "OPEN"
	StatusPending        BrokerStatus = "PENDING"
	StatusTriggerPending BrokerStatus = "TRIGGER_PENDING"
	StatusCancelled      BrokerStatus = "CANCELLED"
	StatusRejected       BrokerStatus = "REJECTED"
	StatusFailed         BrokerStatus = "FAILED"
	StatusUnknown        BrokerStatus = "UNKNOWN"
)

// ParseBrokerStatus normalizes a status string from any backend. Spaces and
// hyphens are treated as underscores; anything unrecognized is UNKNOWN.
func ParseBrokerStatus(s string) BrokerStatus {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch st := BrokerStatus(norm); st {
	case StatusComplete, StatusOpen, StatusPending, StatusTriggerPending,
		StatusCancelled, StatusRejected, StatusFailed, StatusUnknown:
		return st
	}
	return StatusUnknown
}

// Terminal reports whether no further transitions are expected.
func (s BrokerStatus) Terminal() bool {
	switch s {
	case StatusComplete, StatusCancelled, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// DeployedOrderResult is the outcome of one submitted leg.
type DeployedOrderResult struct {
	RequestIndex   int             `json:"request_index"`
	Success        bool            `json:"success"`
	OrderID        string          `json:"order_id,omitempty"`
	Symbol         string          `json:"symbol"`
	Lots           int             `json:"lots"`
	Quantity       int             `json:"quantity"`
	Status         BrokerStatus    `json:"status"`
	FilledQuantity int             `json:"filled_quantity"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	ErrorMessage   string          `json:"error,omitempty"`
	StatusMessage  string          `json:"status_message,omitempty"`
	Role           LegRole         `json:"leg_role,omitempty"`
	GroupID        string          `json:"leg_group_id,omitempty"`
}

type DeploymentSummary struct {
	DeploymentID string                `json:"deployment_id"`
	Fingerprint  string                `json:"fingerprint"`
	DeployedAt   time.Time             `json:"deployed_at"`
	TotalOrders  int                   `json:"total_orders"`
	Successful   int                   `json:"successful"`
	Failed       int                   `json:"failed"`
	Results      []DeployedOrderResult `json:"results"`
}

type OrderStatus struct {
	OrderID        string          `json:"order_id"`
	Status         BrokerStatus    `json:"status"`
	FilledQuantity int             `json:"filled_quantity"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	StatusMessage  string          `json:"status_message,omitempty"`
}

// MarginReport is the remote margin evaluation of a basket. Sufficient is
// taken from the remote as-is since it accounts for cross-leg benefits.
type MarginReport struct {
	AvailableBalance decimal.Decimal `json:"available_balance"`
	TotalRequired    decimal.Decimal `json:"total_required"`
	Sufficient       bool            `json:"sufficient"`
}

func (m MarginReport) Remaining() decimal.Decimal {
	return m.AvailableBalance.Sub(m.TotalRequired)
}

// Shortfall is the additional balance needed, zero when covered.
func (m MarginReport) Shortfall() decimal.Decimal {
	if short := m.TotalRequired.Sub(m.AvailableBalance); short.IsPositive() {
		return short
	}
	return decimal.Zero
}

// Badge is the display classification of a broker status.
type Badge struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
}
