package basket

import (
	"fmt"
	"strings"

	"basket-console/internal/types"

	"github.com/shopspring/decimal"
)

var varieties = map[string]bool{
	"regular": true,
	"amo":     true,
	"co":      true,
	"iceberg": true,
	"auction": true,
}

// normalize fills defaults that do not change the order's meaning.
func normalize(o types.Order) types.Order {
	o.Symbol = strings.TrimSpace(o.Symbol)
	o.Kind = types.ParseOrderKind(string(o.Kind))
	if o.Variety == "" {
		o.Variety = types.DefaultVariety
	}
	return o
}

// Validate checks an order against the basket's field and price rules.
// A limit price is present iff the kind is LIMIT or SL, a trigger price iff
// the kind is SL or SL_M, and both must be positive.
func Validate(o types.Order) error {
	if strings.TrimSpace(o.Symbol) == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if !o.Exchange.Valid() {
		return &ValidationError{Field: "exchange", Reason: fmt.Sprintf("unsupported exchange %q", o.Exchange)}
	}
	if !o.Side.Valid() {
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("must be BUY or SELL, got %q", o.Side)}
	}
	if o.Lots < 1 {
		return &ValidationError{Field: "lots", Reason: fmt.Sprintf("must be at least 1, got %d", o.Lots)}
	}
	if o.LotSize < 0 {
		return &ValidationError{Field: "lot_size", Reason: fmt.Sprintf("must not be negative, got %d", o.LotSize)}
	}
	if !o.Kind.Valid() {
		return &ValidationError{Field: "order_type", Reason: fmt.Sprintf("unsupported order type %q", o.Kind)}
	}
	if !o.Product.Valid() {
		return &ValidationError{Field: "product", Reason: fmt.Sprintf("must be MIS, NRML or CNC, got %q", o.Product)}
	}
	if o.Variety != "" && !varieties[o.Variety] {
		return &ValidationError{Field: "variety", Reason: fmt.Sprintf("unsupported variety %q", o.Variety)}
	}
	if !o.Role.Valid() {
		return &ValidationError{Field: "leg_role", Reason: fmt.Sprintf("unsupported leg role %q", o.Role)}
	}
	if err := checkPrice("price", o.LimitPrice, o.Kind.RequiresPrice(), o.Kind); err != nil {
		return err
	}
	return checkPrice("trigger_price", o.TriggerPrice, o.Kind.RequiresTrigger(), o.Kind)
}

func checkPrice(field string, p *decimal.Decimal, required bool, kind types.OrderKind) error {
	switch {
	case required && p == nil:
		return &ValidationError{Field: field, Reason: fmt.Sprintf("required for %s orders", kind)}
	case !required && p != nil:
		return &ValidationError{Field: field, Reason: fmt.Sprintf("not allowed for %s orders", kind)}
	case required && !p.IsPositive():
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be positive, got %s", p.String())}
	}
	return nil
}
