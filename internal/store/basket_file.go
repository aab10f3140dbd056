package store

import (
	"fmt"
	"os"
	"strings"

	"basket-console/internal/basket"
	"basket-console/internal/types"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// BasketFile is a saved basket: free-form orders plus strategy templates.
// Each strategy becomes one leg group.
type BasketFile struct {
	Orders     []OrderSpec    `yaml:"orders"`
	Strategies []StrategySpec `yaml:"strategies"`
}

type OrderSpec struct {
	Symbol       string  `yaml:"symbol"`
	Exchange     string  `yaml:"exchange"`
	Side         string  `yaml:"side"`
	Lots         int     `yaml:"lots"`
	LotSize      int     `yaml:"lot_size"`
	OrderType    string  `yaml:"order_type"`
	Price        *string `yaml:"price"`
	TriggerPrice *string `yaml:"trigger_price"`
	Product      string  `yaml:"product"`
	Variety      string  `yaml:"variety"`
	LegRole      string  `yaml:"leg_role"`
	Tag          string  `yaml:"tag"`
}

type StrategySpec struct {
	Type      string            `yaml:"type"` // future_hedge, credit_spread, short_straddle
	Direction string            `yaml:"direction"`
	Exchange  string            `yaml:"exchange"`
	Product   string            `yaml:"product"`
	Lots      int               `yaml:"lots"`
	Future    basket.Instrument `yaml:"future"`
	Hedge     basket.Instrument `yaml:"hedge"`
	Sell      basket.Instrument `yaml:"sell"`
	Buy       basket.Instrument `yaml:"buy"`
	Call      basket.Instrument `yaml:"call"`
	Put       basket.Instrument `yaml:"put"`
	HedgeCall basket.Instrument `yaml:"hedge_call"`
	HedgePut  basket.Instrument `yaml:"hedge_put"`
}

func LoadBasketFile(path string) (*BasketFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f BasketFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse basket file: %w", err)
	}
	if len(f.Orders) == 0 && len(f.Strategies) == 0 {
		return nil, fmt.Errorf("basket file %s has no orders or strategies", path)
	}
	return &f, nil
}

// Order converts the spec, filling exchange and product from defaults.
// Field validation is left to the basket manager.
func (s OrderSpec) Order(defaults *Config) (types.Order, error) {
	o := types.Order{
		Symbol:   s.Symbol,
		Exchange: types.Exchange(upperOr(s.Exchange, defaults.Defaults.Exchange)),
		Side:     types.Side(strings.ToUpper(s.Side)),
		Lots:     s.Lots,
		LotSize:  s.LotSize,
		Kind:     types.ParseOrderKind(s.OrderType),
		Product:  types.Product(upperOr(s.Product, defaults.Defaults.Product)),
		Variety:  s.Variety,
		Role:     types.LegRole(s.LegRole),
		Tag:      s.Tag,
	}
	if o.Lots == 0 {
		o.Lots = defaults.Defaults.Lots
	}
	var err error
	if o.LimitPrice, err = parsePrice(s.Price); err != nil {
		return types.Order{}, fmt.Errorf("%s: price: %w", s.Symbol, err)
	}
	if o.TriggerPrice, err = parsePrice(s.TriggerPrice); err != nil {
		return types.Order{}, fmt.Errorf("%s: trigger_price: %w", s.Symbol, err)
	}
	return o, nil
}

// Orders expands the strategy into its legs in placement order.
func (s StrategySpec) Orders(defaults *Config) ([]types.Order, error) {
	d := basket.LegDefaults{
		Exchange: types.Exchange(upperOr(s.Exchange, defaults.Defaults.Exchange)),
		Product:  types.Product(upperOr(s.Product, defaults.Defaults.Product)),
		Lots:     s.Lots,
	}
	if d.Lots == 0 {
		d.Lots = defaults.Defaults.Lots
	}

	switch strings.ToLower(s.Type) {
	case "future_hedge":
		dir := types.Side(strings.ToUpper(s.Direction))
		if !dir.Valid() {
			return nil, fmt.Errorf("future_hedge: direction must be BUY or SELL, got %q", s.Direction)
		}
		return basket.FutureHedge(d, dir, s.Future, s.Hedge), nil
	case "credit_spread":
		return basket.CreditSpread(d, s.Sell, s.Buy), nil
	case "short_straddle":
		return basket.ShortStraddle(d, s.Call, s.Put, s.HedgeCall, s.HedgePut), nil
	default:
		return nil, fmt.Errorf("unknown strategy type %q", s.Type)
	}
}

func parsePrice(s *string) (*decimal.Decimal, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*s))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func upperOr(v, fallback string) string {
	if v == "" {
		v = fallback
	}
	return strings.ToUpper(v)
}
