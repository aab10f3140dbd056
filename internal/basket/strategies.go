package basket

import "basket-console/internal/types"

// Instrument identifies one leg's contract.
type Instrument struct {
	Symbol  string `yaml:"symbol"`
	LotSize int    `yaml:"lot_size"`
}

// LegDefaults are the fields shared by every leg a builder produces.
type LegDefaults struct {
	Exchange types.Exchange
	Product  types.Product
	Lots     int
}

func marketLeg(d LegDefaults, inst Instrument, side types.Side, role types.LegRole) types.Order {
	return types.Order{
		Symbol:   inst.Symbol,
		Exchange: d.Exchange,
		Side:     side,
		Lots:     d.Lots,
		LotSize:  inst.LotSize,
		Kind:     types.KindMarket,
		Product:  d.Product,
		Variety:  types.DefaultVariety,
		Role:     role,
	}
}

// FutureHedge builds a directional future with a protective option. The
// hedge is always bought and precedes the future.
func FutureHedge(d LegDefaults, direction types.Side, future, hedge Instrument) []types.Order {
	return []types.Order{
		marketLeg(d, hedge, types.SideBuy, types.RoleHedge),
		marketLeg(d, future, direction, types.RoleFuture),
	}
}

// CreditSpread builds a sold option with a bought wing. The bought leg precedes
// the sold leg.
func CreditSpread(d LegDefaults, sell, buy Instrument) []types.Order {
	return []types.Order{
		marketLeg(d, buy, types.SideBuy, types.RoleBuyLeg),
		marketLeg(d, sell, types.SideSell, types.RoleSellLeg),
	}
}

// ShortStraddle builds a sold ATM call and put with bought OTM hedges.
// Both hedges precede the sold legs.
func ShortStraddle(d LegDefaults, call, put, hedgeCall, hedgePut Instrument) []types.Order {
	return []types.Order{
		marketLeg(d, hedgeCall, types.SideBuy, types.RoleHedge),
		marketLeg(d, hedgePut, types.SideBuy, types.RoleHedge),
		marketLeg(d, call, types.SideSell, types.RoleSellLeg),
		marketLeg(d, put, types.SideSell, types.RoleSellLeg),
	}
}
