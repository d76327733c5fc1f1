// Package engine ranks trades over market quotes. Everything here is a pure
// function of its inputs: callers fetch quotes, resolve constraints, and pass
// both in per call.
package engine

import (
	"math"
	"sort"
	"time"

	"covinance/internal/apperr"
	"covinance/internal/galaxy"
	"covinance/internal/market"
)

const (
	DefaultTopN           = 5
	DefaultSpeedLyPerHour = 600.0
	DefaultJumpTime       = 45 * time.Second
	DefaultTradeOverhead  = 5 * time.Minute
	DefaultChainMaxHops   = 5
	// MaxChainHops is the hard ceiling regardless of what a caller asks for.
	MaxChainHops = 10
)

// Planner computes routes. It holds only configuration and is safe for
// concurrent use.
type Planner struct {
	opts Options
}

// NewPlanner creates a Planner, filling unset options with defaults.
func NewPlanner(opts Options) *Planner {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.SpeedLyPerHour <= 0 {
		opts.SpeedLyPerHour = DefaultSpeedLyPerHour
	}
	if opts.JumpTime <= 0 {
		opts.JumpTime = DefaultJumpTime
	}
	if opts.TradeOverhead <= 0 {
		opts.TradeOverhead = DefaultTradeOverhead
	}
	if opts.ChainMaxHops <= 0 {
		opts.ChainMaxHops = DefaultChainMaxHops
	}
	if opts.ChainMaxHops > MaxChainHops {
		opts.ChainMaxHops = MaxChainHops
	}
	return &Planner{opts: opts}
}

// TopN is the default result count.
func (p *Planner) TopN() int { return p.opts.TopN }

// WithTopN returns a copy returning n results per ranking; n <= 0 keeps the
// current setting.
func (p *Planner) WithTopN(n int) *Planner {
	if n <= 0 {
		return p
	}
	cp := *p
	cp.opts.TopN = n
	return &cp
}

// sellIndex groups sellable quotes by commodity.
type sellIndex map[string][]market.Quote

func buildSellIndex(quotes []market.Quote, keep func(market.Quote) bool) sellIndex {
	idx := make(sellIndex)
	for _, q := range quotes {
		if !q.CanSell() {
			continue
		}
		if keep != nil && !keep(q) {
			continue
		}
		idx[q.Commodity] = append(idx[q.Commodity], q)
	}
	return idx
}

func fits(q market.Quote, c galaxy.Constraints) bool {
	return q.Pad.Accommodates(c.Pad)
}

// quantity sizes a trade: the smallest of every known limit. A zero supply or
// demand is read as "not reported" rather than "none". With no known limit the
// trade is sized at one unit, so profit equals profit per unit.
func quantity(src, dst market.Quote, cargo int, c galaxy.Constraints) (int64, string) {
	qty, by := int64(math.MaxInt64), ""
	limit := func(v int64, name string) {
		if v < qty {
			qty, by = v, name
		}
	}
	if cargo > 0 {
		limit(int64(cargo), "capacity")
	}
	if dst.Demand > 0 {
		limit(dst.Demand, "demand")
	}
	if src.Supply > 0 {
		limit(src.Supply, "supply")
	}
	if c.HasCredits && src.Buy() > 0 {
		limit(c.Credits/src.Buy(), "credits")
	}
	if by == "" {
		return 1, "unit"
	}
	return qty, by
}

func newLeg(src, dst market.Quote, qty int64, cappedBy string) TradeLeg {
	ppu := dst.Sell() - src.Buy()
	return TradeLeg{
		From:          stationRef(src),
		To:            stationRef(dst),
		Commodity:     src.Commodity,
		BuyPrice:      src.Buy(),
		SellPrice:     dst.Sell(),
		ProfitPerUnit: ppu,
		Quantity:      qty,
		Profit:        qty * ppu,
		CappedBy:      cappedBy,
		DistanceLy:    src.Coordinate.DistanceTo(dst.Coordinate),
	}
}

// legs enumerates every profitable (source, destination) pairing. Pairs where
// either station cannot take the ship go to incompatible.
func legs(sources []market.Quote, dests sellIndex, cargo int, c galaxy.Constraints) (ok, incompatible []TradeLeg) {
	for _, src := range sources {
		if !src.CanBuy() {
			continue
		}
		for _, dst := range dests[src.Commodity] {
			if dst.StationID == src.StationID {
				continue
			}
			if dst.Sell() <= src.Buy() {
				continue
			}
			qty, by := quantity(src, dst, cargo, c)
			if qty <= 0 {
				continue
			}
			leg := newLeg(src, dst, qty, by)
			if fits(src, c) && fits(dst, c) {
				ok = append(ok, leg)
			} else {
				incompatible = append(incompatible, leg)
			}
		}
	}
	return ok, incompatible
}

// legLess ranks by total profit, then profit per unit, then distance, then ids.
func legLess(a, b TradeLeg) bool {
	if a.Profit != b.Profit {
		return a.Profit > b.Profit
	}
	if a.ProfitPerUnit != b.ProfitPerUnit {
		return a.ProfitPerUnit > b.ProfitPerUnit
	}
	if a.To.DistanceLy != b.To.DistanceLy {
		return a.To.DistanceLy < b.To.DistanceLy
	}
	if a.From.ID != b.From.ID {
		return a.From.ID < b.From.ID
	}
	if a.To.ID != b.To.ID {
		return a.To.ID < b.To.ID
	}
	return a.Commodity < b.Commodity
}

func sortLegs(ls []TradeLeg) {
	sort.SliceStable(ls, func(i, j int) bool { return legLess(ls[i], ls[j]) })
}

// bestPerCommodity keeps the top-ranked leg for each commodity.
func bestPerCommodity(ls []TradeLeg) []TradeLeg {
	best := make(map[string]TradeLeg)
	for _, l := range ls {
		if cur, ok := best[l.Commodity]; !ok || legLess(l, cur) {
			best[l.Commodity] = l
		}
	}
	out := make([]TradeLeg, 0, len(best))
	for _, l := range best {
		out = append(out, l)
	}
	sortLegs(out)
	return out
}

func topN(ls []TradeLeg, n int) []TradeLeg {
	if n > 0 && len(ls) > n {
		return ls[:n]
	}
	return ls
}

func withinRadius(radius float64) func(market.Quote) bool {
	if radius <= 0 {
		return nil
	}
	return func(q market.Quote) bool { return q.DistanceLy <= radius }
}

// SingleHop finds, for each commodity bought at origin, the best place to
// sell it, sized to the full hold.
func (p *Planner) SingleHop(origin, quotes []market.Quote, c galaxy.Constraints, opts HopOptions) (HopResult, error) {
	return p.singleHop(origin, quotes, c, c.CargoCapacity, opts)
}

// FillCargo is SingleHop sized to the space left in the hold.
func (p *Planner) FillCargo(origin, quotes []market.Quote, c galaxy.Constraints, opts HopOptions) (HopResult, error) {
	if c.CargoCapacity > 0 && c.FreeCargo() == 0 {
		return HopResult{}, apperr.New(apperr.KindNoResults, "cargo hold is already full (%d/%d)", c.CargoUsed, c.CargoCapacity)
	}
	return p.singleHop(origin, quotes, c, c.FreeCargo(), opts)
}

func (p *Planner) singleHop(origin, quotes []market.Quote, c galaxy.Constraints, cargo int, opts HopOptions) (HopResult, error) {
	if len(origin) == 0 {
		return HopResult{}, apperr.New(apperr.KindNoResults, "no market data for the origin")
	}
	ok, bad := legs(origin, buildSellIndex(quotes, withinRadius(opts.RadiusLy)), cargo, c)
	res := HopResult{Legs: topN(bestPerCommodity(ok), p.opts.TopN), Cargo: cargo}
	if opts.ShowIncompatible {
		res.Incompatible = topN(bestPerCommodity(bad), p.opts.TopN)
	}
	if len(res.Legs) == 0 {
		return res, noProfit(opts.RadiusLy)
	}
	return res, nil
}

// TradeRoute finds the best single commodity to carry from one market to
// another.
func (p *Planner) TradeRoute(from, to []market.Quote, c galaxy.Constraints) (TradeLeg, error) {
	if len(from) == 0 || len(to) == 0 {
		return TradeLeg{}, apperr.New(apperr.KindNoResults, "no market data for one end of the route")
	}
	ok, _ := legs(from, buildSellIndex(to, nil), c.CargoCapacity, c)
	if len(ok) == 0 {
		return TradeLeg{}, apperr.New(apperr.KindNoResults, "nothing bought at %s sells for a profit at %s",
			from[0].SystemName, to[0].SystemName)
	}
	sortLegs(ok)
	return ok[0], nil
}

// ProfitPerHour ranks single-hop candidates by profit over estimated time.
func (p *Planner) ProfitPerHour(origin, quotes []market.Quote, c galaxy.Constraints, opts HopOptions) (HopResult, error) {
	if len(origin) == 0 {
		return HopResult{}, apperr.New(apperr.KindNoResults, "no market data for the origin")
	}
	ok, _ := legs(origin, buildSellIndex(quotes, withinRadius(opts.RadiusLy)), c.CargoCapacity, c)
	ok = bestPerCommodity(ok)
	for i := range ok {
		ok[i].Hours = p.hours(ok[i].DistanceLy, c)
		ok[i].ProfitPerHour = float64(ok[i].Profit) / ok[i].Hours
	}
	sort.SliceStable(ok, func(i, j int) bool {
		if ok[i].ProfitPerHour != ok[j].ProfitPerHour {
			return ok[i].ProfitPerHour > ok[j].ProfitPerHour
		}
		return legLess(ok[i], ok[j])
	})
	res := HopResult{Legs: topN(ok, p.opts.TopN), Cargo: c.CargoCapacity}
	if len(res.Legs) == 0 {
		return res, noProfit(opts.RadiusLy)
	}
	return res, nil
}

// hours estimates one leg: jumps at a fixed time each when jump range is known,
// otherwise distance at a fixed speed, plus docking and trading.
func (p *Planner) hours(distLy float64, c galaxy.Constraints) float64 {
	var travel time.Duration
	switch {
	case distLy <= 0:
	case c.MaxJumpRange > 0:
		jumps := math.Ceil(distLy / c.MaxJumpRange)
		travel = time.Duration(jumps) * p.opts.JumpTime
	default:
		travel = time.Duration(distLy / p.opts.SpeedLyPerHour * float64(time.Hour))
	}
	return (travel + p.opts.TradeOverhead).Hours()
}

func noProfit(radius float64) error {
	if radius > 0 {
		return apperr.New(apperr.KindNoResults, "no profitable trade within %v ly", galaxy.RoundLy(radius))
	}
	return apperr.New(apperr.KindNoResults, "no profitable trade found")
}
