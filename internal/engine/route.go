package engine

import (
	"sort"

	"covinance/internal/apperr"
	"covinance/internal/galaxy"
	"covinance/internal/market"
)

func groupByStation(quotes []market.Quote, keep func(market.Quote) bool) (map[int64][]market.Quote, []int64) {
	by := make(map[int64][]market.Quote)
	var ids []int64
	for _, q := range quotes {
		if keep != nil && !keep(q) {
			continue
		}
		if _, ok := by[q.StationID]; !ok {
			ids = append(ids, q.StationID)
		}
		by[q.StationID] = append(by[q.StationID], q)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return by, ids
}

func stationSet(quotes []market.Quote) map[int64]bool {
	set := make(map[int64]bool)
	for _, q := range quotes {
		set[q.StationID] = true
	}
	return set
}

func bestLeg(ls []TradeLeg) *TradeLeg {
	if len(ls) == 0 {
		return nil
	}
	sortLegs(ls)
	l := ls[0]
	return &l
}

// Circular finds round trips origin -> X -> origin over every station X in
// range: the best outbound leg plus the best return leg, commodities chosen
// independently. Only one intermediate stop is considered. Stations the ship
// cannot dock at are priced as if it could and listed apart.
func (p *Planner) Circular(origin, quotes []market.Quote, c galaxy.Constraints, opts HopOptions) (RoundTrips, error) {
	if len(origin) == 0 {
		return RoundTrips{}, apperr.New(apperr.KindNoResults, "no market data for the origin")
	}
	home := stationSet(origin)
	keep := func(q market.Quote) bool {
		return !home[q.StationID] && (opts.RadiusLy <= 0 || q.DistanceLy <= opts.RadiusLy)
	}
	byStation, ids := groupByStation(quotes, keep)
	homeSells := buildSellIndex(origin, nil)

	anyPad := c
	anyPad.Pad = galaxy.PadAny

	var res RoundTrips
	for _, id := range ids {
		there := byStation[id]
		if fits(there[0], c) {
			if trip := roundTrip(origin, there, homeSells, c); trip.Profit > 0 {
				res.Trips = append(res.Trips, trip)
			}
			continue
		}
		if opts.ShowIncompatible {
			if trip := roundTrip(origin, there, homeSells, anyPad); trip.Profit > 0 {
				res.Incompatible = append(res.Incompatible, trip)
			}
		}
	}
	res.Trips = p.rankTrips(res.Trips)
	res.Incompatible = p.rankTrips(res.Incompatible)
	if len(res.Trips) == 0 {
		return res, noProfit(opts.RadiusLy)
	}
	return res, nil
}

func roundTrip(origin, there []market.Quote, homeSells sellIndex, c galaxy.Constraints) RoundTrip {
	outLegs, _ := legs(origin, buildSellIndex(there, nil), c.CargoCapacity, c)
	backLegs, _ := legs(there, homeSells, c.CargoCapacity, c)
	trip := RoundTrip{Via: stationRef(there[0]), Out: bestLeg(outLegs), Back: bestLeg(backLegs)}
	if trip.Out != nil {
		trip.Profit += trip.Out.Profit
	}
	if trip.Back != nil {
		trip.Profit += trip.Back.Profit
	}
	return trip
}

func (p *Planner) rankTrips(trips []RoundTrip) []RoundTrip {
	sort.SliceStable(trips, func(i, j int) bool {
		if trips[i].Profit != trips[j].Profit {
			return trips[i].Profit > trips[j].Profit
		}
		if trips[i].Via.DistanceLy != trips[j].Via.DistanceLy {
			return trips[i].Via.DistanceLy < trips[j].Via.DistanceLy
		}
		return trips[i].Via.ID < trips[j].Via.ID
	})
	if len(trips) > p.opts.TopN {
		trips = trips[:p.opts.TopN]
	}
	return trips
}

// Chain builds a multi-stop route greedily: from the current station take the
// best leg to a station not yet visited, then repeat from there. Each step is
// locally optimal only; the route as a whole is not. It stops at the hop
// ceiling, when the distance budget cannot cover another leg, or when no
// profitable leg remains. Credits earned on a leg fund the next one.
func (p *Planner) Chain(origin, quotes []market.Quote, c galaxy.Constraints, opts ChainOptions) (Chain, error) {
	if len(origin) == 0 {
		return Chain{}, apperr.New(apperr.KindNoResults, "no market data for the origin")
	}
	hops := opts.MaxHops
	if hops <= 0 {
		hops = p.opts.ChainMaxHops
	}
	if hops > MaxChainHops {
		hops = MaxChainHops
	}
	budget := opts.MaxDistanceLy
	if budget <= 0 && c.MaxJumpRange > 0 {
		budget = c.MaxJumpRange * float64(hops)
	}

	byStation, _ := groupByStation(quotes, withinRadius(opts.RadiusLy))
	visited := stationSet(origin)
	current := origin
	var ch Chain

	for len(ch.Legs) < hops {
		dests := buildSellIndex(quotes, func(q market.Quote) bool {
			return !visited[q.StationID] && (opts.RadiusLy <= 0 || q.DistanceLy <= opts.RadiusLy)
		})
		candidates, _ := legs(current, dests, c.CargoCapacity, c)

		affordable := candidates[:0]
		for _, l := range candidates {
			if budget <= 0 || ch.DistanceLy+l.DistanceLy <= budget {
				affordable = append(affordable, l)
			}
		}
		if len(affordable) == 0 {
			ch.StopReason = StopNoProfit
			if len(candidates) > 0 {
				ch.StopReason = StopDistanceBudget
			}
			break
		}

		next := bestLeg(affordable)
		ch.Legs = append(ch.Legs, *next)
		ch.Profit += next.Profit
		ch.DistanceLy += next.DistanceLy
		visited[next.To.ID] = true
		if c.HasCredits {
			c.Credits += next.Profit
		}
		current = byStation[next.To.ID]
	}
	if ch.StopReason == "" {
		ch.StopReason = StopMaxHops
	}
	if len(ch.Legs) == 0 {
		return ch, noProfit(opts.RadiusLy)
	}
	return ch, nil
}
