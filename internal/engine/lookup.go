package engine

import (
	"sort"
	"strings"

	"covinance/internal/apperr"
	"covinance/internal/galaxy"
	"covinance/internal/market"
)

func priceResult(q market.Quote, price int64) PriceResult {
	return PriceResult{
		Station:   stationRef(q),
		Commodity: q.Commodity,
		Price:     price,
		Supply:    q.Supply,
		Demand:    q.Demand,
	}
}

func sortPrices(ps []PriceResult, ascending bool) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Price != ps[j].Price {
			if ascending {
				return ps[i].Price < ps[j].Price
			}
			return ps[i].Price > ps[j].Price
		}
		if ps[i].Station.DistanceLy != ps[j].Station.DistanceLy {
			return ps[i].Station.DistanceLy < ps[j].Station.DistanceLy
		}
		return ps[i].Station.ID < ps[j].Station.ID
	})
}

func (p *Planner) prices(quotes []market.Quote, commodity string, radius float64, c galaxy.Constraints, buy bool) (PriceList, error) {
	list := PriceList{Commodity: commodity}
	for _, q := range quotes {
		if q.Commodity != commodity {
			continue
		}
		if radius > 0 && q.DistanceLy > radius {
			continue
		}
		var price int64
		if buy {
			if !q.CanBuy() {
				continue
			}
			price = q.Buy()
		} else {
			if !q.CanSell() {
				continue
			}
			price = q.Sell()
		}
		if fits(q, c) {
			list.Items = append(list.Items, priceResult(q, price))
		} else {
			list.Incompatible = append(list.Incompatible, priceResult(q, price))
		}
	}
	sortPrices(list.Items, buy)
	sortPrices(list.Incompatible, buy)
	if len(list.Items) > p.opts.TopN {
		list.Items = list.Items[:p.opts.TopN]
	}
	if len(list.Incompatible) > p.opts.TopN {
		list.Incompatible = list.Incompatible[:p.opts.TopN]
	}
	if len(list.Items) == 0 {
		verb := "sells"
		if !buy {
			verb = "buys"
		}
		if radius > 0 {
			return list, apperr.New(apperr.KindNoResults, "no station within %v ly %s %s", galaxy.RoundLy(radius), verb, commodity)
		}
		return list, apperr.New(apperr.KindNoResults, "no station %s %s", verb, commodity)
	}
	return list, nil
}

// BestBuy lists where commodity is cheapest to buy, ascending by price.
func (p *Planner) BestBuy(quotes []market.Quote, commodity string, radius float64, c galaxy.Constraints) (PriceList, error) {
	return p.prices(quotes, commodity, radius, c, true)
}

// BestSell lists where commodity sells highest, descending by price.
func (p *Planner) BestSell(quotes []market.Quote, commodity string, radius float64, c galaxy.Constraints) (PriceList, error) {
	return p.prices(quotes, commodity, radius, c, false)
}

// RareGoods groups purchasable rare goods by commodity, stations nearest
// first. Groups are ordered by their nearest station.
func (p *Planner) RareGoods(quotes []market.Quote, radius float64) ([]RareGroup, error) {
	by := make(map[string][]PriceResult)
	for _, q := range quotes {
		if !q.Rare || !q.CanBuy() {
			continue
		}
		if radius > 0 && q.DistanceLy > radius {
			continue
		}
		by[q.Commodity] = append(by[q.Commodity], priceResult(q, q.Buy()))
	}
	groups := make([]RareGroup, 0, len(by))
	for commodity, stations := range by {
		sort.SliceStable(stations, func(i, j int) bool {
			if stations[i].Station.DistanceLy != stations[j].Station.DistanceLy {
				return stations[i].Station.DistanceLy < stations[j].Station.DistanceLy
			}
			return stations[i].Station.ID < stations[j].Station.ID
		})
		groups = append(groups, RareGroup{Commodity: commodity, Stations: stations})
	}
	sort.Slice(groups, func(i, j int) bool {
		di, dj := groups[i].Stations[0].Station.DistanceLy, groups[j].Stations[0].Station.DistanceLy
		if di != dj {
			return di < dj
		}
		return groups[i].Commodity < groups[j].Commodity
	})
	if len(groups) == 0 {
		return nil, apperr.New(apperr.KindNoResults, "no rare goods for sale within %v ly", galaxy.RoundLy(radius))
	}
	return groups, nil
}

// InterstellarFactors lists stations offering Interstellar Factors in
// anarchy or low-security systems, nearest first.
func (p *Planner) InterstellarFactors(stations []market.NearbyStation, radius float64) ([]market.NearbyStation, error) {
	var out []market.NearbyStation
	for _, s := range stations {
		if !s.Flags.InterstellarFactors && !s.HasService("interstellar_factors") {
			continue
		}
		if !s.Security.Lawless() {
			continue
		}
		if radius > 0 && s.DistanceLy > radius {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceLy != out[j].DistanceLy {
			return out[i].DistanceLy < out[j].DistanceLy
		}
		return out[i].ID < out[j].ID
	})
	if len(out) == 0 {
		return nil, apperr.New(apperr.KindNoResults, "no Interstellar Factors in anarchy or low-security space within %v ly", galaxy.RoundLy(radius))
	}
	return out, nil
}

// OriginQuotes splits quotes into those at the named system and the rest.
func OriginQuotes(quotes []market.Quote, system string) (origin, rest []market.Quote) {
	for _, q := range quotes {
		if strings.EqualFold(q.SystemName, system) {
			origin = append(origin, q)
		} else {
			rest = append(rest, q)
		}
	}
	return origin, rest
}
