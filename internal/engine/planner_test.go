package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"covinance/internal/apperr"
	"covinance/internal/galaxy"
	"covinance/internal/market"
	"covinance/internal/remote"
)

// quote builds a quote at x light-years along one axis from the origin.
// Negative prices mean "not traded here".
func quote(station int64, system, commodity string, buy, sell, supply, demand int64, x float64) market.Quote {
	l := remote.Listing{
		StationID:   station,
		StationName: system + " Port",
		SystemName:  system,
		Coordinate:  galaxy.Coordinate{X: x},
		Commodity:   commodity,
		Supply:      supply,
		Demand:      demand,
		Pad:         galaxy.PadLarge,
	}
	if buy >= 0 {
		l.BuyPrice = remote.Price(buy)
	}
	if sell >= 0 {
		l.SellPrice = remote.Price(sell)
	}
	return market.Quote{Listing: l, DistanceLy: math.Abs(x)}
}

func withPad(q market.Quote, pad galaxy.PadSize) market.Quote {
	q.Pad = pad
	return q
}

func TestSingleHop_DemandCapped(t *testing.T) {
	p := NewPlanner(Options{})
	origin := []market.Quote{quote(1, "S", "x", 50, -1, 0, 0, 0)}
	quotes := []market.Quote{quote(2, "T", "x", -1, 80, 0, 60, 10)}
	c := galaxy.Constraints{CargoCapacity: 100}

	res, err := p.SingleHop(origin, quotes, c, HopOptions{RadiusLy: 20})
	if err != nil {
		t.Fatalf("SingleHop: %v", err)
	}
	if len(res.Legs) != 1 {
		t.Fatalf("legs = %d, want 1", len(res.Legs))
	}
	leg := res.Legs[0]
	if leg.Quantity != 60 || leg.Profit != 1800 || leg.CappedBy != "demand" {
		t.Errorf("leg = qty %d profit %d capped by %q, want 60 / 1800 / demand", leg.Quantity, leg.Profit, leg.CappedBy)
	}
	if leg.ProfitPerUnit != 30 {
		t.Errorf("ppu = %d, want 30", leg.ProfitPerUnit)
	}
}

func TestQuantity_Caps(t *testing.T) {
	src := quote(1, "S", "x", 100, -1, 0, 0, 0)
	dst := quote(2, "T", "x", -1, 150, 0, 0, 5)

	tests := []struct {
		name    string
		supply  int64
		demand  int64
		cargo   int
		c       galaxy.Constraints
		wantQty int64
		wantBy  string
	}{
		{"capacity", 0, 0, 100, galaxy.Constraints{}, 100, "capacity"},
		{"supply", 30, 0, 100, galaxy.Constraints{}, 30, "supply"},
		{"demand", 500, 40, 100, galaxy.Constraints{}, 40, "demand"},
		{"credits", 0, 0, 100, galaxy.Constraints{Credits: 2550, HasCredits: true}, 25, "credits"},
		{"broke", 0, 0, 100, galaxy.Constraints{Credits: 50, HasCredits: true}, 0, "credits"},
		{"nothing known", 0, 0, 0, galaxy.Constraints{}, 1, "unit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, d := src, dst
			s.Supply, d.Demand = tt.supply, tt.demand
			qty, by := quantity(s, d, tt.cargo, tt.c)
			if qty != tt.wantQty || by != tt.wantBy {
				t.Errorf("quantity = %d,%q want %d,%q", qty, by, tt.wantQty, tt.wantBy)
			}
		})
	}
}

func TestSingleHop_RankingAndTieBreak(t *testing.T) {
	p := NewPlanner(Options{TopN: 10})
	origin := []market.Quote{
		quote(1, "S", "gold", 100, -1, 0, 0, 0),
		quote(1, "S", "silver", 100, -1, 0, 0, 0),
		quote(1, "S", "tea", 10, -1, 0, 0, 0),
	}
	quotes := []market.Quote{
		quote(2, "A", "gold", -1, 200, 0, 0, 8),   // 100 ppu
		quote(3, "B", "gold", -1, 200, 0, 0, 4),   // same, nearer
		quote(4, "C", "silver", -1, 200, 0, 0, 2), // same total as gold, nearer still
		quote(5, "D", "tea", -1, 20, 0, 0, 1),     // 10 ppu
		quote(6, "E", "tea", -1, 5, 0, 0, 1),      // loss
	}
	c := galaxy.Constraints{CargoCapacity: 10}

	res, err := p.SingleHop(origin, quotes, c, HopOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Legs) != 3 {
		t.Fatalf("legs = %+v", res.Legs)
	}
	if res.Legs[0].Commodity != "silver" || res.Legs[1].Commodity != "gold" || res.Legs[2].Commodity != "tea" {
		t.Errorf("order = %s,%s,%s", res.Legs[0].Commodity, res.Legs[1].Commodity, res.Legs[2].Commodity)
	}
	if res.Legs[1].To.ID != 3 {
		t.Errorf("gold destination = %d, want nearer station 3", res.Legs[1].To.ID)
	}

	again, _ := p.SingleHop(origin, quotes, c, HopOptions{})
	for i := range res.Legs {
		if res.Legs[i] != again.Legs[i] {
			t.Fatalf("repeat query differs at %d", i)
		}
	}
}

func TestSingleHop_RadiusAndNoResults(t *testing.T) {
	p := NewPlanner(Options{})
	origin := []market.Quote{quote(1, "S", "gold", 100, -1, 0, 0, 0)}
	quotes := []market.Quote{quote(2, "Far", "gold", -1, 200, 0, 0, 50)}

	_, err := p.SingleHop(origin, quotes, galaxy.Constraints{}, HopOptions{RadiusLy: 20})
	if !errors.Is(err, apperr.NoResults) {
		t.Fatalf("err = %v, want NoResults", err)
	}
	res, err := p.SingleHop(origin, quotes, galaxy.Constraints{}, HopOptions{RadiusLy: 60})
	if err != nil || len(res.Legs) != 1 {
		t.Fatalf("wider radius: %v %+v", err, res)
	}

	if _, err := p.SingleHop(nil, quotes, galaxy.Constraints{}, HopOptions{}); !errors.Is(err, apperr.NoResults) {
		t.Errorf("empty origin err = %v", err)
	}
}

func TestSingleHop_PadConstraint(t *testing.T) {
	p := NewPlanner(Options{})
	origin := []market.Quote{quote(1, "S", "gold", 100, -1, 0, 0, 0)}
	quotes := []market.Quote{
		withPad(quote(2, "Outpost", "gold", -1, 500, 0, 0, 1), galaxy.PadMedium),
		quote(3, "Big", "gold", -1, 150, 0, 0, 5),
	}
	c := galaxy.Constraints{CargoCapacity: 100, Pad: galaxy.PadLarge}

	res, err := p.SingleHop(origin, quotes, c, HopOptions{ShowIncompatible: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, leg := range res.Legs {
		if leg.To.ID == 2 {
			t.Error("medium-pad station ranked for a large ship")
		}
	}
	if len(res.Incompatible) != 1 || res.Incompatible[0].To.ID != 2 {
		t.Errorf("incompatible = %+v", res.Incompatible)
	}

	hidden, _ := p.SingleHop(origin, quotes, c, HopOptions{})
	if len(hidden.Incompatible) != 0 {
		t.Error("incompatible shown without asking")
	}
}

func TestSingleHop_NeverExceedsCapacity(t *testing.T) {
	p := NewPlanner(Options{TopN: 50})
	var origin, quotes []market.Quote
	for i := int64(0); i < 20; i++ {
		commodity := string(rune('a' + i))
		origin = append(origin, quote(1, "S", commodity, 10+i, -1, 1000*i, 0, 0))
		quotes = append(quotes, quote(2+i, "T", commodity, -1, 100+i*7, 0, 50*i, float64(i)))
	}
	c := galaxy.Constraints{CargoCapacity: 64}
	res, err := p.SingleHop(origin, quotes, c, HopOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, leg := range res.Legs {
		if leg.Quantity > 64 {
			t.Errorf("%s quantity %d exceeds capacity", leg.Commodity, leg.Quantity)
		}
	}
}

func TestFillCargo_UsesRemainingSpace(t *testing.T) {
	p := NewPlanner(Options{})
	origin := []market.Quote{quote(1, "S", "gold", 100, -1, 0, 0, 0)}
	quotes := []market.Quote{quote(2, "T", "gold", -1, 150, 0, 0, 5)}

	res, err := p.FillCargo(origin, quotes, galaxy.Constraints{CargoCapacity: 100, CargoUsed: 70}, HopOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Cargo != 30 || res.Legs[0].Quantity != 30 || res.Legs[0].Profit != 1500 {
		t.Errorf("fill = cargo %d qty %d profit %d", res.Cargo, res.Legs[0].Quantity, res.Legs[0].Profit)
	}

	_, err = p.FillCargo(origin, quotes, galaxy.Constraints{CargoCapacity: 100, CargoUsed: 100}, HopOptions{})
	if !errors.Is(err, apperr.NoResults) {
		t.Errorf("full hold err = %v, want NoResults", err)
	}
}

func TestTradeRoute(t *testing.T) {
	p := NewPlanner(Options{})
	from := []market.Quote{
		quote(1, "A", "gold", 100, -1, 0, 0, 0),
		quote(1, "A", "tea", 10, -1, 0, 0, 0),
	}
	to := []market.Quote{
		quote(2, "B", "gold", -1, 120, 0, 0, 10),
		quote(2, "B", "tea", -1, 60, 0, 0, 10),
	}
	leg, err := p.TradeRoute(from, to, galaxy.Constraints{CargoCapacity: 10})
	if err != nil {
		t.Fatal(err)
	}
	if leg.Commodity != "tea" || leg.Profit != 500 || leg.DistanceLy != 10 {
		t.Errorf("leg = %+v", leg)
	}

	_, err = p.TradeRoute(to, from, galaxy.Constraints{})
	if !errors.Is(err, apperr.NoResults) {
		t.Errorf("reverse err = %v, want NoResults", err)
	}
}

func TestProfitPerHour_PrefersShortHops(t *testing.T) {
	p := NewPlanner(Options{SpeedLyPerHour: 100, TradeOverhead: 6 * time.Minute})
	origin := []market.Quote{
		quote(1, "S", "gold", 100, -1, 0, 0, 0),
		quote(1, "S", "tea", 100, -1, 0, 0, 0),
	}
	quotes := []market.Quote{
		quote(2, "Far", "gold", -1, 300, 0, 0, 200), // 200 profit, 2.1 h
		quote(3, "Near", "tea", -1, 200, 0, 0, 10),  // 100 profit, 0.2 h
	}
	res, err := p.ProfitPerHour(origin, quotes, galaxy.Constraints{}, HopOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Legs[0].Commodity != "tea" {
		t.Errorf("first = %s, want tea", res.Legs[0].Commodity)
	}
	if got := res.Legs[0].Hours; math.Abs(got-0.2) > 1e-9 {
		t.Errorf("hours = %v, want 0.2", got)
	}
}

func TestHours_JumpRange(t *testing.T) {
	p := NewPlanner(Options{JumpTime: time.Minute, TradeOverhead: 4 * time.Minute})
	got := p.hours(25, galaxy.Constraints{MaxJumpRange: 10}) // 3 jumps
	if math.Abs(got-7.0/60) > 1e-9 {
		t.Errorf("hours = %v, want 7 minutes", got)
	}
	if got := p.hours(0, galaxy.Constraints{}); math.Abs(got-4.0/60) > 1e-9 {
		t.Errorf("same-system hours = %v", got)
	}
}
