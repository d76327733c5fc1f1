package engine

import (
	"errors"
	"testing"

	"covinance/internal/apperr"
	"covinance/internal/galaxy"
	"covinance/internal/market"
	"covinance/internal/remote"
)

func TestBestBuy_AscendingWithTieBreak(t *testing.T) {
	p := NewPlanner(Options{TopN: 10})
	quotes := []market.Quote{
		quote(5, "E", "gold", 9100, -1, 0, 0, 3),
		quote(2, "B", "gold", 9000, -1, 0, 0, 7),
		quote(1, "A", "gold", 9000, -1, 0, 0, 7),
		quote(3, "C", "gold", 9000, -1, 0, 0, 2),
		quote(4, "D", "gold", -1, 9500, 0, 0, 1), // sell only
		quote(6, "F", "silver", 10, -1, 0, 0, 1),
		quote(7, "G", "gold", 8000, -1, 0, 0, 90), // out of range
	}
	list, err := p.BestBuy(quotes, "gold", 50, galaxy.Constraints{})
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{3, 1, 2, 5}
	if len(list.Items) != len(want) {
		t.Fatalf("items = %+v", list.Items)
	}
	for i, id := range want {
		if list.Items[i].Station.ID != id {
			t.Errorf("item %d = station %d, want %d", i, list.Items[i].Station.ID, id)
		}
		if i > 0 && list.Items[i].Price < list.Items[i-1].Price {
			t.Errorf("price decreased at %d", i)
		}
	}
}

func TestBestSell_DescendingAndIncompatibleSeparated(t *testing.T) {
	p := NewPlanner(Options{})
	quotes := []market.Quote{
		quote(1, "A", "gold", -1, 9000, 0, 0, 3),
		withPad(quote(2, "B", "gold", -1, 9900, 0, 0, 4), galaxy.PadSmall),
		quote(3, "C", "gold", -1, 9500, 0, 0, 5),
	}
	list, err := p.BestSell(quotes, "gold", 0, galaxy.Constraints{Pad: galaxy.PadMedium})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 2 || list.Items[0].Station.ID != 3 || list.Items[1].Station.ID != 1 {
		t.Errorf("items = %+v", list.Items)
	}
	if len(list.Incompatible) != 1 || list.Incompatible[0].Station.ID != 2 {
		t.Errorf("incompatible = %+v", list.Incompatible)
	}
}

func TestBestSell_NoResultsMentionsRadius(t *testing.T) {
	p := NewPlanner(Options{})
	_, err := p.BestSell([]market.Quote{quote(1, "A", "gold", 100, -1, 0, 0, 1)}, "gold", 25, galaxy.Constraints{})
	if !errors.Is(err, apperr.NoResults) {
		t.Fatalf("err = %v", err)
	}
	if got := apperr.Reason(err); got != "no station within 25 ly buys gold" {
		t.Errorf("reason = %q", got)
	}
}

func TestRareGoods_GroupedAndSorted(t *testing.T) {
	p := NewPlanner(Options{})
	rare := func(q market.Quote) market.Quote { q.Rare = true; return q }
	quotes := []market.Quote{
		rare(quote(3, "C", "bluemilk", 1200, -1, 0, 0, 30)),
		rare(quote(1, "A", "bluemilk", 1300, -1, 0, 0, 12)),
		rare(quote(2, "B", "lavianbrandy", 900, -1, 0, 0, 8)),
		rare(quote(4, "D", "lavianbrandy", -1, 5000, 0, 0, 2)), // can't buy
		rare(quote(5, "E", "onionhead", 900, -1, 0, 0, 80)),    // out of range
		quote(6, "F", "gold", 9000, -1, 0, 0, 1),
	}
	groups, err := p.RareGoods(quotes, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].Commodity != "lavianbrandy" || groups[1].Commodity != "bluemilk" {
		t.Fatalf("groups = %+v", groups)
	}
	if s := groups[1].Stations; len(s) != 2 || s[0].Station.ID != 1 || s[1].Station.ID != 3 {
		t.Errorf("bluemilk stations = %+v", s)
	}

	if _, err := p.RareGoods(quotes[5:], 50); !errors.Is(err, apperr.NoResults) {
		t.Errorf("err = %v, want NoResults", err)
	}
}

func TestInterstellarFactors_SafeOnly(t *testing.T) {
	p := NewPlanner(Options{})
	st := func(id int64, dist float64, sec galaxy.Security, factors bool) market.NearbyStation {
		s := remote.Station{ID: id, Security: sec}
		if factors {
			s.Services = []string{"interstellar_factors"}
		}
		return market.NearbyStation{Station: s, DistanceLy: dist}
	}
	stations := []market.NearbyStation{
		st(1, 5, galaxy.SecurityHigh, true),
		st(2, 9, galaxy.SecurityAnarchy, true),
		st(3, 4, galaxy.SecurityLow, true),
		st(4, 1, galaxy.SecurityLow, false),
		st(5, 60, galaxy.SecurityAnarchy, true),
	}
	got, err := p.InterstellarFactors(stations, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 2 {
		t.Errorf("got = %+v", got)
	}

	if _, err := p.InterstellarFactors(stations[:1], 50); !errors.Is(err, apperr.NoResults) {
		t.Errorf("err = %v, want NoResults", err)
	}
}

func TestOriginQuotes(t *testing.T) {
	quotes := []market.Quote{
		quote(1, "Lave", "gold", 1, -1, 0, 0, 0),
		quote(2, "Leesti", "gold", -1, 2, 0, 0, 5),
		quote(3, "LAVE", "tea", 1, -1, 0, 0, 0),
	}
	origin, rest := OriginQuotes(quotes, "lave")
	if len(origin) != 2 || len(rest) != 1 || rest[0].StationID != 2 {
		t.Errorf("origin %d rest %+v", len(origin), rest)
	}
}
