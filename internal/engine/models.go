package engine

import (
	"time"

	"covinance/internal/galaxy"
	"covinance/internal/market"
)

// StationRef identifies one end of a trade or a price quote.
type StationRef struct {
	ID           int64
	Name         string
	System       string
	DistanceLy   float64 // from the query origin, full precision
	Pad          string
	Security     galaxy.Security
	Planetary    bool
	FleetCarrier bool
	UpdatedAt    time.Time
	Stale        bool
}

func stationRef(q market.Quote) StationRef {
	return StationRef{
		ID:           q.StationID,
		Name:         q.StationName,
		System:       q.SystemName,
		DistanceLy:   q.DistanceLy,
		Pad:          q.Pad.String(),
		Security:     q.Security,
		Planetary:    q.Flags.Planetary,
		FleetCarrier: q.Flags.FleetCarrier,
		UpdatedAt:    q.UpdatedAt,
		Stale:        q.Stale,
	}
}

// PriceResult is one station's price for a commodity.
type PriceResult struct {
	Station   StationRef
	Commodity string
	Price     int64
	Supply    int64 `json:",omitempty"`
	Demand    int64 `json:",omitempty"`
}

// PriceList is a ranked best-buy or best-sell answer. Incompatible holds
// stations the ship cannot dock at; they are informational and never ranked
// in with Items.
type PriceList struct {
	Commodity    string
	Items        []PriceResult
	Incompatible []PriceResult `json:",omitempty"`
}

// TradeLeg is buying a commodity at one station and selling it at another.
// Profit = Quantity * (SellPrice - BuyPrice).
type TradeLeg struct {
	From          StationRef
	To            StationRef
	Commodity     string
	BuyPrice      int64
	SellPrice     int64
	ProfitPerUnit int64
	Quantity      int64
	Profit        int64
	CappedBy      string  // which limit set Quantity: capacity, demand, supply, credits or unit
	DistanceLy    float64 // between the two stations
	Hours         float64 `json:",omitempty"`
	ProfitPerHour float64 `json:",omitempty"`
}

// HopResult is a ranked set of single-hop trades.
type HopResult struct {
	Legs         []TradeLeg
	Incompatible []TradeLeg `json:",omitempty"`
	Cargo        int        // units the quantities were sized for; 0 = unknown
}

// RoundTrip is origin -> Via -> origin. Either leg may be missing when only
// one direction is profitable.
type RoundTrip struct {
	Via    StationRef
	Out    *TradeLeg
	Back   *TradeLeg
	Profit int64
}

// RoundTrips is a ranked set of round trips. Incompatible holds trips via
// stations the ship cannot dock at, filled only on request.
type RoundTrips struct {
	Trips        []RoundTrip
	Incompatible []RoundTrip `json:",omitempty"`
}

// Chain stop reasons.
const (
	StopMaxHops        = "max_hops"
	StopDistanceBudget = "distance_budget"
	StopNoProfit       = "no_profitable_leg"
)

// Chain is a greedy multi-stop route.
type Chain struct {
	Legs       []TradeLeg
	Profit     int64
	DistanceLy float64
	StopReason string
}

// RareGroup lists every station within range stocking one rare good,
// nearest first.
type RareGroup struct {
	Commodity string
	Stations  []PriceResult
}

// Options holds planner tuning.
type Options struct {
	TopN           int
	SpeedLyPerHour float64       // used when jump range is unknown
	JumpTime       time.Duration // per jump, used when jump range is known
	TradeOverhead  time.Duration // docking and trading per leg
	ChainMaxHops   int
}

// HopOptions narrows a single-hop search.
type HopOptions struct {
	RadiusLy         float64 // destinations within this distance of the query origin; 0 = any
	ShowIncompatible bool
}

// ChainOptions bounds a greedy chain.
type ChainOptions struct {
	MaxHops       int     // 0 = planner default
	MaxDistanceLy float64 // total travel budget; 0 = jump range x hops when known
	RadiusLy      float64
}
