package remote

import (
	"strings"
	"time"

	"covinance/internal/galaxy"
)

// System is a star system as reported by the market source.
type System struct {
	Name       string
	Coordinate galaxy.Coordinate
	Allegiance string
	Economy    string
	Security   galaxy.Security
}

// StationFlags are the station facts the planner filters on.
type StationFlags struct {
	Planetary           bool `json:"planetary"`
	FleetCarrier        bool `json:"fleet_carrier"`
	Market              bool `json:"market"`
	Outfitting          bool `json:"outfitting"`
	Shipyard            bool `json:"shipyard"`
	BlackMarket         bool `json:"black_market"`
	InterstellarFactors bool `json:"interstellar_factors"`
}

// Station is a station with its system-level facts.
type Station struct {
	ID                int64
	Name              string
	SystemName        string
	Coordinate        galaxy.Coordinate
	Pad               galaxy.PadSize
	Flags             StationFlags
	Services          []string // canonical service ids
	Allegiance        string
	Economy           string
	Security          galaxy.Security
	DistanceToArrival float64 // light-seconds from the arrival star
	UpdatedAt         time.Time
}

// HasService reports whether the station offers the canonical service id.
func (s Station) HasService(id string) bool {
	for _, svc := range s.Services {
		if svc == id {
			return true
		}
	}
	return false
}

// Listing is one station's trade terms for one commodity. BuyPrice is what the
// player pays the station, SellPrice what the station pays the player; either
// may be absent.
type Listing struct {
	StationID   int64
	StationName string
	SystemName  string
	Coordinate  galaxy.Coordinate
	Commodity   string // canonical id
	BuyPrice    *int64
	SellPrice   *int64
	Supply      int64
	Demand      int64
	Pad         galaxy.PadSize
	Flags       StationFlags
	Security    galaxy.Security
	Rare        bool
	UpdatedAt   time.Time
}

// Buy returns the buy price or 0 when absent.
func (l Listing) Buy() int64 {
	if l.BuyPrice == nil {
		return 0
	}
	return *l.BuyPrice
}

// Sell returns the sell price or 0 when absent.
func (l Listing) Sell() int64 {
	if l.SellPrice == nil {
		return 0
	}
	return *l.SellPrice
}

// CanBuy reports whether the player can buy this commodity here.
func (l Listing) CanBuy() bool {
	return l.BuyPrice != nil && *l.BuyPrice > 0
}

// CanSell reports whether the station buys this commodity from the player.
func (l Listing) CanSell() bool {
	return l.SellPrice != nil && *l.SellPrice > 0
}

// Price returns an optional price pointer; negative prices are treated as absent.
func Price(v int64) *int64 {
	if v < 0 {
		return nil
	}
	return &v
}

// ServiceID canonicalizes a remote service name: "Interstellar Factors Contact"
// becomes "interstellar_factors".
func ServiceID(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, " contact")
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	return n
}

func flagsFromServices(services []string, stationType string, planetary bool) StationFlags {
	f := StationFlags{Planetary: planetary}
	t := strings.ToLower(stationType)
	if strings.Contains(t, "carrier") {
		f.FleetCarrier = true
	}
	if strings.Contains(t, "planetary") || strings.Contains(t, "settlement") {
		f.Planetary = true
	}
	for _, s := range services {
		switch s {
		case "market":
			f.Market = true
		case "outfitting":
			f.Outfitting = true
		case "shipyard":
			f.Shipyard = true
		case "black_market":
			f.BlackMarket = true
		case "interstellar_factors":
			f.InterstellarFactors = true
		}
	}
	return f
}
