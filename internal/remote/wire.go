package remote

import (
	"strings"
	"time"

	"covinance/internal/galaxy"
)

// Wire shapes of the market source. Every field is optional; missing numbers
// decode as zero and missing prices as absent.

type wireSystem struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Allegiance string  `json:"allegiance"`
	Economy    string  `json:"economy"`
	Security   string  `json:"security"`
}

type wireStation struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	SystemName        string   `json:"system_name"`
	X                 float64  `json:"x"`
	Y                 float64  `json:"y"`
	Z                 float64  `json:"z"`
	PadSize           string   `json:"max_landing_pad_size"`
	Type              string   `json:"type"`
	Planetary         bool     `json:"is_planetary"`
	Services          []string `json:"services"`
	Allegiance        string   `json:"allegiance"`
	Economy           string   `json:"economy"`
	Security          string   `json:"security"`
	DistanceToArrival float64  `json:"distance_to_arrival"`
	UpdatedAt         string   `json:"updated_at"`
}

type wireListing struct {
	StationID   int64    `json:"station_id"`
	StationName string   `json:"station_name"`
	SystemName  string   `json:"system_name"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Z           float64  `json:"z"`
	Commodity   string   `json:"commodity"`
	BuyPrice    *int64   `json:"buy_price"`
	SellPrice   *int64   `json:"sell_price"`
	Supply      int64    `json:"supply"`
	Demand      int64    `json:"demand"`
	PadSize     string   `json:"max_landing_pad_size"`
	Type        string   `json:"type"`
	Planetary   bool     `json:"is_planetary"`
	Services    []string `json:"services"`
	Security    string   `json:"security"`
	Rare        bool     `json:"rare"`
	UpdatedAt   string   `json:"updated_at"`
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func serviceIDs(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if id := ServiceID(n); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (w wireSystem) toSystem() System {
	return System{
		Name:       strings.TrimSpace(w.Name),
		Coordinate: galaxy.Coordinate{X: w.X, Y: w.Y, Z: w.Z},
		Allegiance: w.Allegiance,
		Economy:    w.Economy,
		Security:   galaxy.ParseSecurity(w.Security),
	}
}

func (w wireStation) toStation() Station {
	services := serviceIDs(w.Services)
	return Station{
		ID:                w.ID,
		Name:              w.Name,
		SystemName:        w.SystemName,
		Coordinate:        galaxy.Coordinate{X: w.X, Y: w.Y, Z: w.Z},
		Pad:               galaxy.ParsePadSize(w.PadSize),
		Flags:             flagsFromServices(services, w.Type, w.Planetary),
		Services:          services,
		Allegiance:        w.Allegiance,
		Economy:           w.Economy,
		Security:          galaxy.ParseSecurity(w.Security),
		DistanceToArrival: w.DistanceToArrival,
		UpdatedAt:         parseTime(w.UpdatedAt),
	}
}

// toListing converts and validates; ok is false for listings with no usable price.
func (w wireListing) toListing() (Listing, bool) {
	var buy, sell *int64
	if w.BuyPrice != nil {
		buy = Price(*w.BuyPrice)
	}
	if w.SellPrice != nil {
		sell = Price(*w.SellPrice)
	}
	if buy == nil && sell == nil {
		return Listing{}, false
	}
	commodity := strings.ToLower(strings.TrimSpace(w.Commodity))
	if commodity == "" || w.StationID == 0 {
		return Listing{}, false
	}
	supply, demand := w.Supply, w.Demand
	if supply < 0 {
		supply = 0
	}
	if demand < 0 {
		demand = 0
	}
	return Listing{
		StationID:   w.StationID,
		StationName: w.StationName,
		SystemName:  w.SystemName,
		Coordinate:  galaxy.Coordinate{X: w.X, Y: w.Y, Z: w.Z},
		Commodity:   commodity,
		BuyPrice:    buy,
		SellPrice:   sell,
		Supply:      supply,
		Demand:      demand,
		Pad:         galaxy.ParsePadSize(w.PadSize),
		Flags:       flagsFromServices(serviceIDs(w.Services), w.Type, w.Planetary),
		Security:    galaxy.ParseSecurity(w.Security),
		Rare:        w.Rare,
		UpdatedAt:   parseTime(w.UpdatedAt),
	}, true
}

func toListings(ws []wireListing) []Listing {
	out := make([]Listing, 0, len(ws))
	for _, w := range ws {
		if l, ok := w.toListing(); ok {
			out = append(out, l)
		}
	}
	return out
}
