// Package galaxy holds the shared vocabulary of the trading engine: system
// coordinates, landing pads, security levels and the per-command trading
// constraints derived from game state.
package galaxy

import (
	"math"
	"strings"
)

// Coordinate is a system position in light-years. All stations in a system
// share the system's coordinate.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance in light-years.
func Distance(a, b Coordinate) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// DistanceTo is shorthand for Distance(c, other).
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return Distance(c, other)
}

// RoundLy rounds a distance to one decimal place for display only.
func RoundLy(d float64) float64 {
	return math.Round(d*10) / 10
}

// PadSize is the largest landing pad a station offers, or the pad a ship needs.
type PadSize int

const (
	// PadAny means "no constraint" when used as a ship requirement and
	// "unknown" when used as a station capability.
	PadAny PadSize = iota
	PadSmall
	PadMedium
	PadLarge
)

// ParsePadSize accepts S/M/L, small/medium/large and 1/2/3.
func ParsePadSize(s string) PadSize {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "small", "1":
		return PadSmall
	case "m", "medium", "2":
		return PadMedium
	case "l", "large", "3":
		return PadLarge
	}
	return PadAny
}

func (p PadSize) String() string {
	switch p {
	case PadSmall:
		return "S"
	case PadMedium:
		return "M"
	case PadLarge:
		return "L"
	}
	return "any"
}

// Accommodates reports whether a station with pad p can dock a ship needing
// pad `need`. Unknown station pads are assumed compatible; staleness of remote
// data must not hide stations.
func (p PadSize) Accommodates(need PadSize) bool {
	if need == PadAny || p == PadAny {
		return true
	}
	return p >= need
}

// Security is the system security level.
type Security string

const (
	SecurityHigh    Security = "High"
	SecurityMedium  Security = "Medium"
	SecurityLow     Security = "Low"
	SecurityAnarchy Security = "Anarchy"
	SecurityUnknown Security = ""
)

// ParseSecurity normalizes remote security strings ("Low Security", "anarchy").
func ParseSecurity(s string) Security {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "high"):
		return SecurityHigh
	case strings.HasPrefix(s, "medium"):
		return SecurityMedium
	case strings.HasPrefix(s, "low"):
		return SecurityLow
	case strings.HasPrefix(s, "anarchy"), s == "lawless":
		return SecurityAnarchy
	}
	return SecurityUnknown
}

// Lawless reports whether interstellar factors here are "safe" to use
// (no local authority to scan the ship).
func (s Security) Lawless() bool {
	return s == SecurityAnarchy || s == SecurityLow
}

// Constraints are the trading limits active for a single planning call.
// Zero values mean "unknown", which the planner treats as unconstrained.
type Constraints struct {
	CargoCapacity int     // total hold size in units (0 = unknown)
	CargoUsed     int     // units already committed
	Pad           PadSize // largest pad the ship needs (PadAny = unconstrained)
	MaxJumpRange  float64 // ly (0 = unconstrained)
	Credits       int64
	HasCredits    bool
	// Degraded marks constraints that fell back to unconstrained because game
	// state was missing or incomplete.
	Degraded bool
}

// Unconstrained returns constraints with no limits, flagged as degraded.
func Unconstrained() Constraints {
	return Constraints{Degraded: true}
}

// FreeCargo returns remaining capacity, or 0 when capacity is unknown.
func (c Constraints) FreeCargo() int {
	if c.CargoCapacity <= 0 {
		return 0
	}
	free := c.CargoCapacity - c.CargoUsed
	if free < 0 {
		return 0
	}
	return free
}
