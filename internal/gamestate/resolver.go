package gamestate

import (
	"context"
	"strings"

	"covinance/internal/apperr"
	"covinance/internal/galaxy"
	"covinance/internal/logger"

	"go.uber.org/zap"
)

// Resolver turns game state into per-call planning constraints.
type Resolver struct {
	provider Provider
}

// NewResolver creates a Resolver. A nil provider always yields unconstrained.
func NewResolver(p Provider) *Resolver {
	return &Resolver{provider: p}
}

// State is what a planning call needs from the game.
type State struct {
	Snapshot    Snapshot
	Constraints galaxy.Constraints
	// Reason is set when Constraints are degraded. It is an annotation, never
	// a failure.
	Reason error
}

// Current reads the game once and derives constraints. Missing or unreadable
// state degrades to unconstrained rather than failing.
func (r *Resolver) Current(ctx context.Context) State {
	if r == nil || r.provider == nil {
		return State{
			Constraints: galaxy.Unconstrained(),
			Reason:      apperr.New(apperr.KindConstraintsDegraded, "no game state source"),
		}
	}
	snap, err := r.provider.Snapshot(ctx)
	if err != nil {
		logger.Warn("GameState", "game state unavailable", zap.Error(err))
		return State{
			Constraints: galaxy.Unconstrained(),
			Reason:      apperr.Wrap(apperr.KindConstraintsDegraded, err, "game state unavailable"),
		}
	}
	c, reason := Derive(snap)
	return State{Snapshot: snap, Constraints: c, Reason: reason}
}

// Derive builds constraints from a snapshot. If cargo capacity or the ship's
// pad is unknown, no field constrains and the result is unconstrained.
func Derive(s Snapshot) (galaxy.Constraints, error) {
	c := galaxy.Constraints{
		CargoCapacity: s.CargoCapacity,
		CargoUsed:     s.CargoUsed,
		MaxJumpRange:  s.MaxJumpRange,
		Credits:       s.Credits,
		HasCredits:    s.HasCredits,
	}
	var missing []string
	if pad, ok := PadForShip(s.Ship); ok {
		c.Pad = pad
	} else {
		missing = append(missing, "ship")
	}
	if s.CargoCapacity <= 0 {
		missing = append(missing, "cargo capacity")
	}
	if len(missing) == 0 {
		return c, nil
	}
	return galaxy.Unconstrained(), apperr.New(apperr.KindConstraintsDegraded, "unknown %s", strings.Join(missing, " and "))
}
