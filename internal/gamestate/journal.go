// Package gamestate reads the player's current situation (location, ship,
// cargo, credits) from the game's journal and turns it into planning
// constraints. The game is never written to.
package gamestate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"covinance/internal/galaxy"
	"covinance/internal/logger"

	"go.uber.org/zap"
)

// Snapshot is a point-in-time view of game state. Zero fields are unknown.
type Snapshot struct {
	Commander     string            `json:"commander,omitempty"`
	System        string            `json:"system,omitempty"`
	Coordinate    galaxy.Coordinate `json:"coordinate"`
	HasCoordinate bool              `json:"has_coordinate"`
	Station       string            `json:"station,omitempty"`
	Docked        bool              `json:"docked"`
	Ship          string            `json:"ship,omitempty"`
	CargoCapacity int               `json:"cargo_capacity"`
	CargoUsed     int               `json:"cargo_used"`
	MaxJumpRange  float64           `json:"max_jump_range"`
	Credits       int64             `json:"credits"`
	HasCredits    bool              `json:"has_credits"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Provider yields the current game state.
type Provider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// JournalReader replays the newest Journal.*.log in Dir.
type JournalReader struct {
	Dir string
}

// DefaultJournalDir is where the game writes its journal on Windows.
func DefaultJournalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Saved Games", "Frontier Developments", "Elite Dangerous")
}

type journalEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	Event         string    `json:"event"`
	Commander     string    `json:"Commander"`
	Ship          string    `json:"Ship"`
	Credits       *int64    `json:"Credits"`
	CargoCapacity *int      `json:"CargoCapacity"`
	MaxJumpRange  *float64  `json:"MaxJumpRange"`
	StarSystem    string    `json:"StarSystem"`
	StarPos       []float64 `json:"StarPos"`
	StationName   string    `json:"StationName"`
	Docked        *bool     `json:"Docked"`
	Vessel        string    `json:"Vessel"`
	Count         *int      `json:"Count"`
}

// Snapshot implements Provider.
func (j JournalReader) Snapshot(ctx context.Context) (Snapshot, error) {
	path, err := j.newest()
	if err != nil {
		return Snapshot{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var s Snapshot
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if line%1000 == 0 && ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		var ev journalEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			logger.Debug("Journal", "skipping malformed line", zap.String("file", filepath.Base(path)), zap.Int("line", line))
			continue
		}
		s.apply(ev)
	}
	if err := sc.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("read journal: %w", err)
	}
	return s, nil
}

func (s *Snapshot) apply(ev journalEvent) {
	switch ev.Event {
	case "LoadGame":
		if ev.Commander != "" {
			s.Commander = ev.Commander
		}
		if ev.Ship != "" {
			s.Ship = strings.ToLower(ev.Ship)
		}
		if ev.Credits != nil {
			s.Credits, s.HasCredits = *ev.Credits, true
		}
	case "Loadout":
		if ev.Ship != "" {
			s.Ship = strings.ToLower(ev.Ship)
		}
		if ev.CargoCapacity != nil {
			s.CargoCapacity = *ev.CargoCapacity
		}
		if ev.MaxJumpRange != nil {
			s.MaxJumpRange = *ev.MaxJumpRange
		}
	case "Location", "FSDJump", "CarrierJump":
		s.System = ev.StarSystem
		if len(ev.StarPos) == 3 {
			s.Coordinate = galaxy.Coordinate{X: ev.StarPos[0], Y: ev.StarPos[1], Z: ev.StarPos[2]}
			s.HasCoordinate = true
		}
		s.Docked = ev.Docked != nil && *ev.Docked
		if s.Docked {
			s.Station = ev.StationName
		} else {
			s.Station = ""
		}
	case "Docked":
		s.Docked = true
		s.Station = ev.StationName
		if ev.StarSystem != "" {
			s.System = ev.StarSystem
		}
	case "Undocked":
		s.Docked = false
		s.Station = ""
	case "Cargo":
		if ev.Count == nil || (ev.Vessel != "" && ev.Vessel != "Ship") {
			return
		}
		s.CargoUsed = *ev.Count
	default:
		return
	}
	if !ev.Timestamp.IsZero() {
		s.UpdatedAt = ev.Timestamp
	}
}

// newest returns the most recently modified journal file.
func (j JournalReader) newest() (string, error) {
	if j.Dir == "" {
		return "", fmt.Errorf("journal directory not configured")
	}
	matches, err := filepath.Glob(filepath.Join(j.Dir, "Journal.*.log"))
	if err != nil {
		return "", fmt.Errorf("list journals: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no journal files in %s", j.Dir)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	cands := make([]candidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		cands = append(cands, candidate{m, info.ModTime()})
	}
	if len(cands) == 0 {
		return "", fmt.Errorf("no readable journal files in %s", j.Dir)
	}
	sort.Slice(cands, func(a, b int) bool {
		if !cands[a].mod.Equal(cands[b].mod) {
			return cands[a].mod.After(cands[b].mod)
		}
		return cands[a].path > cands[b].path
	})
	return cands[0].path, nil
}
