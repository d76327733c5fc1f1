package gamestate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"covinance/internal/apperr"
	"covinance/internal/galaxy"
)

func writeJournal(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestJournalReader_ReplaysEvents(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, "Journal.2024-01-05T120000.01.log",
		`{"timestamp":"3310-01-05T12:00:00Z","event":"Fileheader","part":1}`,
		`{"timestamp":"3310-01-05T12:00:01Z","event":"LoadGame","Commander":"Jameson","Ship":"Python","Credits":1500000}`,
		`{"timestamp":"3310-01-05T12:00:02Z","event":"Loadout","Ship":"python","CargoCapacity":192,"MaxJumpRange":21.5}`,
		`{"timestamp":"3310-01-05T12:00:03Z","event":"Location","StarSystem":"Lave","StarPos":[75.75,48.75,70.75],"Docked":true,"StationName":"Lave Station"}`,
		`not json`,
		`{"timestamp":"3310-01-05T12:05:00Z","event":"Undocked","StationName":"Lave Station"}`,
		`{"timestamp":"3310-01-05T12:10:00Z","event":"FSDJump","StarSystem":"Leesti","StarPos":[72.75,48.75,68.25]}`,
		`{"timestamp":"3310-01-05T12:15:00Z","event":"Docked","StationName":"George Lucas","StarSystem":"Leesti"}`,
		`{"timestamp":"3310-01-05T12:16:00Z","event":"Cargo","Vessel":"Ship","Count":40}`,
		`{"timestamp":"3310-01-05T12:17:00Z","event":"Cargo","Vessel":"SRV","Count":2}`,
	)

	s, err := JournalReader{Dir: dir}.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s.Commander != "Jameson" || s.Ship != "python" || s.Credits != 1500000 || !s.HasCredits {
		t.Errorf("commander/ship/credits = %+v", s)
	}
	if s.CargoCapacity != 192 || s.MaxJumpRange != 21.5 || s.CargoUsed != 40 {
		t.Errorf("cargo/jump = %d %v %d", s.CargoCapacity, s.MaxJumpRange, s.CargoUsed)
	}
	if s.System != "Leesti" || !s.HasCoordinate || s.Coordinate.X != 72.75 {
		t.Errorf("location = %q %+v", s.System, s.Coordinate)
	}
	if !s.Docked || s.Station != "George Lucas" {
		t.Errorf("docked = %v at %q", s.Docked, s.Station)
	}
	if want := time.Date(3310, 1, 5, 12, 16, 0, 0, time.UTC); !s.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v (SRV cargo is not ship state)", s.UpdatedAt, want)
	}
}

func TestJournalReader_PicksNewestFile(t *testing.T) {
	dir := t.TempDir()
	old := writeJournal(t, dir, "Journal.2024-01-01T000000.01.log",
		`{"event":"Location","StarSystem":"Old"}`)
	writeJournal(t, dir, "Journal.2024-02-01T000000.01.log",
		`{"event":"Location","StarSystem":"New"}`)
	past := time.Now().Add(-time.Hour)
	os.Chtimes(old, past, past)

	s, err := JournalReader{Dir: dir}.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.System != "New" {
		t.Errorf("System = %q, want New", s.System)
	}
}

func TestJournalReader_NoFiles(t *testing.T) {
	if _, err := (JournalReader{Dir: t.TempDir()}).Snapshot(context.Background()); err == nil {
		t.Error("expected error for empty directory")
	}
	if _, err := (JournalReader{}).Snapshot(context.Background()); err == nil {
		t.Error("expected error for unset directory")
	}
}

func TestPadForShip(t *testing.T) {
	tests := []struct {
		ship string
		want galaxy.PadSize
		ok   bool
	}{
		{"sidewinder", galaxy.PadSmall, true},
		{"Python", galaxy.PadMedium, true},
		{" Anaconda ", galaxy.PadLarge, true},
		{"type9_military", galaxy.PadLarge, true},
		{"unknown_hull", galaxy.PadAny, false},
	}
	for _, tt := range tests {
		got, ok := PadForShip(tt.ship)
		if got != tt.want || ok != tt.ok {
			t.Errorf("PadForShip(%q) = %v,%v want %v,%v", tt.ship, got, ok, tt.want, tt.ok)
		}
	}
}

type stubProvider struct {
	snap Snapshot
	err  error
}

func (p stubProvider) Snapshot(context.Context) (Snapshot, error) { return p.snap, p.err }

func TestResolver_Complete(t *testing.T) {
	r := NewResolver(stubProvider{snap: Snapshot{
		Ship: "anaconda", CargoCapacity: 400, CargoUsed: 100, MaxJumpRange: 18, Credits: 5000, HasCredits: true,
	}})
	st := r.Current(context.Background())
	c := st.Constraints
	if c.Degraded || st.Reason != nil {
		t.Fatalf("degraded: %v", st.Reason)
	}
	if c.Pad != galaxy.PadLarge || c.CargoCapacity != 400 || c.FreeCargo() != 300 || c.MaxJumpRange != 18 {
		t.Errorf("constraints = %+v", c)
	}
	if !c.HasCredits || c.Credits != 5000 {
		t.Errorf("credits = %+v", c)
	}
}

func TestResolver_ProviderFailureIsUnconstrained(t *testing.T) {
	r := NewResolver(stubProvider{err: errors.New("journal locked")})
	st := r.Current(context.Background())
	if !st.Constraints.Degraded || st.Constraints.CargoCapacity != 0 || st.Constraints.Pad != galaxy.PadAny {
		t.Errorf("constraints = %+v", st.Constraints)
	}
	if apperr.KindOf(st.Reason) != apperr.KindConstraintsDegraded {
		t.Errorf("reason kind = %q", apperr.KindOf(st.Reason))
	}
}

func TestResolver_MissingFieldsDegrade(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		reason string
	}{
		{"nothing known", Snapshot{Ship: "mystery"}, "cargo capacity"},
		{"ship unknown", Snapshot{Ship: "mystery", CargoCapacity: 100, CargoUsed: 20, Credits: 500, HasCredits: true, MaxJumpRange: 12}, "unknown ship"},
		{"capacity unknown", Snapshot{Ship: "anaconda", Credits: 500, HasCredits: true, MaxJumpRange: 12}, "cargo capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewResolver(stubProvider{snap: tt.snap}).Current(context.Background())
			if st.Constraints != galaxy.Unconstrained() {
				t.Errorf("constraints = %+v, want unconstrained", st.Constraints)
			}
			if st.Reason == nil || !strings.Contains(st.Reason.Error(), tt.reason) {
				t.Errorf("reason = %v", st.Reason)
			}
			if st.Snapshot.System != tt.snap.System {
				t.Errorf("snapshot not kept")
			}
		})
	}
}

func TestResolver_NilProvider(t *testing.T) {
	st := NewResolver(nil).Current(context.Background())
	if !st.Constraints.Degraded {
		t.Error("nil provider should degrade")
	}
}
