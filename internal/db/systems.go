package db

import (
	"strings"
	"time"

	"covinance/internal/galaxy"
	"covinance/internal/logger"
	"covinance/internal/remote"

	"go.uber.org/zap"
)

// System coordinates never change, so they survive restarts here as an L2
// behind the in-memory cache.

func systemKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// GetSystem returns a stored system by case-insensitive name.
func (d *DB) GetSystem(name string) (remote.System, bool) {
	var s remote.System
	var security string
	err := d.sql.QueryRow(
		"SELECT name, x, y, z, allegiance, economy, security FROM systems WHERE name_key = ?",
		systemKey(name),
	).Scan(&s.Name, &s.Coordinate.X, &s.Coordinate.Y, &s.Coordinate.Z, &s.Allegiance, &s.Economy, &security)
	if err != nil {
		return remote.System{}, false
	}
	s.Security = galaxy.Security(security)
	return s, true
}

// SetSystem upserts a system.
func (d *DB) SetSystem(s remote.System) {
	_, err := d.sql.Exec(`
		INSERT INTO systems (name_key, name, x, y, z, allegiance, economy, security, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name_key) DO UPDATE SET
			name = excluded.name, x = excluded.x, y = excluded.y, z = excluded.z,
			allegiance = excluded.allegiance, economy = excluded.economy,
			security = excluded.security, fetched_at = excluded.fetched_at`,
		systemKey(s.Name), s.Name, s.Coordinate.X, s.Coordinate.Y, s.Coordinate.Z,
		s.Allegiance, s.Economy, string(s.Security), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		logger.Warn("DB", "store system failed", zap.String("system", s.Name), zap.Error(err))
	}
}

// CountSystems returns the number of stored systems.
func (d *DB) CountSystems() int {
	var n int
	d.sql.QueryRow("SELECT COUNT(*) FROM systems").Scan(&n)
	return n
}

// ClearSystems deletes every stored system and returns how many were removed.
func (d *DB) ClearSystems() int {
	res, err := d.sql.Exec("DELETE FROM systems")
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}
