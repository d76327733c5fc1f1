package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"covinance/internal/logger"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// DefaultPath returns covinance.db in the working directory, falling back to
// the executable directory.
func DefaultPath() string {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "covinance.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "covinance.db")
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// ":memory:" gives a private in-memory database.
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath()
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS systems (
				name_key   TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				x          REAL NOT NULL,
				y          REAL NOT NULL,
				z          REAL NOT NULL,
				allegiance TEXT NOT NULL DEFAULT '',
				economy    TEXT NOT NULL DEFAULT '',
				security   TEXT NOT NULL DEFAULT '',
				fetched_at TEXT NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	return nil
}
