package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/sunburntimer/internal/log"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS locations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    admin1 TEXT,
    country_code TEXT,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    elevation REAL,
    timezone TEXT NOT NULL DEFAULT 'UTC',
    forecast_fetched_at DATETIME,
    forecast_source TEXT,
    current_uv REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(latitude, longitude)
);

CREATE TABLE IF NOT EXISTS uv_forecasts (
    location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
    valid_unix INTEGER NOT NULL,
    uv_index REAL NOT NULL,
    temperature REAL,
    cloud_cover INTEGER,
    PRIMARY KEY (location_id, valid_unix)
);

CREATE TABLE IF NOT EXISTS daylight (
    location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
    date TEXT NOT NULL,
    sunrise_unix INTEGER NOT NULL,
    sunset_unix INTEGER NOT NULL,
    PRIMARY KEY (location_id, date)
);

CREATE TABLE IF NOT EXISTS preferences (
    profile TEXT PRIMARY KEY,
    skin_type TEXT,
    spf_level TEXT,
    sweat_level TEXT,
    location_id INTEGER REFERENCES locations(id) ON DELETE SET NULL,
    updated_at DATETIME NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "Calculation log",
		SQL: `
CREATE TABLE IF NOT EXISTS calculations (
    id TEXT PRIMARY KEY,
    location_id INTEGER,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    skin_type TEXT NOT NULL,
    spf_level TEXT NOT NULL,
    sweat_level TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    burn_time DATETIME,
    resolution INTEGER NOT NULL,
    point_count INTEGER NOT NULL,
    final_damage REAL NOT NULL,
    truncated BOOLEAN NOT NULL DEFAULT FALSE,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculations_created ON calculations(created_at);
`,
	},
	{
		Version:     3,
		Description: "Ingest audit and raw payloads",
		SQL: `
CREATE TABLE IF NOT EXISTS ingest_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_unix INTEGER NOT NULL,
    finished_unix INTEGER,
    source TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    location_id INTEGER,
    http_status INTEGER,
    response_size_bytes INTEGER,
    records_parsed INTEGER,
    records_stored INTEGER,
    parse_errors INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_source ON ingest_runs(source, endpoint, started_unix);

CREATE TABLE IF NOT EXISTS raw_payloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ingest_run_id INTEGER REFERENCES ingest_runs(id) ON DELETE SET NULL,
    fetched_unix INTEGER NOT NULL,
    source TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    location_id INTEGER,
    payload_compressed BLOB NOT NULL,
    payload_hash TEXT NOT NULL UNIQUE
);
`,
	},
}

// Migrate applies every migration newer than the recorded schema version, each in its own
// transaction.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	current, err := s.MigrationVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.apply(m); err != nil {
			return err
		}
		log.Infof("migrations: applied %d (%s)", m.Version, m.Description)
	}
	return nil
}

func (s *Store) apply(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("execute migration %d: %w", m.Version, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Description, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}

// MigrationVersion is the highest applied migration, 0 for an empty database.
func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}
