package store

import (
	"database/sql"
	"fmt"

	"github.com/lox/sunburntimer/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertLocation saves a place keyed by its coordinates and returns its ID.
func (s *Store) UpsertLocation(loc models.Location) (int64, error) {
	if loc.Timezone == "" {
		loc.Timezone = "UTC"
	}
	var id int64
	err := s.db.QueryRow(`
		INSERT INTO locations (name, admin1, country_code, latitude, longitude, elevation, timezone)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(latitude, longitude) DO UPDATE SET
			name = excluded.name,
			admin1 = excluded.admin1,
			country_code = excluded.country_code,
			elevation = COALESCE(excluded.elevation, locations.elevation),
			timezone = excluded.timezone
		RETURNING id
	`, loc.Name, loc.Admin1, loc.CountryCode, loc.Latitude, loc.Longitude, loc.Elevation, loc.Timezone).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert location: %w", err)
	}
	return id, nil
}

const locationColumns = `id, name, admin1, country_code, latitude, longitude, elevation, timezone, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(row scanner) (models.Location, error) {
	var loc models.Location
	err := row.Scan(&loc.ID, &loc.Name, &loc.Admin1, &loc.CountryCode, &loc.Latitude, &loc.Longitude, &loc.Elevation, &loc.Timezone, &loc.CreatedAt)
	return loc, err
}

func (s *Store) GetLocation(id int64) (*models.Location, error) {
	loc, err := scanLocation(s.db.QueryRow(`SELECT `+locationColumns+` FROM locations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// FindLocation returns the saved location at exactly these coordinates, if any.
func (s *Store) FindLocation(lat, lon float64) (*models.Location, error) {
	loc, err := scanLocation(s.db.QueryRow(`SELECT `+locationColumns+` FROM locations WHERE latitude = ? AND longitude = ?`, lat, lon))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *Store) ListLocations() ([]models.Location, error) {
	rows, err := s.db.Query(`SELECT ` + locationColumns + ` FROM locations ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// DeleteLocation removes a location with its cached forecast.
func (s *Store) DeleteLocation(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM uv_forecasts WHERE location_id = ?`,
		`DELETE FROM daylight WHERE location_id = ?`,
		`UPDATE preferences SET location_id = NULL WHERE location_id = ?`,
		`DELETE FROM locations WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("delete location %d: %w", id, err)
		}
	}
	return tx.Commit()
}
