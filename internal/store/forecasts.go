package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/sunburntimer/internal/models"
)

// SaveForecast replaces the cached hourly UV and daylight rows a forecast covers and
// stamps the location with the fetch time. It returns the number of hourly rows written.
func (s *Store) SaveForecast(locationID int64, f models.Forecast) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE locations SET
			forecast_fetched_at = ?,
			forecast_source = ?,
			current_uv = ?,
			elevation = COALESCE(?, elevation),
			timezone = CASE WHEN ? = '' THEN timezone ELSE ? END
		WHERE id = ?
	`, f.FetchedAt.UTC(), f.Source, f.CurrentUV, f.Elevation, f.Timezone, f.Timezone, locationID)
	if err != nil {
		return 0, fmt.Errorf("update location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("location %d not found", locationID)
	}

	hourly, err := tx.Prepare(`
		INSERT INTO uv_forecasts (location_id, valid_unix, uv_index, temperature, cloud_cover)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(location_id, valid_unix) DO UPDATE SET
			uv_index = excluded.uv_index,
			temperature = excluded.temperature,
			cloud_cover = excluded.cloud_cover
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare hourly insert: %w", err)
	}
	defer hourly.Close()

	for _, h := range f.Hourly {
		if _, err := hourly.Exec(locationID, h.Time.Unix(), h.UVIndex, h.Temperature, h.CloudCover); err != nil {
			return 0, fmt.Errorf("insert hourly uv: %w", err)
		}
	}

	for _, d := range f.Days {
		if _, err := tx.Exec(`
			INSERT INTO daylight (location_id, date, sunrise_unix, sunset_unix)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(location_id, date) DO UPDATE SET
				sunrise_unix = excluded.sunrise_unix,
				sunset_unix = excluded.sunset_unix
		`, locationID, d.Date.Format("2006-01-02"), d.Sunrise.Unix(), d.Sunset.Unix()); err != nil {
			return 0, fmt.Errorf("insert daylight: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit forecast: %w", err)
	}
	return len(f.Hourly), nil
}

// GetForecast returns the cached forecast for a location with hourly samples from the
// hour before since onwards. It returns nil when the location has never been fetched.
func (s *Store) GetForecast(locationID int64, since time.Time) (*models.Forecast, error) {
	var (
		fetchedAt sql.NullTime
		source    sql.NullString
	)
	f := models.Forecast{}
	err := s.db.QueryRow(`
		SELECT latitude, longitude, elevation, timezone, forecast_fetched_at, forecast_source, current_uv
		FROM locations WHERE id = ?
	`, locationID).Scan(&f.Latitude, &f.Longitude, &f.Elevation, &f.Timezone, &fetchedAt, &source, &f.CurrentUV)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !fetchedAt.Valid {
		return nil, nil
	}
	f.FetchedAt = fetchedAt.Time
	f.Source = source.String

	rows, err := s.db.Query(`
		SELECT valid_unix, uv_index, temperature, cloud_cover
		FROM uv_forecasts
		WHERE location_id = ? AND valid_unix >= ?
		ORDER BY valid_unix ASC
	`, locationID, since.Add(-time.Hour).Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			h    models.HourlyUV
			unix int64
		)
		if err := rows.Scan(&unix, &h.UVIndex, &h.Temperature, &h.CloudCover); err != nil {
			return nil, err
		}
		h.Time = time.Unix(unix, 0).UTC()
		f.Hourly = append(f.Hourly, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	days, err := s.getDaylight(locationID, since.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	f.Days = days
	return &f, nil
}

func (s *Store) getDaylight(locationID int64, since time.Time) ([]models.DaylightWindow, error) {
	rows, err := s.db.Query(`
		SELECT date, sunrise_unix, sunset_unix
		FROM daylight
		WHERE location_id = ? AND sunset_unix >= ?
		ORDER BY date ASC
	`, locationID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []models.DaylightWindow
	for rows.Next() {
		var (
			date            string
			sunrise, sunset int64
		)
		if err := rows.Scan(&date, &sunrise, &sunset); err != nil {
			return nil, err
		}
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("parse daylight date %q: %w", date, err)
		}
		days = append(days, models.DaylightWindow{
			Date:    d,
			Sunrise: time.Unix(sunrise, 0).UTC(),
			Sunset:  time.Unix(sunset, 0).UTC(),
		})
	}
	return days, rows.Err()
}

// PruneForecasts deletes hourly and daylight rows that ended before cutoff.
func (s *Store) PruneForecasts(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM uv_forecasts WHERE valid_unix < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune uv forecasts: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := s.db.Exec(`DELETE FROM daylight WHERE sunset_unix < ?`, cutoff.Unix()); err != nil {
		return n, fmt.Errorf("prune daylight: %w", err)
	}
	return n, nil
}
