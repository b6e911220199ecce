package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/sunburntimer/internal/models"
)

func (s *Store) InsertCalculation(rec models.CalculationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO calculations (id, location_id, latitude, longitude, skin_type, spf_level, sweat_level,
			started_at, burn_time, resolution, point_count, final_damage, truncated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.LocationID, rec.Latitude, rec.Longitude, rec.SkinType, rec.SPFLevel, rec.SweatLevel,
		rec.StartedAt.UTC(), rec.BurnTime, rec.Resolution, rec.PointCount, rec.FinalDamage, rec.Truncated, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert calculation: %w", err)
	}
	return nil
}

const calculationColumns = `id, location_id, latitude, longitude, skin_type, spf_level, sweat_level,
	started_at, burn_time, resolution, point_count, final_damage, truncated, created_at`

func scanCalculation(row scanner) (models.CalculationRecord, error) {
	var r models.CalculationRecord
	err := row.Scan(&r.ID, &r.LocationID, &r.Latitude, &r.Longitude, &r.SkinType, &r.SPFLevel, &r.SweatLevel,
		&r.StartedAt, &r.BurnTime, &r.Resolution, &r.PointCount, &r.FinalDamage, &r.Truncated, &r.CreatedAt)
	return r, err
}

func (s *Store) GetCalculation(id string) (*models.CalculationRecord, error) {
	r, err := scanCalculation(s.db.QueryRow(`SELECT `+calculationColumns+` FROM calculations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecentCalculations returns the newest calculations first.
func (s *Store) RecentCalculations(limit int) ([]models.CalculationRecord, error) {
	rows, err := s.db.Query(`SELECT `+calculationColumns+` FROM calculations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CalculationRecord
	for rows.Next() {
		r, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
