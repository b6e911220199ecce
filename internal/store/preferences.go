package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/sunburntimer/internal/models"
)

const (
	spfNone  = "NONE"
	sweatLow = "LOW"
)

// SavePreferences upserts a profile. Choosing a sunscreen without a sweat level defaults
// the sweat level to LOW.
func (s *Store) SavePreferences(p models.Preferences) (*models.Preferences, error) {
	if p.Profile == "" {
		p.Profile = "default"
	}
	if p.SPFLevel.Valid && p.SPFLevel.String != spfNone && !p.SweatLevel.Valid {
		p.SweatLevel = sql.NullString{String: sweatLow, Valid: true}
	}
	p.UpdatedAt = time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO preferences (profile, skin_type, spf_level, sweat_level, location_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			skin_type = excluded.skin_type,
			spf_level = excluded.spf_level,
			sweat_level = excluded.sweat_level,
			location_id = excluded.location_id,
			updated_at = excluded.updated_at
	`, p.Profile, p.SkinType, p.SPFLevel, p.SweatLevel, p.LocationID, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return &p, nil
}

func (s *Store) GetPreferences(profile string) (*models.Preferences, error) {
	var p models.Preferences
	err := s.db.QueryRow(`
		SELECT profile, skin_type, spf_level, sweat_level, location_id, updated_at
		FROM preferences WHERE profile = ?
	`, profile).Scan(&p.Profile, &p.SkinType, &p.SPFLevel, &p.SweatLevel, &p.LocationID, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
