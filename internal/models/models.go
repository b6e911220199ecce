package models

import (
	"database/sql"
	"time"
)

// Location is a saved place forecasts are fetched for.
type Location struct {
	ID          int64
	Name        string
	Admin1      sql.NullString
	CountryCode sql.NullString
	Latitude    float64
	Longitude   float64
	Elevation   sql.NullFloat64
	Timezone    string
	CreatedAt   time.Time
}

// HourlyUV is one hourly forecast sample.
type HourlyUV struct {
	Time        time.Time
	UVIndex     float64
	Temperature sql.NullFloat64
	CloudCover  sql.NullInt64
}

// DaylightWindow holds one forecast day's sunrise and sunset.
type DaylightWindow struct {
	Date    time.Time `json:"date"`
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// Forecast is a fetched UV forecast for a coordinate.
type Forecast struct {
	Source    string // "open-meteo" or "ftp"
	FetchedAt time.Time
	Latitude  float64
	Longitude float64
	Elevation sql.NullFloat64
	Timezone  string
	CurrentUV sql.NullFloat64
	Hourly    []HourlyUV
	Days      []DaylightWindow
}

// Place is a geocoding search hit.
type Place struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Admin1      string  `json:"admin1,omitempty"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone,omitempty"`
}

// Preferences are the remembered user choices for a profile.
type Preferences struct {
	Profile    string
	SkinType   sql.NullString
	SPFLevel   sql.NullString
	SweatLevel sql.NullString
	LocationID sql.NullInt64
	UpdatedAt  time.Time
}

// CalculationRecord is the audit row written for every estimate.
type CalculationRecord struct {
	ID          string
	LocationID  sql.NullInt64
	Latitude    float64
	Longitude   float64
	SkinType    string
	SPFLevel    string
	SweatLevel  string
	StartedAt   time.Time
	BurnTime    sql.NullTime
	Resolution  int
	PointCount  int
	FinalDamage float64
	Truncated   bool
	CreatedAt   time.Time
}

// AirQuality is a current US AQI reading.
type AirQuality struct {
	USAQI     int
	FetchedAt time.Time
}

// Ready reports whether enough has been chosen to run a calculation: a skin type, an SPF
// level, and a sweat level unless no sunscreen is worn.
func (p Preferences) Ready() bool {
	if !p.SkinType.Valid || !p.SPFLevel.Valid {
		return false
	}
	return p.SPFLevel.String == "NONE" || p.SweatLevel.Valid
}
