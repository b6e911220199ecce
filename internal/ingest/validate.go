package ingest

import (
	"time"

	"github.com/lox/sunburntimer/internal/models"
)

const (
	FlagNoHourly          = "no_hourly"
	FlagUVOutOfRange      = "uv_out_of_range"
	FlagTempOutOfRange    = "temp_out_of_range"
	FlagCloudCoverInvalid = "cloud_cover_invalid"
	FlagHourlyGap         = "hourly_gap"
	FlagHourlyUnordered   = "hourly_unordered"
	FlagDaylightInvalid   = "daylight_invalid"
)

// maxPlausibleUV is above the highest UV index recorded at the surface.
const maxPlausibleUV = 25.0

// ValidateForecast returns quality flags for a forecast. Each flag appears at most once.
func ValidateForecast(f *models.Forecast) []string {
	var flags []string
	seen := map[string]bool{}
	flag := func(name string) {
		if !seen[name] {
			seen[name] = true
			flags = append(flags, name)
		}
	}

	if len(f.Hourly) == 0 {
		flag(FlagNoHourly)
	}

	for i, h := range f.Hourly {
		if h.UVIndex < 0 || h.UVIndex > maxPlausibleUV {
			flag(FlagUVOutOfRange)
		}
		if h.Temperature.Valid && (h.Temperature.Float64 < -90 || h.Temperature.Float64 > 60) {
			flag(FlagTempOutOfRange)
		}
		if h.CloudCover.Valid && (h.CloudCover.Int64 < 0 || h.CloudCover.Int64 > 100) {
			flag(FlagCloudCoverInvalid)
		}
		if i == 0 {
			continue
		}
		step := h.Time.Sub(f.Hourly[i-1].Time)
		if step <= 0 {
			flag(FlagHourlyUnordered)
		} else if step > time.Hour {
			flag(FlagHourlyGap)
		}
	}

	for _, d := range f.Days {
		if !d.Sunset.After(d.Sunrise) {
			flag(FlagDaylightInvalid)
		}
	}

	return flags
}
