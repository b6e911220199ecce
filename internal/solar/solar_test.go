package solar

import (
	"math"
	"testing"
	"time"
)

func TestPositionAtSolstice(t *testing.T) {
	noon := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)
	pos := PositionAt(noon, 0, 0)

	if math.Abs(pos.DeclinationDeg-23.44) > 0.1 {
		t.Errorf("DeclinationDeg = %.2f, want ~23.44", pos.DeclinationDeg)
	}
	if math.Abs(pos.ElevationDeg-66.56) > 0.5 {
		t.Errorf("ElevationDeg = %.2f, want ~66.5", pos.ElevationDeg)
	}
}

func TestPositionAtAzimuth(t *testing.T) {
	// London, equinox: sun due south near solar noon, east in the morning, west in the afternoon.
	day := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		hour   int
		minAz  float64
		maxAz  float64
		aboveH bool
	}{
		{8, 90, 150, true},
		{12, 170, 190, true},
		{16, 210, 270, true},
		{23, 0, 360, false},
	}

	for _, tt := range tests {
		pos := PositionAt(day.Add(time.Duration(tt.hour)*time.Hour), 51.5, 0)
		if pos.AzimuthDeg < tt.minAz || pos.AzimuthDeg > tt.maxAz {
			t.Errorf("hour %d: AzimuthDeg = %.1f, want between %.0f and %.0f", tt.hour, pos.AzimuthDeg, tt.minAz, tt.maxAz)
		}
		if (pos.ElevationDeg > 0) != tt.aboveH {
			t.Errorf("hour %d: ElevationDeg = %.1f, above horizon want %v", tt.hour, pos.ElevationDeg, tt.aboveH)
		}
	}
}

func TestMaxElevation(t *testing.T) {
	winter := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)
	got := MaxElevation(winter, -37.8)
	if math.Abs(got-28.8) > 0.5 {
		t.Errorf("MaxElevation(Melbourne, June) = %.2f, want ~28.8", got)
	}
}

func TestSummarize(t *testing.T) {
	sunrise := time.Date(2025, 12, 21, 5, 50, 0, 0, time.UTC)
	sunset := sunrise.Add(14 * time.Hour)

	tests := []struct {
		name     string
		now      time.Time
		progress float64
		isDay    bool
	}{
		{"before sunrise", sunrise.Add(-time.Hour), 0, false},
		{"at sunrise", sunrise, 0, true},
		{"midday", sunrise.Add(7 * time.Hour), 0.5, true},
		{"at sunset", sunset, 1, true},
		{"after sunset", sunset.Add(2 * time.Hour), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Summarize(tt.now, sunrise, sunset, -37.8)
			if math.Abs(d.Progress-tt.progress) > 1e-9 {
				t.Errorf("Progress = %v, want %v", d.Progress, tt.progress)
			}
			if d.IsDay != tt.isDay {
				t.Errorf("IsDay = %v, want %v", d.IsDay, tt.isDay)
			}
			if d.Duration != 14*time.Hour {
				t.Errorf("Duration = %v, want 14h", d.Duration)
			}
			if d.ZenithScale < 0.2 || d.ZenithScale > 1 {
				t.Errorf("ZenithScale = %v, want within [0.2, 1]", d.ZenithScale)
			}
		})
	}
}

func TestSummarizeInvertedWindow(t *testing.T) {
	sunrise := time.Date(2025, 12, 21, 6, 0, 0, 0, time.UTC)
	d := Summarize(sunrise, sunrise, sunrise.Add(-time.Hour), 0)
	if d.Progress != 0 {
		t.Errorf("Progress = %v, want 0 for an empty daylight window", d.Progress)
	}
}
