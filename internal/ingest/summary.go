package ingest

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lox/sunburntimer/internal/models"
)

// DaySummary condenses the hourly UV samples of one day.
type DaySummary struct {
	Date        time.Time `json:"date"`
	PeakUV      float64   `json:"peakUv"`
	PeakTime    time.Time `json:"peakTime"`
	MeanUV      float64   `json:"meanUv"`
	StdDevUV    float64   `json:"stdDevUv"`
	HoursAbove3 int       `json:"hoursAbove3"`
	Samples     int       `json:"samples"`
}

// uvProtectionLevel is the UV index at which sun protection is generally advised.
const uvProtectionLevel = 3.0

// SummarizeDays groups hourly samples by local calendar day in loc.
// Mean and spread are taken over daylight hours (UV above zero) only.
func SummarizeDays(hourly []models.HourlyUV, loc *time.Location) []DaySummary {
	if loc == nil {
		loc = time.UTC
	}

	var (
		out  []DaySummary
		uvs  []float64
		day  time.Time
		from int
	)
	flush := func(to int) {
		if to <= from {
			return
		}
		all := make([]float64, 0, to-from)
		for _, h := range hourly[from:to] {
			all = append(all, h.UVIndex)
		}
		peak := floats.MaxIdx(all)
		s := DaySummary{
			Date:     day,
			PeakUV:   all[peak],
			PeakTime: hourly[from+peak].Time,
			Samples:  len(all),
		}
		if len(uvs) > 0 {
			s.MeanUV, s.StdDevUV = stat.MeanStdDev(uvs, nil)
			if len(uvs) < 2 {
				s.StdDevUV = 0
			}
		}
		for _, v := range all {
			if v >= uvProtectionLevel {
				s.HoursAbove3++
			}
		}
		out = append(out, s)
	}

	for i, h := range hourly {
		local := h.Time.In(loc)
		d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		if i == 0 || !d.Equal(day) {
			flush(i)
			day, from, uvs = d, i, uvs[:0]
		}
		if h.UVIndex > 0 {
			uvs = append(uvs, h.UVIndex)
		}
	}
	flush(len(hourly))
	return out
}
