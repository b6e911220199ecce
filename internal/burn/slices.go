package burn

import (
	"math"
	"time"

	"github.com/lox/sunburntimer/internal/models"
)

// SliceWindow is a sub-hour window with UV linearly interpolated at both ends.
type SliceWindow struct {
	Start    time.Time
	End      time.Time
	UVIStart float64
	UVIEnd   float64
}

// UVIAt interpolates the window's UV index at t, clamped to the window.
func (w SliceWindow) UVIAt(t time.Time) float64 {
	span := w.End.Sub(w.Start)
	if span <= 0 || !t.After(w.Start) {
		return w.UVIStart
	}
	if !t.Before(w.End) {
		return w.UVIEnd
	}
	a := float64(t.Sub(w.Start)) / float64(span)
	return lerp(w.UVIStart, w.UVIEnd, a)
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// sliceWidth is the nominal window length for a resolution.
func sliceWidth(slicesPerHour int) time.Duration {
	return time.Hour / time.Duration(slicesPerHour)
}

// BuildSlices cuts every consecutive pair of hourly samples into windows of
// 60/slicesPerHour minutes. Fewer than two samples yields no windows.
//
// Calculate does not call it: the integrator slices one pair at a time with the same
// rules so it can stop early without cutting the rest of the forecast.
func BuildSlices(hourly []models.HourlyUV, slicesPerHour int) []SliceWindow {
	if len(hourly) < 2 || slicesPerHour <= 0 {
		return nil
	}
	out := make([]SliceWindow, 0, (len(hourly)-1)*slicesPerHour)
	for i := 0; i+1 < len(hourly); i++ {
		out = appendPairSlices(out, hourly[i], hourly[i+1], slicesPerHour)
	}
	return out
}

// appendPairSlices slices the span between two samples. Spans that are not a whole number
// of windows (gaps in the forecast) end with a window stretched or shortened to the next sample.
func appendPairSlices(out []SliceWindow, h0, h1 models.HourlyUV, slicesPerHour int) []SliceWindow {
	span := h1.Time.Sub(h0.Time)
	if span <= 0 {
		return out
	}
	width := sliceWidth(slicesPerHour)
	n := int(math.Round(float64(span) / float64(width)))
	if n < 1 {
		n = 1
	}
	for j := 0; j < n; j++ {
		start := h0.Time.Add(time.Duration(j) * width)
		end := h0.Time.Add(time.Duration(j+1) * width)
		if j == n-1 {
			end = h1.Time
		}
		a0 := float64(start.Sub(h0.Time)) / float64(span)
		a1 := float64(end.Sub(h0.Time)) / float64(span)
		out = append(out, SliceWindow{
			Start:    start,
			End:      end,
			UVIStart: lerp(h0.UVIndex, h1.UVIndex, a0),
			UVIEnd:   lerp(h0.UVIndex, h1.UVIndex, a1),
		})
	}
	return out
}
