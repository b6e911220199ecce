package burn

import (
	"reflect"
	"testing"
	"time"
)

func TestCandidateResolutions(t *testing.T) {
	tests := []struct {
		in   []int
		want []int
	}{
		{[]int{4, 6, 12, 30}, []int{4, 6, 12, 30}},
		{[]int{30, 4, 12, 6}, []int{4, 6, 12, 30}},
		{[]int{6, 6, 0, -2, 4}, []int{4, 6}},
		{nil, []int{}},
	}

	for _, tt := range tests {
		got := candidateResolutions(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("candidateResolutions(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFindOptimalPrefersCoarsestBurn(t *testing.T) {
	in := scenario(SkinTypeI, SPFNone, SweatLow, 8, 8, 8, 8, 8)
	res := FindOptimal(in, DefaultOptions())

	if res.Resolution != 4 {
		t.Errorf("Resolution = %d, want 4", res.Resolution)
	}
	if len(res.Points) != 2 {
		t.Errorf("len(points) = %d, want 2", len(res.Points))
	}
}

func TestFindOptimalFallsBackToCoarsest(t *testing.T) {
	in := scenario(SkinTypeVI, SPF50Plus, SweatLow, repeatUV(0.5, 72)...)
	res := FindOptimal(in, DefaultOptions())

	if res.Resolution != 4 {
		t.Errorf("Resolution = %d, want 4", res.Resolution)
	}
	if !res.Truncated {
		t.Error("expected a truncated result")
	}
	if len(res.Points) != MaxCalculationPoints {
		t.Errorf("len(points) = %d, want %d", len(res.Points), MaxCalculationPoints)
	}
}

func TestFindOptimalEveningStopFits(t *testing.T) {
	start := time.Date(2025, 6, 21, 20, 0, 0, 0, time.UTC)
	in := Input{
		Hourly:   hourlySeries(start, repeatUV(0, 10)...),
		Now:      start,
		Timezone: "UTC",
		Skin:     SkinTypeI,
		SPF:      SPFNone,
		Sweat:    SweatLow,
	}

	res := FindOptimal(in, DefaultOptions())
	if res.Truncated {
		t.Error("result should fit within the point budget")
	}
	if res.Resolution != 4 {
		t.Errorf("Resolution = %d, want 4", res.Resolution)
	}
	// 20:00 plus 11 quarter hours reaches 22:45.
	if len(res.Points) != 12 {
		t.Errorf("len(points) = %d, want 12", len(res.Points))
	}
}

func TestFindOptimalCustomResolutions(t *testing.T) {
	in := scenario(SkinTypeI, SPFNone, SweatLow, 8, 8, 8)
	opts := DefaultOptions()
	opts.Resolutions = []int{12}

	res := FindOptimal(in, opts)
	if res.Resolution != 12 {
		t.Errorf("Resolution = %d, want 12", res.Resolution)
	}
	if res.BurnTime == nil {
		t.Fatal("expected a burn time")
	}
	// Constant UV keeps the interpolated instant independent of resolution.
	mins := 100.0 / 6
	want := testStart.Add(time.Duration(mins * float64(time.Minute)))
	if d := res.BurnTime.Sub(want); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("BurnTime = %v, want %v", res.BurnTime, want)
	}
}

func TestFindOptimalPrefersFinerBurn(t *testing.T) {
	in := scenario(SkinTypeI, SPFNone, SweatLow, repeatUV(0.6, 6)...)
	opts := DefaultOptions()
	opts.LowUVRamp = false
	// Only the quarter-hour grid lands on minute 15 of a half hour, so only the coarsest
	// run sees the evening cutoff.
	opts.LocalHour = func(t time.Time, _ string) int {
		if int(t.Sub(testStart).Minutes())%30 == 15 {
			return 23
		}
		return 12
	}

	coarse := Calculate(in, 4, opts)
	if coarse.Truncated || coarse.BurnTime != nil {
		t.Fatalf("coarse run: truncated=%v burn=%v, want a fitting run without a burn", coarse.Truncated, coarse.BurnTime)
	}
	if len(coarse.Points) != 12 {
		t.Fatalf("coarse run has %d points, want 12", len(coarse.Points))
	}

	res := FindOptimal(in, opts)
	if res.Resolution != 6 {
		t.Errorf("Resolution = %d, want 6", res.Resolution)
	}
	if res.BurnTime == nil {
		t.Fatal("expected a burn time")
	}
	if len(res.Points) > opts.MaxPoints {
		t.Errorf("len(points) = %d, want <= %d", len(res.Points), opts.MaxPoints)
	}
	// Type I at UVI 0.6 accumulates 0.45% per minute.
	mins := 100 / 0.45
	want := testStart.Add(time.Duration(mins * float64(time.Minute)))
	if d := res.BurnTime.Sub(want); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("BurnTime = %v, want %v", res.BurnTime, want)
	}
}
