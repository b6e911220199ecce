package burn

import (
	"math"
	"testing"
)

func TestLowUVWeight(t *testing.T) {
	tests := []struct {
		uvi  float64
		want float64
	}{
		{0, 0},
		{1, 0},
		{2, 0.5},
		{3, 1},
		{8, 1},
	}

	for _, tt := range tests {
		got := lowUVWeight(tt.uvi)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("lowUVWeight(%v) = %v, want %v", tt.uvi, got, tt.want)
		}
	}
}

func TestEffectiveIrradiance(t *testing.T) {
	tests := []struct {
		name string
		uvi  float64
		spf  float64
		ramp bool
		want float64
	}{
		{"no sunscreen high uv", 8, 1, true, 8},
		{"spf divides", 9, 30, true, 0.3},
		{"ramp halves uvi 2", 2, 1, true, 1},
		{"ramp off keeps uvi 2", 2, 1, false, 2},
		{"ramp zeroes uvi 1", 1, 1, true, 0},
		{"zero spf floored to 1", 5, 0, false, 5},
		{"negative uvi clamped", -3, 1, false, 0},
		{"nan uvi clamped", math.NaN(), 1, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveIrradiance(tt.uvi, tt.spf, tt.ramp)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("EffectiveIrradiance(%v, %v, %v) = %v, want %v", tt.uvi, tt.spf, tt.ramp, got, tt.want)
			}
		})
	}
}

func TestSliceDamage(t *testing.T) {
	tests := []struct {
		name     string
		effStart float64
		effEnd   float64
		minutes  float64
		med      float64
		want     float64
	}{
		{"type I uv 8 one minute", 8, 8, 1, 200, 6},
		{"trapezoid average", 0, 8, 10, 200, 30},
		{"zero minutes", 8, 8, 0, 200, 0},
		{"zero irradiance", 0, 0, 15, 200, 0},
		{"zero med floored", 1, 1, 1, 0, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SliceDamage(tt.effStart, tt.effEnd, tt.minutes, tt.med)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SliceDamage(%v, %v, %v, %v) = %v, want %v", tt.effStart, tt.effEnd, tt.minutes, tt.med, got, tt.want)
			}
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Errorf("SliceDamage returned non-finite %v", got)
			}
		})
	}
}

func TestSkinTypeMED(t *testing.T) {
	if got := SkinTypeI.MED(); got != 200 {
		t.Errorf("SkinTypeI.MED() = %v, want 200", got)
	}
	if got := SkinTypeVI.MED(); got != 1000 {
		t.Errorf("SkinTypeVI.MED() = %v, want 1000", got)
	}
	if got := SkinType("bogus").MED(); got != 200 {
		t.Errorf("unknown MED() = %v, want most sensitive 200", got)
	}

	for i := 1; i < len(AllSkinTypes); i++ {
		if AllSkinTypes[i].MED() <= AllSkinTypes[i-1].MED() {
			t.Errorf("MED(%s) = %v should exceed MED(%s) = %v",
				AllSkinTypes[i], AllSkinTypes[i].MED(), AllSkinTypes[i-1], AllSkinTypes[i-1].MED())
		}
	}
}
