package burn

import (
	"reflect"
	"testing"
)

func resultWithDamage(damage float64) Result {
	return Result{Points: []Point{{DamageAdded: damage}}}
}

func TestAdvice(t *testing.T) {
	tests := []struct {
		name string
		spf  SPFLevel
		res  Result
		want []string
	}{
		{"no points no sunscreen", SPFNone, Result{}, []string{}},
		{"no points with sunscreen", SPF30, Result{}, []string{adviceReapply}},
		{"safe without sunscreen", SPFNone, resultWithDamage(40), []string{}},
		{"safe with sunscreen", SPF15, resultWithDamage(40), []string{adviceReapply, adviceEnjoy}},
		{"burn without sunscreen", SPFNone, resultWithDamage(100), []string{adviceUseSunscreen}},
		{"burn with spf 15", SPF15, resultWithDamage(100), []string{adviceReapply, adviceStrongerOrLimit}},
		{"burn with spf 30", SPF30, resultWithDamage(97), []string{adviceReapply, adviceStrongerOrLimit}},
		{"burn with spf 50", SPF50Plus, resultWithDamage(95), []string{adviceReapply, adviceLimitTime}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Advice(tt.spf, tt.res)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Advice(%s) = %q, want %q", tt.spf, got, tt.want)
			}
		})
	}
}
