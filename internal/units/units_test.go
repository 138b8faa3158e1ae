package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range []string{"mps", "mph", "kmph", "kph", "MPH"} {
		if !IsValid(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}
	for _, u := range []string{"", "knots", "m/s"} {
		if IsValid(u) {
			t.Errorf("expected %q to be invalid", u)
		}
	}
}

func TestConvertVelocity(t *testing.T) {
	cases := []struct {
		vMps  float64
		units string
		want  float64
	}{
		{1.0, MPS, 1.0},
		{1.0, MPH, 2.2369362920544},
		{2.5, KPH, 9.0},
		{2.5, KMPH, 9.0},
		{3.0, "unknown", 3.0},
	}
	for _, c := range cases {
		got := ConvertVelocity(c.vMps, c.units)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("ConvertVelocity(%v, %q) = %v, want %v", c.vMps, c.units, got, c.want)
		}
	}
}
