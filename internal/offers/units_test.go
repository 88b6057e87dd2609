package offers

import (
	"math"
	"testing"
)

func TestNokPerKwhSigned(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{5, 5},
		{-5, -5},
		{10, 10},
		{-15, -0.15},
		{95, 0.95},
		{7.5, 7.5},
		{-130, -1.3},
	}
	for _, tt := range tests {
		got := NokPerKwhSigned(tt.in)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("NokPerKwhSigned(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if tt.in < 0 && got >= 0 {
			t.Errorf("sign lost for %v", tt.in)
		}
	}
}

func TestWarrantyMonths(t *testing.T) {
	tests := []struct {
		n    float64
		unit string
		want *int
	}{
		{1, "year", Int(12)},
		{2, "Years", Int(24)},
		{6, "month", Int(6)},
		{3, "months", Int(3)},
		{9, "weird", Int(9)},
		{0, "month", nil},
		{-1, "year", nil},
		{math.NaN(), "month", nil},
		{math.Inf(1), "year", nil},
		{100, "years", Int(1200)},
		{1201, "month", nil},
		{1e300, "month", nil},
		{1e300, "year", nil},
	}
	for _, tt := range tests {
		got := WarrantyMonths(tt.n, tt.unit)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("WarrantyMonths(%v, %q) = %d, want absent", tt.n, tt.unit, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("WarrantyMonths(%v, %q) = %v, want %d", tt.n, tt.unit, got, *tt.want)
		}
	}
}
