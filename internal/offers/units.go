package offers

import (
	"math"
	"strings"
)

// oreThreshold is the magnitude above which a per-kWh figure is read as øre.
const oreThreshold = 10

// maxWarrantyMonths is the longest agreement duration accepted.
const maxWarrantyMonths = 1200

// NokPerKwhSigned converts a per-kWh value that may be quoted in øre into NOK,
// keeping the sign so promotional discounts stay negative.
//
// The unit is guessed: anything with |v| > 10 is taken as øre. A genuinely
// large NOK figure or a tiny øre figure will be misread; the sources carry no
// unit tag to do better.
func NokPerKwhSigned(v float64) float64 {
	if v == 0 {
		return 0
	}
	if math.Abs(v) > oreThreshold {
		return v / 100
	}
	return v
}

// WarrantyMonths normalizes an agreement duration to whole months. Units
// starting with "year" are multiplied by 12; "month" and unknown units pass
// through. Non-finite, non-positive or implausibly long durations (over
// 100 years) carry no warranty.
func WarrantyMonths(n float64, unit string) *int {
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return nil
	}
	u := strings.ToLower(strings.TrimSpace(unit))
	if strings.HasPrefix(u, "year") {
		n *= 12
	}
	if n > maxWarrantyMonths {
		return nil
	}
	m := int(math.Round(n))
	if m <= 0 {
		return nil
	}
	return &m
}

// nonNegative clamps v at zero.
func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
