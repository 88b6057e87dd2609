package offers

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Candidate paths for the vendor API shape, in priority order.
var vendorFields = struct {
	URL, Tracking, Expires []string
}{
	URL:      []string{"deeplink", "url", "landingPage", "link"},
	Tracking: []string{"trackingUrl", "tracking", "trackUrl"},
	Expires:  []string{"expiredAt", "expiresAt"},
}

var priceAreas = map[string]bool{"no1": true, "no2": true, "no3": true, "no4": true, "no5": true}

// NormalizeArea lower-cases a price zone tag, returning "" for anything that
// is not one of the five zones.
func NormalizeArea(s string) string {
	a := strings.ToLower(strings.TrimSpace(s))
	if priceAreas[a] {
		return a
	}
	return ""
}

// ContractTypeFromVendor lower-cases the vendor tag, defaulting to spot when
// the tag is absent or not one of the canonical types.
func ContractTypeFromVendor(tag string) string {
	switch s := strings.ToLower(strings.TrimSpace(tag)); s {
	case ContractSpot, ContractFixed, ContractVariable:
		return s
	default:
		return ContractSpot
	}
}

// MapVendor maps one vendor-API record. The vendor feed carries no markup
// breakdown, so addon and total stay absent.
func MapVendor(rec gjson.Result) Offer {
	rawType := rec.Get("contractType").String()

	spot, _ := Number(rec.Get("spotNokPerKwh"))
	fee, _ := Number(rec.Get("monthlyFeeNok"))

	var warranty *int
	if n, ok := Number(rec.Get("warrantyMonths")); ok {
		warranty = WarrantyMonths(n, "month")
	}

	return Offer{
		ID:              FirstString(rec, []string{"id"}),
		Vendor:          FirstString(rec, []string{"supplier"}),
		Name:            FirstString(rec, []string{"title"}),
		URL:             FirstString(rec, vendorFields.URL),
		TrackingURL:     FirstString(rec, vendorFields.Tracking),
		ProgramID:       FirstString(rec, []string{"programId"}),
		Area:            NormalizeArea(rec.Get("area").String()),
		Municipality:    FirstString(rec, []string{"municipality"}),
		ContractType:    ContractTypeFromVendor(rawType),
		RawContractType: rawType,
		SpotPrice:       nonNegative(spot),
		MonthlyFee:      nonNegative(fee),
		WarrantyMonths:  warranty,
		Sparkline:       sparkline(rec.Get("sparkline")),
		ExpiresAt:       parseTime(rec.Get(firstPresent(rec, vendorFields.Expires))),
	}
}

func sparkline(r gjson.Result) []float64 {
	if !r.IsArray() {
		return nil
	}
	var out []float64
	for _, p := range r.Array() {
		if v, ok := Number(p); ok {
			out = append(out, v)
		}
	}
	return out
}

func firstPresent(rec gjson.Result, paths []string) string {
	for _, p := range paths {
		if r := rec.Get(p); r.Exists() && r.Type != gjson.Null {
			return p
		}
	}
	return ""
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseTime reads an optional timestamp. Unparseable values are absent.
func parseTime(r gjson.Result) *time.Time {
	if r.Type != gjson.String {
		return nil
	}
	s := strings.TrimSpace(r.Str)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
