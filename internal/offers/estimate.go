package offers

import "math"

// DefaultConsumption is the monthly household consumption (kWh) assumed when
// the caller supplies none.
const DefaultConsumption = 1333

// UsageTier is a typical household consumption level.
type UsageTier struct {
	ID      string  `json:"id"`
	Monthly float64 `json:"monthlyKwh"`
}

// UsageTiers lists the preset consumption levels, smallest first.
var UsageTiers = []UsageTier{
	{ID: "low", Monthly: 500},
	{ID: "mid", Monthly: 1333},
	{ID: "high", Monthly: 2400},
}

// TierByID looks up a usage tier.
func TierByID(id string) (UsageTier, bool) {
	for _, t := range UsageTiers {
		if t.ID == id {
			return t, true
		}
	}
	return UsageTier{}, false
}

// NearestTier returns the preset closest to kwh. Ties go to the smaller tier.
func NearestTier(kwh float64) UsageTier {
	best := UsageTiers[0]
	for _, t := range UsageTiers[1:] {
		if math.Abs(t.Monthly-kwh) < math.Abs(best.Monthly-kwh) {
			best = t
		}
	}
	return best
}

// PerKwh returns the effective all-in unit price: the supplied total when
// present, otherwise spot plus addon. Offers with neither are not priceable.
func PerKwh(o Offer) (float64, bool) {
	if o.PerKwhTotalNok != nil {
		return *o.PerKwhTotalNok, true
	}
	if o.AddonNokPerKwh != nil {
		return o.SpotPrice + *o.AddonNokPerKwh, true
	}
	return 0, false
}

// Estimate computes the monthly spend for kwh of consumption, rounded to whole
// NOK. It reports false when the offer has no resolvable unit price or the
// result is not finite; callers must show that as unknown, never as free.
func Estimate(o Offer, kwh float64) (float64, bool) {
	perKwh, ok := PerKwh(o)
	if !ok {
		return 0, false
	}
	v := roundHalfUp(perKwh*clampConsumption(kwh) + o.MonthlyFee)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// EstimateInArea is Estimate with the zone spot price substituted for offers
// that carry no spot price of their own.
func EstimateInArea(o Offer, kwh float64, areaSpot *float64) (float64, bool) {
	if o.SpotPrice == 0 && areaSpot != nil {
		o.SpotPrice = *areaSpot
	}
	return Estimate(o, kwh)
}

func clampConsumption(kwh float64) float64 {
	if math.IsNaN(kwh) || kwh < 0 {
		return 0
	}
	return kwh
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
