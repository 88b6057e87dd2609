package offers

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Display defaults for blueprint records missing identity fields.
const (
	UnknownVendor = "Ukjent leverandør"
	UnnamedOffer  = "Uten navn"
)

// Candidate paths for the blueprint shape, in priority order.
var blueprintFields = struct {
	Addon, Total, Spot, Fee []string
}{
	Addon: []string{"currentPrice.addonPrice", "currentPrice.finalAddonPrice", "currentPrice.effectiveAddonPrice"},
	Total: []string{"currentPrice.electricityPerKwh", "currentPrice.fullElectricityPerKwh", "currentPrice.finalKwPrice"},
	Spot:  []string{"currentPrice.spotPrice", "currentPrice.kwPrice"},
	Fee:   []string{"fee.finalMonthlyFee", "fee.monthlyFee"},
}

// ContractTypeFromBlueprint maps the free-text blueprint type tag. Tags that
// match nothing are treated as spot contracts.
func ContractTypeFromBlueprint(tag string) string {
	s := strings.ToLower(tag)
	switch {
	case strings.Contains(s, "spot"):
		return ContractSpot
	case strings.Contains(s, "fixed"):
		return ContractFixed
	case strings.Contains(s, "var"):
		return ContractVariable
	default:
		return ContractSpot
	}
}

// blueprintPricing holds the per-kWh and fee fields shared by the full mapper
// and the detail projection.
type blueprintPricing struct {
	addon, total *float64
	fee          *float64
}

func resolveBlueprintPricing(rec gjson.Result) blueprintPricing {
	return blueprintPricing{
		addon: FirstNumberPtr(rec, blueprintFields.Addon, NokPerKwhSigned),
		total: FirstNumberPtr(rec, blueprintFields.Total, NokPerKwhSigned),
		fee:   FirstNumberPtr(rec, blueprintFields.Fee, nil),
	}
}

// MapBlueprint maps one blueprint-shaped record. It never fails: missing
// fields fall back to display defaults and zero prices.
func MapBlueprint(rec gjson.Result) Offer {
	vendor := FirstString(rec, []string{"organization.name"})
	if vendor == "" {
		vendor = UnknownVendor
	}
	name := FirstString(rec, []string{"name"})
	if name == "" {
		name = UnnamedOffer
	}
	rawType := rec.Get("type").String()
	contractType := ContractTypeFromBlueprint(rawType)

	p := resolveBlueprintPricing(rec)

	spot := 0.0
	if p.total != nil && p.addon != nil {
		spot = nonNegative(*p.total - *p.addon)
	} else if v, ok := FirstNumber(rec, blueprintFields.Spot, NokPerKwhSigned); ok {
		spot = v
	}

	fee := 0.0
	if p.fee != nil {
		fee = *p.fee
	}

	var warranty *int
	if n, ok := Number(rec.Get("conditions.agreementTime")); ok {
		warranty = WarrantyMonths(n, rec.Get("conditions.agreementTimeUnit").String())
	}

	o := Offer{
		ID:              FirstString(rec, []string{"id"}),
		Vendor:          vendor,
		Name:            name,
		URL:             strings.TrimSpace(rec.Get("orderUrl").String()),
		ContractType:    contractType,
		RawContractType: rawType,
		SpotPrice:       nonNegative(spot),
		MonthlyFee:      nonNegative(fee),
		WarrantyMonths:  warranty,
		PerKwhTotalNok:  p.total,
		ExpiresAt:       parseTime(rec.Get("expiredAt")),
	}
	// Markup is only shown for spot contracts.
	if contractType == ContractSpot {
		o.AddonNokPerKwh = p.addon
	}
	return o
}
