package offers

import "github.com/tidwall/gjson"

// Detail is the on-demand projection of a single blueprint record.
type Detail struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Vendor         string   `json:"vendor"`
	ContractType   string   `json:"contractType"`
	UpdatedAt      *string  `json:"updatedAt"`
	AddonNokPerKwh *float64 `json:"addonNokPerKwh"`
	PerKwhTotalNok *float64 `json:"perKwhTotalNok"`
	MonthlyFee     *float64 `json:"monthlyFee"`
	OrderURL       *string  `json:"orderUrl"`
	PricelistURL   *string  `json:"pricelistUrl"`
}

// ProjectDetail extracts the detail view from a blueprint record using the
// same field resolution as MapBlueprint. Unlike the full mapper it reports the
// addon for every contract type and leaves absent values null.
func ProjectDetail(rec gjson.Result) Detail {
	p := resolveBlueprintPricing(rec)
	return Detail{
		ID:             FirstString(rec, []string{"id"}),
		Name:           rec.Get("name").String(),
		Vendor:         rec.Get("organization.name").String(),
		ContractType:   ContractTypeFromBlueprint(rec.Get("type").String()),
		UpdatedAt:      optString(rec, "updatedAt", "publishedAt"),
		AddonNokPerKwh: p.addon,
		PerKwhTotalNok: p.total,
		MonthlyFee:     p.fee,
		OrderURL:       optString(rec, "orderUrl"),
		PricelistURL:   optString(rec, "organization.pricelistUrl"),
	}
}

func optString(rec gjson.Result, paths ...string) *string {
	for _, p := range paths {
		r := rec.Get(p)
		if r.Type == gjson.String {
			s := r.Str
			return &s
		}
	}
	return nil
}
