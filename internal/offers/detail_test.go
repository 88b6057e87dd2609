package offers

import (
	"encoding/json"
	"testing"

	"github.com/tidwall/gjson"
)

func TestProjectDetail(t *testing.T) {
	rec := gjson.Parse(`{
		"id": 9,
		"name": "Fastpris 12",
		"type": "fixed_price",
		"orderUrl": "https://v.example/order",
		"publishedAt": "2025-08-01T00:00:00Z",
		"organization": {"name": "Vendor AS", "pricelistUrl": "https://v.example/prices"},
		"currentPrice": {"finalAddonPrice": 3, "finalKwPrice": 110},
		"fee": {"monthlyFee": 29}
	}`)
	d := ProjectDetail(rec)

	if d.ID != "9" || d.Vendor != "Vendor AS" || d.ContractType != ContractFixed {
		t.Fatalf("unexpected header: %+v", d)
	}
	if d.UpdatedAt == nil || *d.UpdatedAt != "2025-08-01T00:00:00Z" {
		t.Errorf("updatedAt should fall back to publishedAt, got %v", d.UpdatedAt)
	}
	if d.AddonNokPerKwh == nil || *d.AddonNokPerKwh != 3 {
		t.Errorf("addon is reported for non-spot in detail, got %v", d.AddonNokPerKwh)
	}
	if d.PerKwhTotalNok == nil || !almost(*d.PerKwhTotalNok, 1.1) {
		t.Errorf("total: got %v", d.PerKwhTotalNok)
	}
	if d.MonthlyFee == nil || *d.MonthlyFee != 29 {
		t.Errorf("fee: got %v", d.MonthlyFee)
	}
	if d.PricelistURL == nil || *d.PricelistURL != "https://v.example/prices" {
		t.Errorf("pricelist: got %v", d.PricelistURL)
	}
}

func TestProjectDetail_AbsentFieldsAreNull(t *testing.T) {
	b, err := json.Marshal(ProjectDetail(gjson.Parse(`{"id": 1}`)))
	if err != nil {
		t.Fatal(err)
	}
	m := map[string]any{}
	_ = json.Unmarshal(b, &m)
	for _, k := range []string{"addonNokPerKwh", "perKwhTotalNok", "monthlyFee", "orderUrl", "pricelistUrl", "updatedAt"} {
		v, present := m[k]
		if !present || v != nil {
			t.Errorf("expected %s to be null, got %v (present=%v)", k, v, present)
		}
	}
}
