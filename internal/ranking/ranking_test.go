package ranking

import (
	"testing"
	"time"

	"github.com/bher20/stromdeals/internal/offers"
)

func est(v float64) *float64 { return &v }

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalIDs(t *testing.T, got []Item, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got %v, want %v", g, want)
		}
	}
}

func item(id string, estimate *float64) Item {
	return Item{Offer: offers.Offer{ID: id, Name: id, Vendor: "V", URL: "https://x/" + id, ContractType: offers.ContractSpot}, EstimatedMonthly: estimate}
}

func TestAnnotate(t *testing.T) {
	list := []offers.Offer{
		{ID: "a", SpotPrice: 0.80, AddonNokPerKwh: offers.Float(0.05), MonthlyFee: 39},
		{ID: "b", SpotPrice: 0.9, MonthlyFee: 10},
		{ID: "c", AddonNokPerKwh: offers.Float(0.1)},
	}
	items := Annotate(list, 1000, map[string]float64{"no1": 0.9}, "NO1")
	if items[0].EstimatedMonthly == nil || *items[0].EstimatedMonthly != 889 {
		t.Errorf("a: got %v", items[0].EstimatedMonthly)
	}
	if items[1].EstimatedMonthly != nil {
		t.Errorf("b: unpriceable offer must stay unknown, got %v", *items[1].EstimatedMonthly)
	}
	if items[2].EstimatedMonthly == nil || *items[2].EstimatedMonthly != 1000 {
		t.Errorf("c: expected area spot to be used, got %v", items[2].EstimatedMonthly)
	}
}

func TestApply_DropsOffersWithoutURL(t *testing.T) {
	noURL := item("x", est(1))
	noURL.URL = "   "
	noURL.ProgramID = "p"
	items := []Item{noURL, item("a", est(2))}

	for _, mode := range []SortMode{SortEstimate, SortAddon, SortFee, SortName, SortRecommended} {
		got := Rank(items, Query{Sort: mode})
		equalIDs(t, got, "a")
	}
}

func TestApply_Expiry(t *testing.T) {
	now := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	a, b, c := item("a", nil), item("b", nil), item("c", nil)
	a.ExpiresAt = &past
	b.ExpiresAt = &future
	equalIDs(t, Apply([]Item{a, b, c}, Filter{}, now), "b", "c")
}

func TestApply_Predicates(t *testing.T) {
	mk := func(id, vendor, name, ct string, warranty *int) Item {
		it := item(id, nil)
		it.Vendor, it.Name, it.ContractType, it.WarrantyMonths = vendor, name, ct, warranty
		return it
	}
	items := []Item{
		mk("1", "Tibber", "Smart Spot", offers.ContractSpot, nil),
		mk("2", "Fjordkraft", "Fast 12", offers.ContractFixed, offers.Int(12)),
		mk("3", "Fjordkraft", "Fast 6", offers.ContractFixed, offers.Int(6)),
		mk("4", "Lyse", "Mini", offers.ContractVariable, offers.Int(3)),
	}
	now := time.Now()

	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"none", Filter{}, []string{"1", "2", "3", "4"}},
		{"alle", Filter{ContractType: "Alle", Vendor: "alle"}, []string{"1", "2", "3", "4"}},
		{"contract case-insensitive", Filter{ContractType: "FASTPRIS"}, []string{"2", "3"}},
		{"vendor exact", Filter{Vendor: "Fjordkraft"}, []string{"2", "3"}},
		{"vendor is not substring", Filter{Vendor: "Fjord"}, nil},
		{"query over name", Filter{Query: "spot"}, []string{"1"}},
		{"query over vendor", Filter{Query: "LYSE"}, []string{"4"}},
		{"warranty ge12", Filter{Warranty: []WarrantyBucket{WarrantyAtLeast12}}, []string{"1", "2"}},
		{"warranty m6to11 lt6", Filter{Warranty: []WarrantyBucket{Warranty6To11, WarrantyUnder6}}, []string{"1", "3", "4"}},
		{"combined", Filter{ContractType: "fastpris", Warranty: []WarrantyBucket{Warranty6To11}}, []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equalIDs(t, Apply(items, tt.f, now), tt.want...)
		})
	}
}

func TestParseWarrantyBuckets(t *testing.T) {
	got := ParseWarrantyBuckets("ge12, M6TO11,bogus,")
	if len(got) != 2 || got[0] != WarrantyAtLeast12 || got[1] != Warranty6To11 {
		t.Fatalf("unexpected %v", got)
	}
	if len(ParseWarrantyBuckets("")) != 0 {
		t.Fatalf("empty input should give no buckets")
	}
}

func TestSort_EstimateStableAndMissingLast(t *testing.T) {
	items := []Item{item("a", est(500)), item("nil1", nil), item("b", est(300)), item("c", est(500)), item("nil2", nil)}
	equalIDs(t, Sort(items, SortEstimate), "b", "a", "c", "nil1", "nil2")

	swapped := []Item{item("c", est(500)), item("a", est(500))}
	equalIDs(t, Sort(swapped, SortEstimate), "c", "a")
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	items := []Item{item("b", est(2)), item("a", est(1))}
	_ = Sort(items, SortEstimate)
	equalIDs(t, items, "b", "a")
}

func TestSort_AddonAndFee(t *testing.T) {
	a, b, c := item("a", nil), item("b", nil), item("c", nil)
	a.AddonNokPerKwh = offers.Float(0.05)
	b.AddonNokPerKwh = offers.Float(-0.02)
	a.MonthlyFee, b.MonthlyFee, c.MonthlyFee = 39, 49, 0
	equalIDs(t, Sort([]Item{a, b, c}, SortAddon), "b", "a", "c")
	equalIDs(t, Sort([]Item{a, b, c}, SortFee), "c", "a", "b")
}

func TestSort_NameUsesNorwegianCollation(t *testing.T) {
	items := []Item{item("Åsane", nil), item("Zeta", nil), item("Ørland", nil), item("Ærfugl", nil), item("alfa", nil)}
	equalIDs(t, Sort(items, SortName), "alfa", "Zeta", "Ærfugl", "Ørland", "Åsane")
}

func TestSort_UnknownModeFallsBackToEstimate(t *testing.T) {
	if ParseSortMode("cheapest") != SortEstimate {
		t.Fatalf("expected est fallback")
	}
	if ParseSortMode(" REC ") != SortRecommended {
		t.Fatalf("expected rec")
	}
}

func TestRecommended_PromotesAffiliateOffers(t *testing.T) {
	// 1/max(1, est) is tiny for realistic estimates, so the 0.1 boost lifts
	// any affiliate offer above every non-affiliate one.
	cheap := item("cheap", est(800))
	mid := item("mid", est(900))
	aff := item("aff", est(1000))
	aff.ProgramID = "prog-1"
	affCheapest := item("affCheapest", est(700))
	affCheapest.ProgramID = "prog-2"

	got := Sort([]Item{cheap, mid, aff, affCheapest}, SortRecommended)
	equalIDs(t, got, "affCheapest", "aff", "cheap", "mid")

	promoted := map[string]bool{}
	for _, it := range got {
		promoted[it.ID] = it.Promoted
	}
	if !promoted["aff"] {
		t.Errorf("aff moved from 3 to 1 and should be promoted")
	}
	if promoted["affCheapest"] {
		t.Errorf("affCheapest was already first and should not be promoted")
	}
	if promoted["cheap"] || promoted["mid"] {
		t.Errorf("offers without programId are never promoted")
	}
}

func TestRecommended_PromotionProperty(t *testing.T) {
	items := []Item{
		item("a", est(1200)), item("b", nil), item("c", est(450)), item("d", est(450)),
		item("e", est(0.5)), item("f", est(3000)),
	}
	items[1].ProgramID = "p"
	items[3].ProgramID = "p"
	items[5].ProgramID = "p"

	baseline := Sort(items, SortEstimate)
	basePos := map[string]int{}
	for i, it := range baseline {
		basePos[it.ID] = i
	}

	got := Sort(items, SortRecommended)
	for i := 1; i < len(got); i++ {
		if Score(got[i-1]) < Score(got[i]) {
			t.Fatalf("not sorted by descending score at %d: %v", i, ids(got))
		}
	}
	for i, it := range got {
		want := it.ProgramID != "" && i < basePos[it.ID]
		if it.Promoted != want {
			t.Errorf("%s: promoted=%v, want %v (final %d, baseline %d)", it.ID, it.Promoted, want, i, basePos[it.ID])
		}
	}
}

func TestSort_ClearsStalePromotion(t *testing.T) {
	a := item("a", est(1))
	a.Promoted = true
	got := Sort([]Item{a}, SortEstimate)
	if got[0].Promoted {
		t.Fatalf("promotion is only meaningful for rec")
	}
}

func TestRank_FilterThenSort(t *testing.T) {
	items := []Item{item("a", est(3)), item("b", est(1)), item("c", est(2))}
	items[2].ContractType = offers.ContractFixed
	got := Rank(items, Query{Filter: Filter{ContractType: offers.ContractSpot}, Sort: SortEstimate})
	equalIDs(t, got, "b", "a")
}
