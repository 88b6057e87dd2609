// Package ranking filters and orders priced offers for display.
package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bher20/stromdeals/internal/offers"
)

// Item is an offer annotated with its monthly estimate and promotion flag.
type Item struct {
	offers.Offer
	EstimatedMonthly *float64 `json:"estimatedMonthly"`
	Promoted         bool     `json:"promoted,omitempty"`
}

// SortMode selects the ordering applied by Sort.
type SortMode string

const (
	SortEstimate    SortMode = "est"
	SortAddon       SortMode = "addon"
	SortFee         SortMode = "fee"
	SortName        SortMode = "name"
	SortRecommended SortMode = "rec"
)

// ParseSortMode maps a query value to a SortMode. Unknown values sort by estimate.
func ParseSortMode(s string) SortMode {
	switch m := SortMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SortEstimate, SortAddon, SortFee, SortName, SortRecommended:
		return m
	default:
		return SortEstimate
	}
}

// WarrantyBucket is a price-guarantee length range.
type WarrantyBucket string

const (
	WarrantyAtLeast12 WarrantyBucket = "ge12"
	Warranty6To11     WarrantyBucket = "m6to11"
	WarrantyUnder6    WarrantyBucket = "lt6"
)

func (b WarrantyBucket) contains(months int) bool {
	switch b {
	case WarrantyAtLeast12:
		return months >= 12
	case Warranty6To11:
		return months >= 6 && months <= 11
	case WarrantyUnder6:
		return months < 6
	}
	return false
}

// ParseWarrantyBuckets reads a comma separated bucket list, ignoring unknown names.
func ParseWarrantyBuckets(s string) []WarrantyBucket {
	var out []WarrantyBucket
	for _, part := range strings.Split(s, ",") {
		switch b := WarrantyBucket(strings.ToLower(strings.TrimSpace(part))); b {
		case WarrantyAtLeast12, Warranty6To11, WarrantyUnder6:
			out = append(out, b)
		}
	}
	return out
}

// Filter holds the user-facing predicates. Zero values disable a predicate.
type Filter struct {
	ContractType string
	Vendor       string
	Query        string
	Warranty     []WarrantyBucket
}

// Query is a Filter plus ordering. A zero Now means time.Now().
type Query struct {
	Filter
	Sort SortMode
	Now  time.Time
}

// Annotate estimates every offer for kwh of monthly consumption. When area
// names a zone present in spotByArea, that spot price is used for offers
// without one of their own.
func Annotate(list []offers.Offer, kwh float64, spotByArea map[string]float64, area string) []Item {
	var areaSpot *float64
	if a := offers.NormalizeArea(area); a != "" {
		if v, ok := spotByArea[a]; ok {
			areaSpot = &v
		}
	}
	out := make([]Item, 0, len(list))
	for _, o := range list {
		it := Item{Offer: o}
		if est, ok := offers.EstimateInArea(o, kwh, areaSpot); ok {
			it.EstimatedMonthly = &est
		}
		out = append(out, it)
	}
	return out
}

func isAll(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "alle", "all":
		return true
	}
	return false
}

// Apply returns the items passing f, in their original order. Offers without
// an order link and offers that expired before now are always removed.
func Apply(items []Item, f Filter, now time.Time) []Item {
	contract := strings.ToLower(strings.TrimSpace(f.ContractType))
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.URL) == "" {
			continue
		}
		if it.ExpiresAt != nil && it.ExpiresAt.Before(now) {
			continue
		}
		if !isAll(contract) && strings.ToLower(it.ContractType) != contract {
			continue
		}
		if !isAll(f.Vendor) && it.Vendor != f.Vendor {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(it.Name), q) && !strings.Contains(strings.ToLower(it.Vendor), q) {
			continue
		}
		if !warrantyMatches(it.WarrantyMonths, f.Warranty) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Unknown warranty passes every bucket selection.
func warrantyMatches(months *int, buckets []WarrantyBucket) bool {
	if len(buckets) == 0 || months == nil {
		return true
	}
	for _, b := range buckets {
		if b.contains(*months) {
			return true
		}
	}
	return false
}

func orInf(v *float64) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return *v
}

// Sort returns a new slice ordered by mode. Every mode is stable.
func Sort(items []Item, mode SortMode) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		out[i].Promoted = false
	}

	switch mode {
	case SortAddon:
		sort.SliceStable(out, func(i, j int) bool { return orInf(out[i].AddonNokPerKwh) < orInf(out[j].AddonNokPerKwh) })
	case SortFee:
		sort.SliceStable(out, func(i, j int) bool { return out[i].MonthlyFee < out[j].MonthlyFee })
	case SortName:
		c := offers.NewCollator()
		sort.SliceStable(out, func(i, j int) bool { return c.CompareString(out[i].Name, out[j].Name) < 0 })
	case SortRecommended:
		return recommend(out)
	default:
		sortByEstimate(out)
	}
	return out
}

func sortByEstimate(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return orInf(items[i].EstimatedMonthly) < orInf(items[j].EstimatedMonthly)
	})
}

// Score blends price with a small boost for offers carrying an affiliate program.
func Score(it Item) float64 {
	boost := 0.0
	if it.ProgramID != "" {
		boost = 0.1
	}
	return boost + 1/math.Max(1, orInf(it.EstimatedMonthly))
}

// recommend orders by descending Score and flags affiliate offers that moved
// ahead of their price-only position.
func recommend(items []Item) []Item {
	type ranked struct {
		Item
		baseline int
	}

	byPrice := make([]int, len(items))
	for i := range byPrice {
		byPrice[i] = i
	}
	sort.SliceStable(byPrice, func(a, b int) bool {
		return orInf(items[byPrice[a]].EstimatedMonthly) < orInf(items[byPrice[b]].EstimatedMonthly)
	})
	baseline := make([]int, len(items))
	for pos, idx := range byPrice {
		baseline[idx] = pos
	}

	rs := make([]ranked, len(items))
	for i, it := range items {
		rs[i] = ranked{Item: it, baseline: baseline[i]}
	}
	sort.SliceStable(rs, func(a, b int) bool { return Score(rs[a].Item) > Score(rs[b].Item) })

	out := make([]Item, len(rs))
	for i, r := range rs {
		r.Promoted = r.ProgramID != "" && i < r.baseline
		out[i] = r.Item
	}
	return out
}

// Rank filters then sorts.
func Rank(items []Item, q Query) []Item {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	return Sort(Apply(items, q.Filter, now), q.Sort)
}
