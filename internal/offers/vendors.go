package offers

import (
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// collate carries no Bokmål tailoring and "nb" silently falls back to root
// order. Nynorsk shares the alphabet and sorts Æ, Ø, Å after Z.
var norwegian = language.MustParse("nn")

// VendorRef names a supplying organization and its URL slug.
type VendorRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Slugify lower-cases s, strips diacritics and collapses every run of
// non-alphanumerics into a single dash.
func Slugify(s string) string {
	decomposed := norm.NFKD.String(strings.ToLower(s))
	var b strings.Builder
	dash := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// NewCollator returns a Norwegian collator. Collators are not safe for
// concurrent use, so callers create one per sort.
func NewCollator() *collate.Collator {
	return collate.New(norwegian)
}

// UniqueVendors lists the distinct vendors in offers, sorted by Norwegian
// collation.
func UniqueVendors(list []Offer) []VendorRef {
	seen := make(map[string]bool)
	var names []string
	for _, o := range list {
		if !seen[o.Vendor] {
			seen[o.Vendor] = true
			names = append(names, o.Vendor)
		}
	}
	NewCollator().SortStrings(names)
	out := make([]VendorRef, 0, len(names))
	for _, n := range names {
		out = append(out, VendorRef{Name: n, Slug: Slugify(n)})
	}
	return out
}

// ByVendorSlug returns the offers whose vendor slug equals slug.
func ByVendorSlug(list []Offer, slug string) []Offer {
	var out []Offer
	for _, o := range list {
		if Slugify(o.Vendor) == slug {
			out = append(out, o)
		}
	}
	return out
}
