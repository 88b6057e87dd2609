package offers

import (
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

// ErrUnrecognizedPayload is returned when a payload is neither an array of
// records nor an object wrapping one under "items".
var ErrUnrecognizedPayload = errors.New("payload is neither an array nor an object with an items array")

// Records extracts the record list from a raw payload.
func Records(payload []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrUnrecognizedPayload
	}
	root := gjson.ParseBytes(payload)
	if root.IsArray() {
		return root.Array(), nil
	}
	if items := root.Get("items"); root.IsObject() && items.IsArray() {
		return items.Array(), nil
	}
	return nil, ErrUnrecognizedPayload
}

// MapAll maps every record with fn. One bad record never drops the batch.
func MapAll(records []gjson.Result, fn func(gjson.Result) Offer) []Offer {
	out := make([]Offer, 0, len(records))
	for _, r := range records {
		out = append(out, fn(r))
	}
	return out
}

// Assemble wraps offers into a dump stamped with now.
func Assemble(list []Offer, source Source, now time.Time) PriceDump {
	if list == nil {
		list = []Offer{}
	}
	return PriceDump{
		UpdatedAt: now.UTC(),
		Offers:    list,
		Source:    source,
	}
}

// MapBlueprintPayload maps a blueprint payload into a mock-tagged dump.
func MapBlueprintPayload(payload []byte, now time.Time) (PriceDump, error) {
	recs, err := Records(payload)
	if err != nil {
		return PriceDump{}, err
	}
	return Assemble(MapAll(recs, MapBlueprint), SourceMock, now), nil
}

// MapVendorPayload maps a vendor API payload into an api-tagged dump. A
// wrapper object may also carry a spotByArea table.
func MapVendorPayload(payload []byte, now time.Time) (PriceDump, error) {
	recs, err := Records(payload)
	if err != nil {
		return PriceDump{}, err
	}
	d := Assemble(MapAll(recs, MapVendor), SourceAPI, now)
	d.SpotByArea = spotByArea(gjson.GetBytes(payload, "spotByArea"))
	return d, nil
}

func spotByArea(r gjson.Result) map[string]float64 {
	if !r.IsObject() {
		return nil
	}
	out := make(map[string]float64)
	r.ForEach(func(k, v gjson.Result) bool {
		area := NormalizeArea(k.String())
		if n, ok := Number(v); ok && area != "" {
			out[area] = nonNegative(NokPerKwhSigned(n))
		}
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}
