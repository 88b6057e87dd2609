// Package bundled ships the static reference dataset used when neither the
// store nor the vendor API can supply a dump.
package bundled

import (
	_ "embed"
	"strconv"
	"sync"
	"time"

	"github.com/bher20/stromdeals/internal/offers"
	"github.com/tidwall/gjson"
)

//go:embed stromapi-mockup.json
var payload []byte

// Payload returns the raw blueprint records.
func Payload() []byte { return payload }

// Dump maps the bundled records into a mock-tagged dump stamped with now.
func Dump(now time.Time) (offers.PriceDump, error) {
	return offers.MapBlueprintPayload(payload, now)
}

var (
	indexOnce sync.Once
	index     map[int64]gjson.Result
)

func buildIndex() {
	index = make(map[int64]gjson.Result)
	recs, err := offers.Records(payload)
	if err != nil {
		return
	}
	for _, r := range recs {
		if id := r.Get("id"); id.Type == gjson.Number {
			index[id.Int()] = r
		}
	}
}

// Lookup finds raw blueprint records by numeric id.
type Lookup struct{}

// FindBlueprint returns the bundled record with the given id.
func (Lookup) FindBlueprint(id int64) (gjson.Result, bool) {
	indexOnce.Do(buildIndex)
	r, ok := index[id]
	return r, ok
}

// ParseID parses a detail id. Only integral ids address blueprint records.
func ParseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}
