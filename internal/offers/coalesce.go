package offers

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// ParseNumber parses a loosely formatted decimal such as "1 234,56".
// Whitespace (including non-breaking spaces used as thousands separators) is
// removed and the first comma is read as the decimal mark. Empty, unparseable
// or non-finite input reports false.
func ParseNumber(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, false
	}
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Number reads a JSON value as a number. Numbers are taken as-is, strings go
// through ParseNumber and everything else is absent.
func Number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		if math.IsNaN(r.Num) || math.IsInf(r.Num, 0) {
			return 0, false
		}
		return r.Num, true
	case gjson.String:
		return ParseNumber(r.Str)
	default:
		return 0, false
	}
}

// FirstNumber returns the first candidate path in record that holds a usable
// number, passed through fix when fix is non-nil.
func FirstNumber(record gjson.Result, paths []string, fix func(float64) float64) (float64, bool) {
	for _, p := range paths {
		v, ok := Number(record.Get(p))
		if !ok {
			continue
		}
		if fix != nil {
			v = fix(v)
		}
		return v, true
	}
	return 0, false
}

// FirstNumberPtr is FirstNumber returning nil when no candidate matched.
func FirstNumberPtr(record gjson.Result, paths []string, fix func(float64) float64) *float64 {
	if v, ok := FirstNumber(record, paths, fix); ok {
		return &v
	}
	return nil
}

// FirstString returns the first candidate path holding a non-blank string,
// trimmed. Numbers are accepted and rendered as their raw JSON text.
func FirstString(record gjson.Result, paths []string) string {
	for _, p := range paths {
		r := record.Get(p)
		var s string
		switch r.Type {
		case gjson.String:
			s = r.Str
		case gjson.Number:
			s = r.Raw
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Coalesce returns the first non-nil value.
func Coalesce[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
