// Package candle normalizes venue candle payloads into minute-aligned
// close-price points.
package candle

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// minuteMS is the width of one candle bucket in milliseconds.
const minuteMS = 60_000

// Point is one venue's observed close for an exact UTC minute boundary.
// A nil Close means the venue reported the minute without a usable price.
type Point struct {
	MinuteMS int64
	Close    *decimal.Decimal
}

// Series maps minute-boundary timestamps to close prices. Missing minutes are
// simply absent; a present key with a nil value is a minute the venue reported
// without a price.
type Series map[int64]*decimal.Decimal

// BuildSeries indexes points by minute. Venue payloads may contain duplicate
// or overlapping candles; later entries overwrite earlier ones.
func BuildSeries(points []Point) Series {
	s := make(Series, len(points))
	for _, p := range points {
		s[p.MinuteMS] = p.Close
	}
	return s
}

// FloorMinute rounds a millisecond timestamp down to its minute boundary.
// The result never exceeds the input, including for timestamps before the
// epoch, where integer division alone would round toward zero.
func FloorMinute(tsMS int64) int64 {
	floored := (tsMS / minuteMS) * minuteMS
	if tsMS < 0 && tsMS%minuteMS != 0 {
		floored -= minuteMS
	}
	return floored
}

// ParseNumber coerces a decoded JSON value into a decimal price. It is total:
// nil, booleans, and unparseable values map to nil, never an error.
func ParseNumber(v any) *decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return nil
	case json.Number:
		return fromString(string(n))
	case string:
		return fromString(n)
	case float64:
		d := decimal.NewFromFloat(n)
		return &d
	case float32:
		d := decimal.NewFromFloat32(n)
		return &d
	case int:
		d := decimal.NewFromInt(int64(n))
		return &d
	case int64:
		d := decimal.NewFromInt(n)
		return &d
	default:
		return nil
	}
}

func fromString(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &d
}

// asMillis reads a timestamp out of a decoded JSON value, truncating any
// fractional part the way integer conversion would.
func asMillis(v any) (int64, bool) {
	d := ParseNumber(v)
	if d == nil {
		return 0, false
	}
	return d.IntPart(), true
}
