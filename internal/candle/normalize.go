package candle

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Strictness selects how normalizers treat malformed payload elements.
type Strictness int

const (
	// Lenient skips malformed elements and keeps parsing.
	Lenient Strictness = iota
	// Strict fails the whole parse on the first malformed element.
	Strict
)

var (
	// ErrUnrecognizedPayload reports a payload whose top-level shape matches
	// none of the known venue formats.
	ErrUnrecognizedPayload = errors.New("candle: unrecognized payload shape")
	// ErrNoCandles reports a recognized payload that yielded zero points.
	ErrNoCandles = errors.New("candle: no candle points found")
)

// MalformedError reports the first shape violation under strict parsing.
type MalformedError struct {
	Index  int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("candle: element %d: %s", e.Index, e.Reason)
}

// Field lookup orders for heterogeneous object candles. First present key
// wins, even when its value turns out to be unusable.
var (
	containerKeys = []string{"candles", "data", "result", "items"}
	timestampKeys = []string{"timestamp", "time", "t", "openTime", "open_time"}
	closeKeys     = []string{"close", "c", "closePrice", "close_price"}
)

// secondsThreshold separates second- from millisecond-precision timestamps:
// anything below 10^12 is taken as seconds and scaled up.
const secondsThreshold = int64(1_000_000_000_000)

// ParseBinance normalizes the array-of-arrays kline shape: each element is an
// array of length >= 5 with the open time (ms) at index 0 and the close price
// at index 4. Elements violating that shape are skipped under Lenient mode
// and fail the parse under Strict mode.
func ParseBinance(payload any, mode Strictness) ([]Point, error) {
	rows, ok := payload.([]any)
	if !ok {
		return nil, ErrUnrecognizedPayload
	}

	points := make([]Point, 0, len(rows))
	for i, item := range rows {
		arr, ok := item.([]any)
		if !ok || len(arr) < 5 {
			if mode == Strict {
				return nil, &MalformedError{Index: i, Reason: "expected array with at least 5 entries"}
			}
			continue
		}

		ts, ok := asMillis(arr[0])
		if !ok {
			if mode == Strict {
				return nil, &MalformedError{Index: i, Reason: "open time is not numeric"}
			}
			continue
		}

		points = append(points, Point{MinuteMS: FloorMinute(ts), Close: ParseNumber(arr[4])})
	}

	return points, nil
}

// ParseReya normalizes the heterogeneous candle shape: a top-level array, or
// an object whose first matching container key holds the array. Candles may
// be arrays (index 0 = timestamp, index 4 = close) or objects resolved via
// the ordered key lists above. Sub-10^12 object timestamps are treated as
// seconds. Elements without a resolvable timestamp are dropped; a resolvable
// timestamp with no close is kept as a null-close point.
func ParseReya(payload any) ([]Point, error) {
	candles, ok := candleList(payload)
	if !ok {
		return nil, ErrUnrecognizedPayload
	}

	points := make([]Point, 0, len(candles))
	for _, item := range candles {
		switch c := item.(type) {
		case []any:
			if len(c) < 5 {
				continue
			}
			ts, ok := asMillis(c[0])
			if !ok {
				continue
			}
			points = append(points, Point{MinuteMS: FloorMinute(ts), Close: ParseNumber(c[4])})

		case map[string]any:
			raw, ok := firstPresent(c, timestampKeys)
			if !ok {
				continue
			}
			ts, ok := asMillis(raw)
			if !ok {
				continue
			}
			if ts < secondsThreshold {
				ts *= 1000
			}

			var close *decimal.Decimal
			if v, ok := firstPresent(c, closeKeys); ok {
				close = ParseNumber(v)
			}
			points = append(points, Point{MinuteMS: FloorMinute(ts), Close: close})
		}
	}

	if len(points) == 0 {
		return nil, ErrNoCandles
	}
	return points, nil
}

// candleList unwraps the payload into the raw candle slice.
func candleList(payload any) ([]any, bool) {
	switch p := payload.(type) {
	case []any:
		return p, true
	case map[string]any:
		for _, key := range containerKeys {
			if arr, ok := p[key].([]any); ok {
				return arr, true
			}
		}
	}
	return nil, false
}

// firstPresent returns the value of the first key present in obj, in the
// given order. Presence wins over usability: a present key with a null value
// stops the search.
func firstPresent(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	return nil, false
}
