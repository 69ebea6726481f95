// Package reconcile builds the dense minute grid and aligns both venues'
// close series into divergence rows.
package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"candle-diff/internal/candle"
)

const minuteMS = 60_000

var hundred = decimal.NewFromInt(100)

// Window is the requested minute range: Rows grid minutes ending one minute
// before the run's floored "now". EndMS is the floored now itself and doubles
// as the exclusive endTime sent upstream, so the in-progress candle is never
// requested into the grid.
type Window struct {
	StartMS int64
	EndMS   int64
	Rows    int
}

// WindowEndingAt derives the window from a wall-clock instant.
func WindowEndingAt(now time.Time, rows int) Window {
	endMS := now.UTC().Truncate(time.Minute).UnixMilli()
	return Window{
		StartMS: endMS - int64(rows)*minuteMS,
		EndMS:   endMS,
		Rows:    rows,
	}
}

// Grid returns the minute spine: Rows contiguous boundaries starting at
// StartMS. It exists independently of what either venue returned.
func (w Window) Grid() []int64 {
	grid := make([]int64, w.Rows)
	for i := range grid {
		grid[i] = w.StartMS + int64(i)*minuteMS
	}
	return grid
}

// Row aligns both venues' closes for one minute plus the derived divergence
// fields. Immutable once built.
type Row struct {
	MinuteMS     int64
	BinanceClose *decimal.Decimal
	ReyaClose    *decimal.Decimal
	AbsDiff      *decimal.Decimal
	DiffPct      *decimal.Decimal
	UpdatedAt    time.Time
}

// NewRow computes the divergence fields: abs_diff = reya - binance and
// diff_pct = abs_diff / binance * 100, both null unless both closes are
// present, diff_pct additionally null when binance is zero.
func NewRow(minuteMS int64, binance, reya *decimal.Decimal, updatedAt time.Time) Row {
	row := Row{
		MinuteMS:     minuteMS,
		BinanceClose: binance,
		ReyaClose:    reya,
		UpdatedAt:    updatedAt,
	}

	if binance == nil || reya == nil {
		return row
	}

	diff := reya.Sub(*binance)
	row.AbsDiff = &diff
	if !binance.IsZero() {
		pct := diff.Div(*binance).Mul(hundred)
		row.DiffPct = &pct
	}
	return row
}

// BuildRows emits one row per grid minute, in grid order, looking each series
// up by exact minute. No nearest-neighbour matching or interpolation: a
// minute a venue did not report stays null for that venue.
func BuildRows(w Window, binance, reya candle.Series, updatedAt time.Time) []Row {
	rows := make([]Row, 0, w.Rows)
	for _, ts := range w.Grid() {
		rows = append(rows, NewRow(ts, binance[ts], reya[ts], updatedAt))
	}
	return rows
}

// SourcesError is the fatal case: neither venue produced a series, so there
// is nothing left to reconcile.
type SourcesError struct {
	Binance error
	Reya    error
}

func (e *SourcesError) Error() string {
	return fmt.Sprintf("both sources failed: binance: %s; reya: %s", e.Binance, e.Reya)
}
