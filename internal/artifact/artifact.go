// Package artifact serializes reconciled rows into the on-disk outputs: a
// CSV table, a JSON array, and an optional PNG chart.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"candle-diff/internal/reconcile"
)

// TimeLayout is the artifact timestamp format: UTC wall clock with a literal
// Z suffix.
const TimeLayout = "2006-01-02 15:04:05Z"

var csvHeader = []string{
	"ts_utc",
	"binance_mark_close",
	"reya_close",
	"abs_diff",
	"diff_pct",
	"updated_at_utc",
}

// Paths locates the artifact files for one pair and resolution.
type Paths struct {
	CSV   string
	JSON  string
	Chart string
}

// ResolvePaths derives the artifact file locations inside dir.
func ResolvePaths(dir, pair, resolution string) Paths {
	stem := fmt.Sprintf("%s_%s", pair, resolution)
	return Paths{
		CSV:   filepath.Join(dir, stem+".csv"),
		JSON:  filepath.Join(dir, stem+".json"),
		Chart: filepath.Join(dir, stem+".png"),
	}
}

// WriteCSV writes the rows as a CSV table. Null values render as empty cells.
func WriteCSV(path string, rows []reconcile.Row) error {
	return writeAtomic(path, func(f *os.File) error {
		w := csv.NewWriter(f)

		if err := w.Write(csvHeader); err != nil {
			return err
		}
		for _, row := range rows {
			record := []string{
				formatTime(row.MinuteMS),
				decString(row.BinanceClose),
				decString(row.ReyaClose),
				decString(row.AbsDiff),
				decString(row.DiffPct),
				row.UpdatedAt.UTC().Format(TimeLayout),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}

		w.Flush()
		return w.Error()
	})
}

type jsonRow struct {
	TsUTC            string       `json:"ts_utc"`
	BinanceMarkClose *json.Number `json:"binance_mark_close"`
	ReyaClose        *json.Number `json:"reya_close"`
	AbsDiff          *json.Number `json:"abs_diff"`
	DiffPct          *json.Number `json:"diff_pct"`
	UpdatedAtUTC     string       `json:"updated_at_utc"`
}

// WriteJSON writes the rows as a two-space-indented JSON array with a
// trailing newline. Prices marshal as bare JSON numbers, absent values as
// null.
func WriteJSON(path string, rows []reconcile.Row) error {
	return writeAtomic(path, func(f *os.File) error {
		out := make([]jsonRow, 0, len(rows))
		for _, row := range rows {
			out = append(out, jsonRow{
				TsUTC:            formatTime(row.MinuteMS),
				BinanceMarkClose: decNumber(row.BinanceClose),
				ReyaClose:        decNumber(row.ReyaClose),
				AbsDiff:          decNumber(row.AbsDiff),
				DiffPct:          decNumber(row.DiffPct),
				UpdatedAtUTC:     row.UpdatedAt.UTC().Format(TimeLayout),
			})
		}

		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	})
}

// ReadJSON loads rows back from a JSON artifact.
func ReadJSON(path string) ([]reconcile.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw []jsonRow
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	rows := make([]reconcile.Row, 0, len(raw))
	for _, jr := range raw {
		ts, err := time.Parse(TimeLayout, jr.TsUTC)
		if err != nil {
			return nil, fmt.Errorf("parse ts_utc %q: %w", jr.TsUTC, err)
		}
		updated, err := time.Parse(TimeLayout, jr.UpdatedAtUTC)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at_utc %q: %w", jr.UpdatedAtUTC, err)
		}
		rows = append(rows, reconcile.Row{
			MinuteMS:     ts.UnixMilli(),
			BinanceClose: numberDec(jr.BinanceMarkClose),
			ReyaClose:    numberDec(jr.ReyaClose),
			AbsDiff:      numberDec(jr.AbsDiff),
			DiffPct:      numberDec(jr.DiffPct),
			UpdatedAt:    updated,
		})
	}
	return rows, nil
}

// writeAtomic fills a temporary file in the target directory and renames it
// over path, creating the directory first if needed.
func writeAtomic(path string, fill func(*os.File) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatTime(tsMS int64) string {
	return time.UnixMilli(tsMS).UTC().Format(TimeLayout)
}

func decString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func decNumber(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := json.Number(d.String())
	return &n
}

func numberDec(n *json.Number) *decimal.Decimal {
	if n == nil {
		return nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return nil
	}
	return &d
}
