package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"candle-diff/internal/artifact"
	"candle-diff/internal/candle"
	"candle-diff/internal/config"
	"candle-diff/internal/reconcile"
)

var fixedNow = time.Date(2024, 2, 10, 12, 34, 56, 0, time.UTC)

type fakeSource struct {
	name   string
	series candle.Series
	err    error
	gotW   reconcile.Window
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, w reconcile.Window) (candle.Series, error) {
	f.gotW = w
	return f.series, f.err
}

type fakeMirror struct {
	calls   int
	startMS int64
	rows    []reconcile.Row
	err     error
}

func (m *fakeMirror) ReplaceWindow(ctx context.Context, startMS int64, rows []reconcile.Row) error {
	m.calls++
	m.startMS = startMS
	m.rows = rows
	return m.err
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Resolution: "1m",
		Rows:       3,
		Output: config.OutputConfig{
			Dir:  dir,
			Pair: "btc_reya_vs_binance",
		},
	}
}

func seriesFor(w reconcile.Window, closes ...string) candle.Series {
	s := make(candle.Series)
	for i, c := range closes {
		if c == "" {
			continue
		}
		d := decimal.RequireFromString(c)
		s[w.StartMS+int64(i)*60_000] = &d
	}
	return s
}

func newTestRunner(cfg *config.Config, binance, reya *fakeSource, mirror Mirror) *Runner {
	r := New(cfg, binance, reya, mirror, zerolog.Nop())
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestRunWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := reconcile.WindowEndingAt(fixedNow, 3)
	binance := &fakeSource{name: "binance", series: seriesFor(w, "100", "200", "300")}
	reya := &fakeSource{name: "reya", series: seriesFor(w, "101", "", "301")}

	summary, err := newTestRunner(testConfig(dir), binance, reya, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Rows != 3 || !summary.BinanceOK || !summary.ReyaOK {
		t.Errorf("summary = %+v, want 3 rows from two healthy sources", summary)
	}
	if summary.RunID == "" {
		t.Error("summary missing run id")
	}

	if binance.gotW != w {
		t.Errorf("source window = %+v, want %+v", binance.gotW, w)
	}
	wantEnd := time.Date(2024, 2, 10, 12, 34, 0, 0, time.UTC).UnixMilli()
	if w.EndMS != wantEnd {
		t.Fatalf("window end = %d, want floored now %d", w.EndMS, wantEnd)
	}

	rows, err := artifact.ReadJSON(summary.JSONPath)
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if last := rows[2].MinuteMS; last != wantEnd-60_000 {
		t.Errorf("last row minute = %d, want one minute before floored now", last)
	}
	if rows[1].ReyaClose != nil || rows[1].AbsDiff != nil {
		t.Error("minute absent from reya should stay null with null diff")
	}
	if rows[0].AbsDiff == nil || !rows[0].AbsDiff.Equal(decimal.NewFromInt(1)) {
		t.Errorf("abs_diff = %v, want 1", rows[0].AbsDiff)
	}

	raw, err := os.ReadFile(summary.CSVPath)
	if err != nil {
		t.Fatalf("read csv artifact: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 4 {
		t.Errorf("csv has %d lines, want header plus 3 rows", len(lines))
	}
}

func TestRunDegradesWhenOneSourceFails(t *testing.T) {
	dir := t.TempDir()
	w := reconcile.WindowEndingAt(fixedNow, 3)
	binance := &fakeSource{name: "binance", err: errors.New("boom")}
	reya := &fakeSource{name: "reya", series: seriesFor(w, "101", "102", "103")}

	summary, err := newTestRunner(testConfig(dir), binance, reya, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.BinanceOK || !summary.ReyaOK {
		t.Errorf("summary = %+v, want degraded binance with healthy reya", summary)
	}

	rows, err := artifact.ReadJSON(summary.JSONPath)
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	for i, row := range rows {
		if row.BinanceClose != nil {
			t.Errorf("row %d BinanceClose = %v, want null for failed source", i, row.BinanceClose)
		}
		if row.AbsDiff != nil {
			t.Errorf("row %d AbsDiff = %v, want null", i, row.AbsDiff)
		}
	}
	if rows[0].ReyaClose == nil {
		t.Error("healthy source should still contribute closes")
	}
}

func TestRunAbortsWhenBothSourcesFail(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "btc_reya_vs_binance_1m.csv")
	if err := os.WriteFile(csvPath, []byte("previous run\n"), 0o644); err != nil {
		t.Fatalf("seed artifact: %v", err)
	}

	binance := &fakeSource{name: "binance", err: errors.New("binance down")}
	reya := &fakeSource{name: "reya", err: errors.New("reya down")}

	_, err := newTestRunner(testConfig(dir), binance, reya, nil).Run(context.Background())
	var sourcesErr *reconcile.SourcesError
	if !errors.As(err, &sourcesErr) {
		t.Fatalf("Run error = %v, want SourcesError", err)
	}
	if sourcesErr.Binance == nil || sourcesErr.Reya == nil {
		t.Errorf("SourcesError = %+v, want both causes kept", sourcesErr)
	}

	raw, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read seeded artifact: %v", err)
	}
	if string(raw) != "previous run\n" {
		t.Error("failed run must leave prior artifacts untouched")
	}
	if _, err := os.Stat(filepath.Join(dir, "btc_reya_vs_binance_1m.json")); !os.IsNotExist(err) {
		t.Error("failed run must not write new artifacts")
	}
}

func TestRunMirrorsAfterArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := reconcile.WindowEndingAt(fixedNow, 3)
	binance := &fakeSource{name: "binance", series: seriesFor(w, "100", "200", "300")}
	reya := &fakeSource{name: "reya", series: seriesFor(w, "101", "201", "301")}
	mirror := &fakeMirror{}

	summary, err := newTestRunner(testConfig(dir), binance, reya, mirror).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !summary.Mirrored {
		t.Error("summary.Mirrored = false, want true")
	}
	if mirror.calls != 1 {
		t.Fatalf("mirror calls = %d, want 1", mirror.calls)
	}
	if mirror.startMS != w.StartMS {
		t.Errorf("mirror window start = %d, want %d", mirror.startMS, w.StartMS)
	}
	if len(mirror.rows) != 3 {
		t.Errorf("mirror received %d rows, want 3", len(mirror.rows))
	}
}

func TestRunMirrorFailureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	w := reconcile.WindowEndingAt(fixedNow, 3)
	binance := &fakeSource{name: "binance", series: seriesFor(w, "100", "200", "300")}
	reya := &fakeSource{name: "reya", series: seriesFor(w, "101", "201", "301")}
	mirror := &fakeMirror{err: errors.New("db down")}

	summary, err := newTestRunner(testConfig(dir), binance, reya, mirror).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v, want mirror failure swallowed", err)
	}
	if summary.Mirrored {
		t.Error("summary.Mirrored = true after mirror failure")
	}

	if _, err := os.Stat(summary.CSVPath); err != nil {
		t.Errorf("csv artifact missing after mirror failure: %v", err)
	}
}
