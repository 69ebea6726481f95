// Package service orchestrates one reconciliation run: fetch both venues,
// align on the minute grid, write artifacts, optionally mirror to PostgreSQL.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"candle-diff/internal/artifact"
	"candle-diff/internal/candle"
	"candle-diff/internal/config"
	"candle-diff/internal/reconcile"
	"candle-diff/internal/venue"
)

// Mirror receives the reconciled window after the artifacts are written.
type Mirror interface {
	ReplaceWindow(ctx context.Context, windowStartMS int64, rows []reconcile.Row) error
}

// Runner executes the fetch-align-write pipeline once per invocation.
type Runner struct {
	binance venue.Source
	reya    venue.Source
	mirror  Mirror
	logger  zerolog.Logger

	rows       int
	resolution string
	paths      artifact.Paths
	chart      bool
	now        func() time.Time
}

// New constructs a Runner. A nil mirror disables database mirroring.
func New(cfg *config.Config, binance, reya venue.Source, mirror Mirror, logger zerolog.Logger) *Runner {
	return &Runner{
		binance:    binance,
		reya:       reya,
		mirror:     mirror,
		logger:     logger.With().Str("component", "service").Logger(),
		rows:       cfg.Rows,
		resolution: cfg.Resolution,
		paths:      artifact.ResolvePaths(cfg.Output.Dir, cfg.Output.Pair, cfg.Resolution),
		chart:      cfg.Output.Chart,
		now:        time.Now,
	}
}

// Summary reports what a run produced.
type Summary struct {
	RunID     string
	Window    reconcile.Window
	Rows      int
	BinanceOK bool
	ReyaOK    bool
	CSVPath   string
	JSONPath  string
	ChartPath string
	Mirrored  bool
}

// Run performs one reconciliation pass. Exactly one venue failing degrades
// that venue to all-null columns across the window; both venues failing
// aborts the run before anything is written.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Logger()

	w := reconcile.WindowEndingAt(r.now(), r.rows)
	updatedAt := time.UnixMilli(w.EndMS).UTC()

	logger.Info().
		Int("rows", r.rows).
		Str("resolution", r.resolution).
		Int64("window_start_ms", w.StartMS).
		Int64("window_end_ms", w.EndMS).
		Msg("starting reconciliation run")

	binanceSeries, binanceErr := r.fetchSeries(ctx, logger, r.binance, w)
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	reyaSeries, reyaErr := r.fetchSeries(ctx, logger, r.reya, w)
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	if binanceErr != nil && reyaErr != nil {
		return Summary{}, &reconcile.SourcesError{Binance: binanceErr, Reya: reyaErr}
	}

	rows := reconcile.BuildRows(w, binanceSeries, reyaSeries, updatedAt)

	if err := artifact.WriteCSV(r.paths.CSV, rows); err != nil {
		return Summary{}, fmt.Errorf("write csv artifact: %w", err)
	}
	if err := artifact.WriteJSON(r.paths.JSON, rows); err != nil {
		return Summary{}, fmt.Errorf("write json artifact: %w", err)
	}

	summary := Summary{
		RunID:     runID,
		Window:    w,
		Rows:      len(rows),
		BinanceOK: binanceErr == nil,
		ReyaOK:    reyaErr == nil,
		CSVPath:   r.paths.CSV,
		JSONPath:  r.paths.JSON,
	}

	if r.chart {
		if err := artifact.WriteChartPNG(r.paths.Chart, rows); err != nil {
			logger.Error().Err(err).Str("path", r.paths.Chart).Msg("failed to render chart artifact")
		} else {
			summary.ChartPath = r.paths.Chart
		}
	}

	if r.mirror != nil {
		if err := r.mirror.ReplaceWindow(ctx, w.StartMS, rows); err != nil {
			logger.Error().Err(err).Msg("failed to mirror window to database")
		} else {
			summary.Mirrored = true
		}
	}

	logger.Info().
		Int("rows", len(rows)).
		Bool("binance_ok", summary.BinanceOK).
		Bool("reya_ok", summary.ReyaOK).
		Str("csv", summary.CSVPath).
		Str("json", summary.JSONPath).
		Msg("reconciliation run complete")

	return summary, nil
}

func (r *Runner) fetchSeries(ctx context.Context, logger zerolog.Logger, src venue.Source, w reconcile.Window) (candle.Series, error) {
	series, err := src.Fetch(ctx, w)
	if err != nil {
		logger.Warn().Err(err).Str("source", src.Name()).Msg("source fetch failed; its columns degrade to null")
		return nil, err
	}
	logger.Info().Str("source", src.Name()).Int("minutes", len(series)).Msg("source fetched")
	return series, nil
}
