package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"candle-diff/internal/artifact"
	"candle-diff/internal/config"
	"candle-diff/internal/fetch"
	"candle-diff/internal/service"
	"candle-diff/internal/storage"
	"candle-diff/internal/venue"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// RunOptions configure a single reconciliation run.
type RunOptions struct {
	Rows  int
	Chart bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Input string
	Limit int
}

// ChartOptions configure chart rendering from an existing artifact.
type ChartOptions struct {
	Input  string
	Output string
}

// Run executes one reconciliation pass and reports what it produced.
func (a *App) Run(ctx context.Context, opts RunOptions) (service.Summary, error) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := *a.Config
	if opts.Rows > 0 {
		cfg.Rows = opts.Rows
	}
	if opts.Chart {
		cfg.Output.Chart = true
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return service.Summary{}, err
	}
	if store == nil {
		a.Logger.Debug().Msg("database.dsn not configured; mirroring disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	client := fetch.New(fetch.Options{
		Timeout:        cfg.Fetch.Timeout,
		MaxRetries:     cfg.Fetch.MaxRetries,
		BackoffBase:    cfg.Fetch.BackoffBase,
		RequestsPerSec: cfg.Fetch.RequestsPerSec,
		UserAgent:      cfg.Fetch.UserAgent,
	}, a.Logger)

	binance := venue.NewBinance(venue.BinanceOptions{
		BaseURL:    cfg.Binance.BaseURL,
		Symbol:     cfg.Binance.Symbol,
		Resolution: cfg.Resolution,
		Strict:     cfg.Parse.Strict,
	}, client, a.Logger)

	reya := venue.NewReya(venue.ReyaOptions{
		BaseURL:    cfg.Reya.BaseURL,
		Symbol:     cfg.Reya.Symbol,
		Resolution: cfg.Resolution,
	}, client, a.Logger)

	var mirror service.Mirror
	if store != nil {
		mirror = store
	}

	runner := service.New(&cfg, binance, reya, mirror, a.Logger)
	return runner.Run(ctx)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if !a.Config.MirrorEnabled() {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) artifactPaths() artifact.Paths {
	return artifact.ResolvePaths(a.Config.Output.Dir, a.Config.Output.Pair, a.Config.Resolution)
}
