package venue

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"candle-diff/internal/candle"
	"candle-diff/internal/fetch"
	"candle-diff/internal/reconcile"
)

const (
	defaultBinanceBaseURL = "https://fapi.binance.com"
	binanceKlinesPath     = "/fapi/v1/markPriceKlines"
)

// BinanceOptions parameterise the Binance futures source.
type BinanceOptions struct {
	BaseURL    string
	Symbol     string
	Resolution string
	Strict     bool
}

// Binance fetches mark-price klines from the Binance futures API.
type Binance struct {
	opts    BinanceOptions
	client  *fetch.Client
	logger  zerolog.Logger
	baseURL string
}

// NewBinance constructs the Binance source.
func NewBinance(opts BinanceOptions, client *fetch.Client, logger zerolog.Logger) *Binance {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBinanceBaseURL
	}
	if opts.Symbol == "" {
		opts.Symbol = "BTCUSDT"
	}
	if opts.Resolution == "" {
		opts.Resolution = "1m"
	}

	return &Binance{
		opts:    opts,
		client:  client,
		logger:  logger.With().Str("component", "binance_source").Logger(),
		baseURL: baseURL,
	}
}

// Name identifies the venue in logs and errors.
func (b *Binance) Name() string { return "binance" }

// Fetch retrieves mark-price klines covering the window and folds them into
// a close series. One fixed parameter shape; fetch and parse failures
// propagate unchanged.
func (b *Binance) Fetch(ctx context.Context, w reconcile.Window) (candle.Series, error) {
	params := url.Values{}
	params.Set("symbol", b.opts.Symbol)
	params.Set("interval", b.opts.Resolution)
	params.Set("limit", strconv.Itoa(fetchLimit(w.Rows)))
	params.Set("startTime", strconv.FormatInt(w.StartMS, 10))
	params.Set("endTime", strconv.FormatInt(w.EndMS, 10))

	payload, err := b.client.GetJSON(ctx, b.baseURL+binanceKlinesPath, params)
	if err != nil {
		return nil, err
	}

	mode := candle.Lenient
	if b.opts.Strict {
		mode = candle.Strict
	}
	points, err := candle.ParseBinance(payload, mode)
	if err != nil {
		return nil, err
	}

	b.logger.Debug().Int("points", len(points)).Msg("parsed binance klines")
	return candle.BuildSeries(points), nil
}

var _ Source = (*Binance)(nil)
