package venue

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"candle-diff/internal/candle"
	"candle-diff/internal/fetch"
	"candle-diff/internal/reconcile"
)

const defaultReyaBaseURL = "https://api.reya.xyz"

// ReyaOptions parameterise the Reya source.
type ReyaOptions struct {
	BaseURL    string
	Symbol     string
	Resolution string
}

// Reya fetches perp candles from the Reya candle-history API. The endpoint's
// window parameter names are not stable across deployments, so Fetch walks an
// ordered list of candidate query shapes and uses the first one that both
// fetches and parses.
type Reya struct {
	opts    ReyaOptions
	client  *fetch.Client
	logger  zerolog.Logger
	baseURL string
}

// NewReya constructs the Reya source.
func NewReya(opts ReyaOptions, client *fetch.Client, logger zerolog.Logger) *Reya {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultReyaBaseURL
	}
	if opts.Symbol == "" {
		opts.Symbol = "BTCRUSDPERP"
	}
	if opts.Resolution == "" {
		opts.Resolution = "1m"
	}

	return &Reya{
		opts:    opts,
		client:  client,
		logger:  logger.With().Str("component", "reya_source").Logger(),
		baseURL: baseURL,
	}
}

// Name identifies the venue in logs and errors.
func (r *Reya) Name() string { return "reya" }

// Fetch tries each candidate parameter shape in order until one yields a
// parseable candle list. Points before the window start are dropped unless
// that would drop every point, in which case the unfiltered set is kept.
func (r *Reya) Fetch(ctx context.Context, w reconcile.Window) (candle.Series, error) {
	endpoint := fmt.Sprintf("%s/v2/candleHistory/%s/%s",
		r.baseURL, url.PathEscape(r.opts.Symbol), url.PathEscape(r.opts.Resolution))

	shapes := candidateParams(w)
	var lastErr error
	for i, params := range shapes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		points, err := r.tryShape(ctx, endpoint, params)
		if err != nil {
			lastErr = err
			r.logger.Warn().
				Err(err).
				Int("shape", i+1).
				Int("shapes", len(shapes)).
				Msg("candidate parameter shape failed")
			continue
		}

		return candle.BuildSeries(clampToWindow(points, w.StartMS)), nil
	}

	return nil, &CandidatesError{Attempts: len(shapes), Err: lastErr}
}

func (r *Reya) tryShape(ctx context.Context, endpoint string, params url.Values) ([]candle.Point, error) {
	payload, err := r.client.GetJSON(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	return candle.ParseReya(payload)
}

// candidateParams returns the query shapes in the fixed order they are tried.
func candidateParams(w reconcile.Window) []url.Values {
	limit := strconv.Itoa(fetchLimit(w.Rows))
	start := strconv.FormatInt(w.StartMS, 10)
	end := strconv.FormatInt(w.EndMS, 10)

	return []url.Values{
		{"startTime": {start}, "endTime": {end}, "limit": {limit}},
		{"from": {start}, "to": {end}, "limit": {limit}},
		{"start": {start}, "end": {end}, "limit": {limit}},
		{"limit": {limit}},
		{},
	}
}

// clampToWindow drops points before the window start, falling back to the
// unfiltered points when filtering would leave nothing.
func clampToWindow(points []candle.Point, startMS int64) []candle.Point {
	kept := make([]candle.Point, 0, len(points))
	for _, p := range points {
		if p.MinuteMS >= startMS {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return points
	}
	return kept
}

// CandidatesError reports that every candidate parameter shape failed.
type CandidatesError struct {
	Attempts int
	Err      error
}

func (e *CandidatesError) Error() string {
	return fmt.Sprintf("all %d candidate parameter shapes failed: %s", e.Attempts, e.Err)
}

func (e *CandidatesError) Unwrap() error { return e.Err }

var _ Source = (*Reya)(nil)
