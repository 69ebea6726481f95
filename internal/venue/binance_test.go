package venue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"candle-diff/internal/candle"
	"candle-diff/internal/fetch"
	"candle-diff/internal/reconcile"
)

func testClient() *fetch.Client {
	return fetch.New(fetch.Options{
		Timeout:        time.Second,
		MaxRetries:     1,
		BackoffBase:    time.Millisecond,
		RequestsPerSec: 100,
	}, zerolog.Nop())
}

func testWindow() reconcile.Window {
	base := int64(1_699_999_980_000)
	return reconcile.Window{StartMS: base, EndMS: base + 3*60_000, Rows: 3}
}

func TestBinanceFetchBuildsQueryAndSeries(t *testing.T) {
	w := testWindow()

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/markPriceKlines" {
			t.Errorf("path = %q, want /fapi/v1/markPriceKlines", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q, want BTCUSDT", got)
		}
		if got := q.Get("interval"); got != "1m" {
			t.Errorf("interval = %q, want 1m", got)
		}
		if got := q.Get("limit"); got != "1500" {
			t.Errorf("limit = %q, want 1500", got)
		}
		if got := q.Get("startTime"); got != "1699999980000" {
			t.Errorf("startTime = %q, want 1699999980000", got)
		}
		if got := q.Get("endTime"); got != "1700000160000" {
			t.Errorf("endTime = %q, want 1700000160000", got)
		}

		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`[
			[1699999980000, "69990.0", "70010.0", "69980.0", "70000.10", "12.3"],
			[1700000040000, "70000.1", "70020.0", "69995.0", "70005.50", "9.7"]
		]`))
	}))
	defer srv.Close()

	src := NewBinance(BinanceOptions{BaseURL: srv.URL}, testClient(), zerolog.Nop())

	series, err := src.Fetch(context.Background(), w)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("len(series) = %d, want 2", len(series))
	}
	got := series[1_699_999_980_000]
	if got == nil || !got.Equal(decimal.RequireFromString("70000.10")) {
		t.Errorf("close at window start = %v, want 70000.10", got)
	}
}

func TestBinanceFetchLenientSkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(`[42, [1699999980000, "0", "0", "0", "70000"], ["junk", "0", "0", "0", "1"]]`))
	}))
	defer srv.Close()

	src := NewBinance(BinanceOptions{BaseURL: srv.URL}, testClient(), zerolog.Nop())

	series, err := src.Fetch(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("len(series) = %d, want 1", len(series))
	}
}

func TestBinanceFetchStrictFailsOnMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(`[42]`))
	}))
	defer srv.Close()

	src := NewBinance(BinanceOptions{BaseURL: srv.URL, Strict: true}, testClient(), zerolog.Nop())

	_, err := src.Fetch(context.Background(), testWindow())
	var malformed *candle.MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("Fetch error = %v, want MalformedError", err)
	}
	if malformed.Index != 0 {
		t.Errorf("Index = %d, want 0", malformed.Index)
	}
}

func TestBinanceFetchPropagatesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewBinance(BinanceOptions{BaseURL: srv.URL}, testClient(), zerolog.Nop())

	_, err := src.Fetch(context.Background(), testWindow())
	var fetchErr *fetch.Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Fetch error = %v, want fetch.Error", err)
	}
}
