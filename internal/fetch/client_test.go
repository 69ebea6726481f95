package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(retries int) *Client {
	return New(Options{
		Timeout:        2 * time.Second,
		MaxRetries:     retries,
		BackoffBase:    time.Millisecond,
		RequestsPerSec: 1000,
	}, zerolog.Nop())
}

func TestGetJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol query = %q, want BTCUSDT", got)
		}
		if got := r.Header.Get("User-Agent"); got != "candlediff/1.0" {
			t.Errorf("User-Agent = %q, want candlediff/1.0", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[[1700000000000,0,0,0,"100.5",0]]`))
	}))
	defer srv.Close()

	c := testClient(3)
	payload, err := c.GetJSON(context.Background(), srv.URL, url.Values{"symbol": {"BTCUSDT"}})
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}

	rows, ok := payload.([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("payload = %#v, want one-element array", payload)
	}
	arr := rows[0].([]any)
	if _, ok := arr[0].(json.Number); !ok {
		t.Errorf("timestamp decoded as %T, want json.Number", arr[0])
	}
}

func TestGetJSONRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(3)
	payload, err := c.GetJSON(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("GetJSON after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
	obj := payload.(map[string]any)
	if obj["ok"] != true {
		t.Errorf("payload = %#v, want {\"ok\":true}", payload)
	}
}

func TestGetJSONExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(3)
	_, err := c.GetJSON(context.Background(), srv.URL, nil)

	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err = %v, want *fetch.Error", err)
	}
	if fetchErr.URL != srv.URL {
		t.Errorf("Error.URL = %q, want %q", fetchErr.URL, srv.URL)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err does not wrap *StatusError: %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", statusErr.StatusCode)
	}

	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want exactly MaxRetries (3)", calls.Load())
	}
}

func TestGetJSONRetriesBadJSON(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"truncated":`))
			return
		}
		w.Write([]byte(`{"truncated":false}`))
	}))
	defer srv.Close()

	c := testClient(2)
	if _, err := c.GetJSON(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("GetJSON should recover from a bad body: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
}

func TestGetJSONContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(3)
	_, err := c.GetJSON(ctx, srv.URL, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled in the chain", err)
	}
}

func TestLinearBackOffProgression(t *testing.T) {
	b := &linearBackOff{base: 1500 * time.Millisecond}

	for i, want := range []time.Duration{1500 * time.Millisecond, 3 * time.Second, 4500 * time.Millisecond} {
		if got := b.NextBackOff(); got != want {
			t.Errorf("NextBackOff #%d = %s, want %s", i+1, got, want)
		}
	}

	b.Reset()
	if got := b.NextBackOff(); got != 1500*time.Millisecond {
		t.Errorf("NextBackOff after Reset = %s, want 1.5s", got)
	}
}
