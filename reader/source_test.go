package reader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptoquote/config"
	"cryptoquote/reader/transport"
)

func testConfig(sources ...config.SourceConfig) *config.Config {
	return &config.Config{
		Reader:  config.ReaderConfig{MaxWorkers: 2, Timeout: time.Second, UserAgent: "cryptoquote-test"},
		Sources: sources,
	}
}

func TestHTTPSourceFetch(t *testing.T) {
	body := `{"bids":[["100","1"]],"asks":[["101","2"]]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	src, err := NewSource(testConfig(), config.SourceConfig{
		Name: "coinbase", Enabled: true, Format: "coinbase", Connection: config.ConnectionHTTP, URL: srv.URL, Symbol: "BTC-USD",
	})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	data, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != body {
		t.Fatalf("body = %s", data)
	}
	if src.Name() != "coinbase" || src.Format() != "coinbase" || src.Symbol() != "BTC-USD" {
		t.Fatalf("unexpected identity %s/%s/%s", src.Name(), src.Format(), src.Symbol())
	}
}

func TestHTTPSourceExchangeRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "4")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"Public rate limit exceeded"}`))
	}))
	defer srv.Close()

	src := NewHTTPSource("coinbase", "coinbase", "BTC-USD", srv.URL, transport.NewClient(transport.Options{Timeout: time.Second}))
	_, err := src.Fetch(context.Background())

	var limitErr *transport.LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if !limitErr.Signal.RateLimited || limitErr.Signal.RetryAfter != 4*time.Second {
		t.Fatalf("unexpected signal %+v", limitErr.Signal)
	}
	var statusErr *transport.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusTooManyRequests {
		t.Fatalf("status error not wrapped: %v", err)
	}
}

func TestHTTPSourceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTPSource("gemini", "gemini", "BTCUSD", srv.URL, transport.NewClient(transport.Options{Timeout: time.Second}))
	_, err := src.Fetch(context.Background())

	var limitErr *transport.LimitError
	if errors.As(err, &limitErr) {
		t.Fatalf("502 is not a rate limit: %v", err)
	}
	var statusErr *transport.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
}

func TestHTTPSourceLimitInSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":["EAPI:Rate limit exceeded"]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource("kraken", "kraken", "XXBTZUSD", srv.URL, transport.NewClient(transport.Options{Timeout: time.Second}))
	var limitErr *transport.LimitError
	if _, err := src.Fetch(context.Background()); !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
}

func TestNewSources(t *testing.T) {
	cfg := testConfig(
		config.SourceConfig{Name: "coinbase", Enabled: true, Format: "coinbase", Connection: config.ConnectionHTTP, URL: "https://example.com/book", Symbol: "BTC-USD"},
		config.SourceConfig{Name: "kraken", Enabled: false, Format: "kraken", Connection: config.ConnectionHTTP, URL: "https://example.com/depth", Symbol: "XXBTZUSD"},
		config.SourceConfig{Name: "binance", Enabled: true, Format: "binance", Connection: config.ConnectionSDK, URL: "https://fapi.binance.com", Symbol: "BTCUSDT", Limit: 100},
		config.SourceConfig{Name: "bybit", Enabled: true, Format: "bybit", Connection: config.ConnectionSDK, URL: "https://api.bybit.com", Symbol: "BTCUSDT", Limit: 50},
	)

	sources, err := NewSources(cfg)
	if err != nil {
		t.Fatalf("new sources: %v", err)
	}
	var names []string
	for _, s := range sources {
		names = append(names, s.Name()+"/"+s.Format())
	}
	want := []string{"coinbase/coinbase", "binance/binance", "bybit/bybit"}
	if len(names) != len(want) {
		t.Fatalf("sources = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("sources = %v, want %v", names, want)
		}
	}
}

func TestNewSourceRejectsUnknownSDK(t *testing.T) {
	_, err := NewSource(testConfig(), config.SourceConfig{Name: "okx", Format: "okx", Connection: config.ConnectionSDK, Symbol: "BTC-USDT-SWAP"})
	if err == nil {
		t.Fatalf("expected error for okx sdk source")
	}
}
