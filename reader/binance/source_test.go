package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptoquote/reader/transport"
)

func TestEndpoints(t *testing.T) {
	cases := []struct {
		in, host, depth string
	}{
		{"https://fapi.binance.com", "https://fapi.binance.com", "https://fapi.binance.com/fapi/v1/depth"},
		{"https://fapi.binance.com/", "https://fapi.binance.com", "https://fapi.binance.com/fapi/v1/depth"},
		{"https://fapi.binance.com/fapi/v1/depth", "https://fapi.binance.com", "https://fapi.binance.com/fapi/v1/depth"},
	}
	for _, c := range cases {
		host, depth := endpoints(c.in)
		if host != c.host || depth != c.depth {
			t.Errorf("endpoints(%q) = %q, %q", c.in, host, depth)
		}
	}
}

func TestFetchDepth(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != depthPath {
			http.NotFound(w, r)
			return
		}
		query = r.URL.RawQuery
		w.Header().Set("X-MBX-USED-WEIGHT-1m", "12")
		_, _ = w.Write([]byte(`{"lastUpdateId":1,"bids":[["100.0","1.5"]],"asks":[["100.5","2"]]}`))
	}))
	defer srv.Close()

	client := transport.NewClient(transport.Options{Timeout: time.Second})
	src := NewSource("binance", "btcusdt", srv.URL, 100, "", false, client)
	data, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if query != "limit=100&symbol=BTCUSDT" {
		t.Fatalf("query = %q", query)
	}
	if len(data) == 0 || src.Symbol() != "BTCUSDT" || src.Format() != "binance" {
		t.Fatalf("unexpected source state: %s %s", src.Symbol(), data)
	}
}

func TestFetchIPBan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"code":-1003,"msg":"Way too many requests; IP banned until 1700000000000."}`))
	}))
	defer srv.Close()

	src := NewSource("binance", "BTCUSDT", srv.URL, 0, "", false, transport.NewClient(transport.Options{Timeout: time.Second}))
	_, err := src.Fetch(context.Background())
	var limitErr *transport.LimitError
	if !errors.As(err, &limitErr) || !limitErr.Signal.IPBanned {
		t.Fatalf("expected ip ban, got %v", err)
	}
}
