package rate

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"cryptoquote/logger"
)

func TestDetectLimit(t *testing.T) {
	cases := []struct {
		format string
		msg    string
		rate   bool
		ban    bool
	}{
		{"binance", "Too many requests", true, false},
		{"okx", "IP has been blocked for 60 seconds", false, true},
		{"bybit", "IP rate limit reached", false, true},
		{"gemini", `{"result":"error","reason":"RateLimited"}`, true, false},
		{"kraken", `{"error":["EAPI:Rate limit exceeded"]}`, true, false},
		{"coinbase", `{"message":"Public rate limit exceeded"}`, true, false},
		{"coinbase", `{"bids":[],"asks":[]}`, false, false},
	}
	for _, c := range cases {
		rl, ban := detectLimit(c.format, c.msg)
		if rl != c.rate {
			t.Errorf("%s %q: expected rateLimit %v got %v", c.format, c.msg, c.rate, rl)
		}
		if ban != c.ban {
			t.Errorf("%s %q: expected ipBan %v got %v", c.format, c.msg, c.ban, ban)
		}
	}
}

func TestInspectStatusAndRetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")
	s := Inspect("generic", http.StatusTooManyRequests, header, nil)
	if !s.RateLimited || s.IPBanned {
		t.Fatalf("unexpected signal: %+v", s)
	}
	if s.RetryAfter != 7*time.Second {
		t.Fatalf("retry after = %v", s.RetryAfter)
	}

	s = Inspect("binance", http.StatusTeapot, http.Header{}, nil)
	if !s.IPBanned {
		t.Fatalf("418 should be an ip ban: %+v", s)
	}

	s = Inspect("coinbase", http.StatusOK, http.Header{}, []byte(`{"bids":[]}`))
	if s.Limited() {
		t.Fatalf("plain book flagged as limited: %+v", s)
	}
}

func TestBanUntil(t *testing.T) {
	until := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	msg := "Way too many requests; IP banned until " + strconv.FormatInt(until.UnixMilli(), 10) + ". Please use websocket."
	got, ok := banUntil(msg)
	if !ok || !got.Equal(until) {
		t.Fatalf("banUntil = %v, %v; want %v", got, ok, until)
	}
	if _, ok := banUntil("code -1003 weight 2400"); ok {
		t.Fatalf("short integers must not parse as a timestamp")
	}

	s := Inspect("binance", http.StatusTeapot, http.Header{}, []byte(msg))
	if s.RetryAfter <= 0 || s.RetryAfter > time.Minute {
		t.Fatalf("retry after from ban message = %v", s.RetryAfter)
	}
}

func TestReportBinanceWeight(t *testing.T) {
	header := http.Header{}
	header.Set("X-MBX-USED-WEIGHT-1m", "37")
	if used := ReportBinanceWeight(logger.GetLogger(), "binance", header, 2400, ""); used != 37 {
		t.Fatalf("used weight = %d", used)
	}
}

func TestDepthWeight(t *testing.T) {
	cases := map[int]int64{5: 2, 100: 2, 500: 5, 1000: 10, 5000: 20}
	for limit, want := range cases {
		if got := DepthWeight(limit); got != want {
			t.Errorf("DepthWeight(%d) = %d, want %d", limit, got, want)
		}
	}
}

func TestReportLimitFromResponse(t *testing.T) {
	s := ReportLimitFromResponse(logger.GetLogger(), "okx", "okx", "BTC-USDT-SWAP", "", http.StatusOK, http.Header{}, []byte(`{"code":"50011","msg":"Too Many Requests"}`))
	if !s.RateLimited {
		t.Fatalf("expected rate limit signal")
	}
}
