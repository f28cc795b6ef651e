package rate

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptoquote/logger"
)

// Signal is what an exchange response says about our request budget.
type Signal struct {
	RateLimited bool
	IPBanned    bool
	// RetryAfter is the wait the exchange asked for, zero when unknown.
	RetryAfter time.Duration
}

// Limited reports whether the response asked us to back off in any way.
func (s Signal) Limited() bool { return s.RateLimited || s.IPBanned }

// ReportRateLimitExceeded emits a rate_limit_exceeded counter for source.
func ReportRateLimitExceeded(log *logger.Log, source, symbol, ip string) {
	l := log.WithComponent(component(source))
	fields := logger.Fields{"source": source, "symbol": symbol, "ip": ip}
	l.LogMetric(component(source), "rate_limit_exceeded", int64(1), "counter", fields)
	l.WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan emits an ip_ban counter for source.
func ReportIPBan(log *logger.Log, source, symbol, ip string) {
	l := log.WithComponent(component(source))
	fields := logger.Fields{"source": source, "symbol": symbol, "ip": ip}
	l.LogMetric(component(source), "ip_ban", int64(1), "counter", fields)
	l.WithFields(fields).Error("ip banned")
}

func component(source string) string {
	return strings.ToLower(source) + "_reader"
}

// detectLimit matches exchange specific wording for throttling and bans.
func detectLimit(format, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	switch strings.ToLower(format) {
	case "binance":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	case "okx":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "frequency limit")
		ipBan = strings.Contains(lowerMsg, "ip") && (strings.Contains(lowerMsg, "blocked") || strings.Contains(lowerMsg, "ban"))
	case "bybit":
		ipBan = strings.Contains(lowerMsg, "ip rate limit") || (strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban"))
		rateLimit = !ipBan && (strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "too many visits"))
	case "gemini":
		rateLimit = strings.Contains(lowerMsg, "ratelimited") || strings.Contains(lowerMsg, "too many requests")
	case "kraken":
		rateLimit = strings.Contains(lowerMsg, "eapi:rate limit exceeded") || strings.Contains(lowerMsg, "eservice:throttled")
		ipBan = strings.Contains(lowerMsg, "egeneral:temporary lockout")
	default:
		rateLimit = strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	}
	return
}

// Inspect classifies an HTTP response. Status 429 is a rate limit, 418 is
// Binance's IP ban status, and the body is matched against exchange wording.
func Inspect(format string, status int, header http.Header, body []byte) Signal {
	var s Signal
	s.RateLimited, s.IPBanned = detectLimit(format, string(body))
	switch status {
	case http.StatusTooManyRequests:
		s.RateLimited = true
	case http.StatusTeapot:
		s.IPBanned = true
	}
	if !s.Limited() {
		return s
	}
	s.RetryAfter = retryAfter(header)
	if s.RetryAfter == 0 && s.IPBanned {
		if until, ok := banUntil(string(body)); ok {
			if d := time.Until(until); d > 0 {
				s.RetryAfter = d
			}
		}
	}
	return s
}

// ReportLimitFromResponse inspects a response and emits the matching metrics.
// The returned signal is zero when nothing matched.
func ReportLimitFromResponse(log *logger.Log, source, format, symbol, ip string, status int, header http.Header, body []byte) Signal {
	s := Inspect(format, status, header, body)
	if s.RateLimited {
		ReportRateLimitExceeded(log, source, symbol, ip)
	}
	if s.IPBanned {
		ReportIPBan(log, source, symbol, ip)
	}
	return s
}

func retryAfter(header http.Header) time.Duration {
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
