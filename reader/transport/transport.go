package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"cryptoquote/config"
	ratemetrics "cryptoquote/internal/metrics/rate"
	"cryptoquote/logger"
)

// maxBodyBytes caps a snapshot body. Full-depth books are a few MB at most.
const maxBodyBytes = 32 << 20

// smallBody is the largest successful body still checked for throttling
// wording; real books are far larger.
const smallBody = 4 << 10

type Options struct {
	Timeout   time.Duration
	LocalIP   string
	UserAgent string
	Pool      config.ConnectionPoolConfig
}

// OptionsFor merges reader-wide settings with a source's local IP override.
func OptionsFor(cfg *config.Config, src config.SourceConfig) Options {
	localIP := src.LocalIP
	if localIP == "" {
		localIP = cfg.Reader.LocalIP
	}
	return Options{
		Timeout:   cfg.Reader.Timeout,
		LocalIP:   localIP,
		UserAgent: cfg.Reader.UserAgent,
		Pool:      cfg.Reader.ConnectionPool,
	}
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// NewClient builds a pooled HTTP client. A valid LocalIP binds outbound
// connections to that address.
func NewClient(opts Options) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        opts.Pool.MaxIdleConns,
		MaxIdleConnsPerHost: opts.Pool.MaxIdleConns,
		MaxConnsPerHost:     opts.Pool.MaxConnsPerHost,
		IdleConnTimeout:     opts.Pool.IdleConnTimeout,
	}
	if opts.LocalIP != "" {
		if ip := net.ParseIP(opts.LocalIP); ip != nil {
			dialer := &net.Dialer{LocalAddr: &net.TCPAddr{IP: ip}, Timeout: opts.Timeout}
			tr.DialContext = dialer.DialContext
		}
	}

	var rt http.RoundTripper = tr
	if opts.UserAgent != "" {
		rt = userAgentTransport{agent: opts.UserAgent, base: tr}
	}
	return &http.Client{Transport: rt, Timeout: opts.Timeout}
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.Status, e.Body)
}

// Get issues a GET and reads the whole body. Transport failures are
// returned as errors; a non-2xx status is returned as both a Response and a
// *StatusError so callers can inspect headers.
func Get(ctx context.Context, client *http.Client, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", url, err)
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{URL: url, Status: resp.StatusCode, Body: truncate(body, 256)}
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// LimitError is returned when an exchange says we are over its request budget.
type LimitError struct {
	Source string
	Signal ratemetrics.Signal
	Err    error
}

func (e *LimitError) Error() string {
	kind := "rate limited"
	if e.Signal.IPBanned {
		kind = "ip banned"
	}
	if e.Signal.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s by exchange, retry after %s: %v", e.Source, kind, e.Signal.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: %s by exchange: %v", e.Source, kind, e.Err)
}

func (e *LimitError) Unwrap() error { return e.Err }

// Target identifies the source a response came from for limit reporting.
type Target struct {
	Source string
	Format string
	Symbol string
	IP     string
}

// CheckLimit inspects the result of Get for exchange throttling. Error
// responses and small bodies are checked; a limit found there is reported
// and returned as *LimitError. Otherwise err is returned unchanged.
func CheckLimit(log *logger.Log, t Target, resp *Response, err error) error {
	if resp == nil {
		return err
	}
	if err == nil && len(resp.Body) > smallBody {
		return nil
	}
	signal := ratemetrics.ReportLimitFromResponse(log, t.Source, t.Format, t.Symbol, t.IP, resp.Status, resp.Header, resp.Body)
	if !signal.Limited() {
		return err
	}
	if err == nil {
		err = fmt.Errorf("exchange error payload: %s", truncate(resp.Body, 256))
	}
	return &LimitError{Source: t.Source, Signal: signal, Err: err}
}
