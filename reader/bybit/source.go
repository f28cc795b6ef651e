package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	ratemetrics "cryptoquote/internal/metrics/rate"
	"cryptoquote/logger"
)

// Source fetches order book snapshots through the Bybit v5 market API.
type Source struct {
	name     string
	symbol   string
	category string
	limit    int
	client   *bybit.Client
	log      *logger.Log
}

// NewSource builds a Bybit source. category defaults to linear.
func NewSource(name, symbol, baseURL, category string, limit int, httpClient *http.Client) *Source {
	log := logger.GetLogger()

	base := baseURL
	if parsed, err := url.Parse(baseURL); err == nil && parsed.Host != "" {
		base = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}

	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
	client.HTTPClient = httpClient

	if category == "" {
		category = "linear"
	}

	s := &Source{
		name:     name,
		symbol:   strings.ToUpper(symbol),
		category: category,
		limit:    limit,
		client:   client,
		log:      log,
	}

	log.WithComponent("bybit_reader").WithFields(logger.Fields{
		"source":   name,
		"symbol":   s.symbol,
		"category": category,
		"timeout":  httpClient.Timeout,
	}).Info("bybit source initialized")

	return s
}

func (s *Source) Name() string   { return s.name }
func (s *Source) Format() string { return "bybit" }
func (s *Source) Symbol() string { return s.symbol }

func (s *Source) Fetch(ctx context.Context) ([]byte, error) {
	log := s.log.WithComponent("bybit_reader").WithFields(logger.Fields{
		"symbol":    s.symbol,
		"operation": "fetch_orderbook",
	})

	params := map[string]interface{}{
		"category": s.category,
		"symbol":   s.symbol,
	}
	if s.limit > 0 {
		params["limit"] = s.limit
	}

	start := time.Now()
	resp, err := s.client.NewUtaBybitServiceWithParams(params).GetOrderBookInfo(ctx)
	logger.LogPerformanceEntry(log, "bybit_reader", "api_request", time.Since(start), logger.Fields{"symbol": s.symbol})
	if err != nil {
		ratemetrics.ReportLimitFromResponse(s.log, s.name, "bybit", s.symbol, "", 0, nil, []byte(err.Error()))
		return nil, fmt.Errorf("get order book: %w", err)
	}
	if resp.RetCode != 0 {
		ratemetrics.ReportLimitFromResponse(s.log, s.name, "bybit", s.symbol, "", 0, nil, []byte(resp.RetMsg))
		return nil, fmt.Errorf("get order book: retCode %d retMsg %s", resp.RetCode, resp.RetMsg)
	}

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal order book: %w", err)
	}
	return payload, nil
}
