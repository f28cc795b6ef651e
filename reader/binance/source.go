package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"

	ratemetrics "cryptoquote/internal/metrics/rate"
	"cryptoquote/logger"
	"cryptoquote/reader/transport"
)

const depthPath = "/fapi/v1/depth"

// Source fetches USD-M futures depth snapshots from Binance.
type Source struct {
	name       string
	symbol     string
	depthURL   string
	limit      int
	localIP    string
	usedWeight bool
	client     *futures.Client
	log        *logger.Log

	weightOnce  sync.Once
	weightLimit int64
}

// NewSource builds a Binance source. baseURL may be the API host or the full
// depth endpoint. When usedWeight is set the request weight headers are
// reported after every fetch.
func NewSource(name, symbol, baseURL string, limit int, localIP string, usedWeight bool, httpClient *http.Client) *Source {
	log := logger.GetLogger()

	client := futures.NewClient("", "")
	client.HTTPClient = httpClient

	host, depthURL := endpoints(baseURL)
	if host != "" {
		client.SetApiEndpoint(host)
	}

	s := &Source{
		name:       name,
		symbol:     strings.ToUpper(symbol),
		depthURL:   depthURL,
		limit:      limit,
		localIP:    localIP,
		usedWeight: usedWeight,
		client:     client,
		log:        log,
	}

	log.WithComponent("binance_reader").WithFields(logger.Fields{
		"source":  name,
		"symbol":  s.symbol,
		"limit":   limit,
		"timeout": httpClient.Timeout,
	}).Info("binance source initialized")

	return s
}

func endpoints(raw string) (host, depthURL string) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", strings.TrimRight(raw, "/") + depthPath
	}
	host = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	if parsed.Path == "" || parsed.Path == "/" {
		return host, host + depthPath
	}
	return host, host + parsed.Path
}

func (s *Source) Name() string   { return s.name }
func (s *Source) Format() string { return "binance" }
func (s *Source) Symbol() string { return s.symbol }

func (s *Source) Fetch(ctx context.Context) ([]byte, error) {
	log := s.log.WithComponent("binance_reader").WithFields(logger.Fields{
		"symbol":    s.symbol,
		"operation": "fetch_orderbook",
	})

	if s.usedWeight {
		s.weightOnce.Do(func() {
			limit, err := ratemetrics.FetchRequestWeightLimit(ctx, s.client)
			if err != nil {
				log.WithError(err).Warn("failed to fetch request weight limit")
				return
			}
			s.weightLimit = limit
		})
	}

	query := url.Values{"symbol": {s.symbol}}
	if s.limit > 0 {
		query.Set("limit", strconv.Itoa(s.limit))
	}
	reqURL := s.depthURL + "?" + query.Encode()

	start := time.Now()
	resp, err := transport.Get(ctx, s.client.HTTPClient, reqURL)
	logger.LogPerformanceEntry(log, "binance_reader", "api_request", time.Since(start), logger.Fields{
		"symbol": s.symbol,
		"weight": ratemetrics.DepthWeight(s.limit),
	})

	if resp != nil && s.usedWeight {
		ratemetrics.ReportBinanceWeight(s.log, s.name, resp.Header, s.weightLimit, s.localIP)
	}
	target := transport.Target{Source: s.name, Format: "binance", Symbol: s.symbol, IP: s.localIP}
	if err := transport.CheckLimit(s.log, target, resp, err); err != nil {
		return nil, err
	}
	return resp.Body, nil
}
