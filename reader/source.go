package reader

import (
	"context"
	"fmt"
	"net/http"

	"cryptoquote/config"
	"cryptoquote/logger"
	"cryptoquote/reader/binance"
	"cryptoquote/reader/bybit"
	"cryptoquote/reader/transport"
)

// Source retrieves one raw order book document.
type Source interface {
	Name() string
	Format() string
	Symbol() string
	Fetch(ctx context.Context) ([]byte, error)
}

type httpSource struct {
	name    string
	format  string
	symbol  string
	url     string
	localIP string
	client  *http.Client
	log     *logger.Log
}

// NewHTTPSource fetches url with a plain GET.
func NewHTTPSource(name, format, symbol, url string, client *http.Client) Source {
	return &httpSource{
		name:   name,
		format: format,
		symbol: symbol,
		url:    url,
		client: client,
		log:    logger.GetLogger(),
	}
}

func (s *httpSource) Name() string   { return s.name }
func (s *httpSource) Format() string { return s.format }
func (s *httpSource) Symbol() string { return s.symbol }

func (s *httpSource) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := transport.Get(ctx, s.client, s.url)
	target := transport.Target{Source: s.name, Format: s.format, Symbol: s.symbol, IP: s.localIP}
	if err := transport.CheckLimit(s.log, target, resp, err); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// NewSources builds a Source for every enabled source in cfg, in order.
func NewSources(cfg *config.Config) ([]Source, error) {
	var out []Source
	for _, src := range cfg.EnabledSources() {
		s, err := NewSource(cfg, src)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// NewSource builds the Source for one configured endpoint.
func NewSource(cfg *config.Config, src config.SourceConfig) (Source, error) {
	opts := transport.OptionsFor(cfg, src)
	client := transport.NewClient(opts)

	if src.Connection == config.ConnectionSDK {
		switch src.Format {
		case "binance":
			return binance.NewSource(src.Name, src.Symbol, src.URL, src.Limit, opts.LocalIP, cfg.Metrics.UsedWeight, client), nil
		case "bybit":
			return bybit.NewSource(src.Name, src.Symbol, src.URL, src.Category, src.Limit, client), nil
		default:
			return nil, fmt.Errorf("source %s: no sdk client for format %s", src.Name, src.Format)
		}
	}

	s := NewHTTPSource(src.Name, src.Format, src.Symbol, src.URL, client).(*httpSource)
	s.localIP = opts.LocalIP
	return s, nil
}
