package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"cryptoquote/internal/symbols"
)

type Config struct {
	Cryptoquote CryptoquoteConfig `yaml:"cryptoquote"`
	Quote       QuoteConfig       `yaml:"quote"`
	Reader      ReaderConfig      `yaml:"reader"`
	Sources     []SourceConfig    `yaml:"sources"`
	Writer      WriterConfig      `yaml:"writer"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type CryptoquoteConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type QuoteConfig struct {
	// DefaultQuantity is a decimal string so no precision is lost in YAML.
	DefaultQuantity   string `yaml:"default_quantity"`
	Mode              string `yaml:"mode"`
	PrimarySource     string `yaml:"primary_source"`
	RequireAllSources bool   `yaml:"require_all_sources"`
}

type ReaderConfig struct {
	MaxWorkers     int                  `yaml:"max_workers"`
	Timeout        time.Duration        `yaml:"timeout"`
	MinInterval    time.Duration        `yaml:"min_interval"`
	UserAgent      string               `yaml:"user_agent"`
	LocalIP        string               `yaml:"local_ip"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// SourceConfig describes one order book endpoint. Connection "sdk" routes
// binance and bybit through their exchange clients; everything else is a
// plain HTTP GET of URL.
type SourceConfig struct {
	Name       string `yaml:"name"`
	Enabled    bool   `yaml:"enabled"`
	Format     string `yaml:"format"`
	Connection string `yaml:"connection"`
	URL        string `yaml:"url"`
	Symbol     string `yaml:"symbol"`
	Limit      int    `yaml:"limit"`
	Category   string `yaml:"category"`
	// MinInterval overrides reader.min_interval for this source.
	MinInterval time.Duration `yaml:"min_interval"`
	LocalIP     string        `yaml:"local_ip"`
}

type WriterConfig struct {
	Enabled      bool               `yaml:"enabled"`
	LocalDir     string             `yaml:"local_dir"`
	Prefix       string             `yaml:"prefix"`
	Compression  string             `yaml:"compression"`
	Partitioning PartitioningConfig `yaml:"partitioning"`
}

type PartitioningConfig struct {
	TimeFormat string `yaml:"time_format"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	TextfilePath string           `yaml:"textfile_path"`
	UsedWeight   bool             `yaml:"used_weight"`
	CloudWatch   CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

const (
	ConnectionHTTP = "http"
	ConnectionSDK  = "sdk"
)

var knownFormats = map[string]bool{
	"coinbase": true, "gemini": true, "binance": true, "bybit": true,
	"okx": true, "kraken": true, "generic": true,
}

func defaults() Config {
	return Config{
		Quote: QuoteConfig{
			DefaultQuantity: "10",
			Mode:            "merged",
		},
		Reader: ReaderConfig{
			MaxWorkers:  2,
			Timeout:     10 * time.Second,
			MinInterval: 2 * time.Second,
			UserAgent:   "cryptoquote/1.0",
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 4,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Writer: WriterConfig{
			Prefix:      "quotes",
			Compression: "snappy",
			Partitioning: PartitioningConfig{
				TimeFormat: "year=2006/month=01/day=02",
			},
		},
		Metrics: MetricsConfig{UsedWeight: true},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaults()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if v := os.Getenv("CRYPTOQUOTE_QTY"); v != "" {
		config.Quote.DefaultQuantity = strings.TrimSpace(v)
	}
	if v := os.Getenv("CRYPTOQUOTE_MODE"); v != "" {
		config.Quote.Mode = strings.ToLower(strings.TrimSpace(v))
	}

	for i := range config.Sources {
		src := &config.Sources[i]
		src.Format = strings.ToLower(strings.TrimSpace(src.Format))
		if src.Connection == "" {
			src.Connection = ConnectionHTTP
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Cryptoquote.Name == "" {
		return fmt.Errorf("cryptoquote.name is required")
	}

	if _, err := cfg.DefaultQuantity(); err != nil {
		return err
	}
	switch cfg.Quote.Mode {
	case "merged", "single":
	default:
		return fmt.Errorf("quote.mode must be merged or single, got '%s'", cfg.Quote.Mode)
	}

	if cfg.Reader.MaxWorkers <= 0 {
		return fmt.Errorf("reader.max_workers must be greater than 0")
	}
	if cfg.Reader.Timeout <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}
	if cfg.Reader.MinInterval < 0 {
		return fmt.Errorf("reader.min_interval must not be negative")
	}

	if err := validateSources(cfg); err != nil {
		return err
	}

	switch cfg.Writer.Compression {
	case "snappy", "gzip", "none", "uncompressed", "":
	default:
		return fmt.Errorf("writer.compression '%s' is not supported", cfg.Writer.Compression)
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}
	return nil
}

func validateSources(cfg *Config) error {
	seen := map[string]bool{}
	var pairs []symbols.Pair
	for i, src := range cfg.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("source '%s' is defined more than once", src.Name)
		}
		seen[src.Name] = true
		if !src.Enabled {
			continue
		}
		if !knownFormats[src.Format] {
			return fmt.Errorf("source '%s': unknown format '%s'", src.Name, src.Format)
		}
		if src.Symbol == "" {
			return fmt.Errorf("source '%s': symbol is required", src.Name)
		}
		switch src.Connection {
		case ConnectionHTTP:
			if src.URL == "" {
				return fmt.Errorf("source '%s': url is required for http sources", src.Name)
			}
		case ConnectionSDK:
			if src.Format != "binance" && src.Format != "bybit" {
				return fmt.Errorf("source '%s': sdk connection is only available for binance and bybit", src.Name)
			}
		default:
			return fmt.Errorf("source '%s': unknown connection '%s'", src.Name, src.Connection)
		}
		if src.MinInterval < 0 {
			return fmt.Errorf("source '%s': min_interval must not be negative", src.Name)
		}
		pairs = append(pairs, symbols.Pair{Source: src.Name, Format: src.Format, Symbol: src.Symbol})
	}

	if len(pairs) == 0 {
		return fmt.Errorf("at least one enabled source is required")
	}
	if _, err := symbols.CommonBase(pairs); err != nil {
		return fmt.Errorf("enabled sources must quote one asset: %w", err)
	}

	if cfg.Quote.PrimarySource == "" {
		cfg.Quote.PrimarySource = pairs[0].Source
	}
	if _, ok := cfg.Source(cfg.Quote.PrimarySource); !ok {
		return fmt.Errorf("quote.primary_source '%s' is not an enabled source", cfg.Quote.PrimarySource)
	}
	return nil
}

// DefaultQuantity parses quote.default_quantity.
func (c *Config) DefaultQuantity() (decimal.Decimal, error) {
	qty, err := decimal.NewFromString(strings.TrimSpace(c.Quote.DefaultQuantity))
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote.default_quantity '%s' is not a number", c.Quote.DefaultQuantity)
	}
	if qty.IsNegative() {
		return decimal.Zero, fmt.Errorf("quote.default_quantity must not be negative")
	}
	return qty, nil
}

// EnabledSources returns the enabled sources in configuration order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Source finds an enabled source by name.
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Enabled && s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// Asset returns the base asset every enabled source trades.
func (c *Config) Asset() string {
	var pairs []symbols.Pair
	for _, s := range c.EnabledSources() {
		pairs = append(pairs, symbols.Pair{Source: s.Name, Format: s.Format, Symbol: s.Symbol})
	}
	base, err := symbols.CommonBase(pairs)
	if err != nil {
		return ""
	}
	return base
}

// Interval returns the throttle interval for src.
func (c *Config) Interval(src SourceConfig) time.Duration {
	if src.MinInterval > 0 {
		return src.MinInterval
	}
	return c.Reader.MinInterval
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
