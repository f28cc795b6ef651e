package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"cryptoquote/config"
	"cryptoquote/internal/metrics"
	"cryptoquote/internal/symbols"
	"cryptoquote/logger"
	"cryptoquote/models"
	"cryptoquote/processor"
	"cryptoquote/reader"
	"cryptoquote/writer"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	fs := flag.NewFlagSet("cryptoquote", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file (default config/config.yml or config/config.<APP_ENV>.yml)")
	qtyFlag := fs.String("qty", "", "Quantity to quote (default quote.default_quantity)")
	modeFlag := fs.String("mode", "", "Quoting mode: merged or single (default quote.mode)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return 1
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		return 1
	}

	qty, err := quantity(cfg, *qtyFlag)
	if err != nil {
		log.WithError(err).Error("invalid quantity")
		return 1
	}
	if *modeFlag != "" {
		mode := strings.ToLower(strings.TrimSpace(*modeFlag))
		if mode != processor.ModeMerged && mode != processor.ModeSingle {
			log.WithFields(logger.Fields{"mode": *modeFlag}).Error("mode must be merged or single")
			return 1
		}
		cfg.Quote.Mode = mode
	}

	env := config.AppEnvironment()
	log.WithFields(logger.Fields{
		"service": cfg.Cryptoquote.Name,
		"version": cfg.Cryptoquote.Version,
		"env":     env,
		"mode":    cfg.Quote.Mode,
		"qty":     qty.String(),
	}).Info("starting cryptoquote")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	if cw := cfg.Metrics.CloudWatch; cw.Enabled {
		if err := logger.InitCloudWatch(ctx, cw.Region, cw.Namespace, cw.Dashboard); err != nil {
			log.WithError(err).Warn("cloudwatch metrics disabled")
		}
	}
	defer finish(log, cfg)

	sourceCfgs := cfg.EnabledSources()
	if cfg.Quote.Mode == processor.ModeSingle {
		primary, _ := cfg.Source(cfg.Quote.PrimarySource)
		sourceCfgs = []config.SourceConfig{primary}
	}

	sources := make([]reader.Source, 0, len(sourceCfgs))
	throttle := reader.NewThrottle(cfg.Reader.MinInterval)
	for _, sc := range sourceCfgs {
		src, err := reader.NewSource(cfg, sc)
		if err != nil {
			log.WithError(err).Error("failed to build source")
			return 1
		}
		throttle.SetInterval(sc.Name, cfg.Interval(sc))
		sources = append(sources, src)
	}

	snapshots := reader.NewCollector(sources, throttle, cfg.Reader.MaxWorkers).Collect(ctx)

	primary, _ := cfg.Source(cfg.Quote.PrimarySource)
	agg := processor.NewAggregator(cfg.Quote.Mode, symbols.Canonical(primary.Format, primary.Symbol), cfg.Quote.RequireAllSources)
	report, err := agg.Run(ctx, snapshots, qty)
	if report != nil && !errors.Is(err, processor.ErrNoUsableSnapshots) {
		printReport(stdout, report, cfg.Asset())
	}
	if err != nil {
		log.WithError(err).Error("quote failed")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	w, err := writer.NewQuoteWriter(ctx, cfg)
	if err == nil {
		_, err = w.Write(ctx, report)
	}
	if err != nil {
		log.WithError(err).WithEnv("APP_ENV").Error("failed to stage quotes")
		if config.IsProductionLike(env) {
			return 1
		}
	}
	return 0
}

// quantity returns the -qty flag value, or the configured default.
func quantity(cfg *config.Config, flagValue string) (decimal.Decimal, error) {
	if strings.TrimSpace(flagValue) == "" {
		return cfg.DefaultQuantity()
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(flagValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("-qty %q is not a number", flagValue)
	}
	if qty.IsNegative() {
		return decimal.Zero, fmt.Errorf("-qty %s: %w", qty, processor.ErrNegativeQuantity)
	}
	return qty, nil
}

// printReport writes the quote lines and any partial fill or partial data
// notices.
func printReport(out io.Writer, report *models.Report, asset string) {
	if asset == "" {
		asset = report.Symbol
	}
	fmt.Fprintf(out, "To buy  %s %s = $%s\n", report.TargetQty, asset, report.Buy.TotalCost.StringFixed(2))
	fmt.Fprintf(out, "To sell %s %s = $%s\n", report.TargetQty, asset, report.Sell.TotalCost.StringFixed(2))

	for _, q := range []struct {
		label string
		quote models.ExecutionQuote
	}{{"buy", report.Buy}, {"sell", report.Sell}} {
		if !q.quote.FullyFilled {
			fmt.Fprintf(out, "partial fill (%s): filled=%s remaining=%s\n", q.label, q.quote.FilledQty, q.quote.RemainingQty())
		}
	}
	if report.PartialData {
		fmt.Fprintf(out, "partial data: failed sources %s\n", strings.Join(report.FailedSources(), ", "))
	}
}

func finish(log *logger.Log, cfg *config.Config) {
	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.WithError(err).Warn("failed to write metrics textfile")
		}
	}
	log.LogSummary()
}
