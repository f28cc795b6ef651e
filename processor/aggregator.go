package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cryptoquote/internal/metrics"
	"cryptoquote/logger"
	"cryptoquote/models"
)

// Quoting modes.
const (
	ModeMerged = "merged"
	ModeSingle = "single"
)

// Aggregator turns one cycle of raw snapshots into a Report. A source that
// failed to fetch or normalise is excluded and recorded; the remaining
// sources are still merged and quoted.
type Aggregator struct {
	Mode   string
	Symbol string
	// RequireAllSources turns any failed source into ErrIncompleteSnapshots.
	RequireAllSources bool

	log *logger.Log
	now func() time.Time
}

func NewAggregator(mode, symbol string, requireAll bool) *Aggregator {
	if mode == "" {
		mode = ModeMerged
	}
	return &Aggregator{
		Mode:              mode,
		Symbol:            symbol,
		RequireAllSources: requireAll,
		log:               logger.GetLogger(),
		now:               time.Now,
	}
}

// Run normalises, merges and prices the snapshots for target. On
// ErrIncompleteSnapshots the report is returned alongside the error so the
// caller can still show it.
func (a *Aggregator) Run(ctx context.Context, snapshots []models.RawSnapshot, target decimal.Decimal) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if target.IsNegative() {
		return nil, fmt.Errorf("quote %s: %w", target, ErrNegativeQuantity)
	}

	start := a.now()
	log := a.log.WithComponent("aggregator").WithFields(logger.Fields{"mode": a.Mode, "symbol": a.Symbol})

	report := &models.Report{
		CycleID:     uuid.NewString(),
		Mode:        a.Mode,
		Symbol:      a.Symbol,
		TargetQty:   target,
		GeneratedAt: start.UTC(),
	}

	var bidLists, askLists [][]models.PriceLevel
	for _, snap := range snapshots {
		status := models.SourceStatus{Source: snap.Source, Symbol: snap.Symbol}

		if snap.Failed() {
			status.Stage = models.StageFetch
			status.Error = snap.Err.Error()
			report.Sources = append(report.Sources, status)
			log.WithFields(logger.Fields{"source": snap.Source}).WithError(snap.Err).Warn("source excluded: fetch failed")
			continue
		}

		bids, asks, err := NormalizeSnapshot(snap)
		if err != nil {
			status.Stage = models.StageNormalize
			status.Error = err.Error()
			report.Sources = append(report.Sources, status)
			metrics.ReportNormalizeError(a.log, snap.Source)
			log.WithFields(logger.Fields{"source": snap.Source, "bytes": len(snap.Data)}).WithError(err).Warn("source excluded: snapshot rejected")
			continue
		}

		status.OK = true
		status.BidLevels = len(bids)
		status.AskLevels = len(asks)
		report.Sources = append(report.Sources, status)
		bidLists = append(bidLists, bids)
		askLists = append(askLists, asks)
		logger.LogDataFlowEntry(log, snap.Source, "merger", len(bids)+len(asks), "price_levels")
	}

	failed := report.FailedSources()
	report.PartialData = len(failed) > 0
	if report.SucceededSources() == 0 {
		return report, fmt.Errorf("%w: %d of %d sources failed", ErrNoUsableSnapshots, len(failed), len(snapshots))
	}

	bidBook := Merge(models.SideBid, bidLists...)
	askBook := Merge(models.SideAsk, askLists...)
	report.BidDepth = bidBook.Depth()
	report.AskDepth = askBook.Depth()

	buy, err := a.price(askBook, target)
	if err != nil {
		return nil, fmt.Errorf("price buy side: %w", err)
	}
	sell, err := a.price(bidBook, target)
	if err != nil {
		return nil, fmt.Errorf("price sell side: %w", err)
	}
	report.Buy, report.Sell = buy, sell

	for _, q := range []models.ExecutionQuote{buy, sell} {
		if !q.FullyFilled {
			metrics.ReportPartialFill(a.log, q)
		}
	}

	logger.LogPerformanceEntry(log, "aggregator", "run", a.now().Sub(start), logger.Fields{
		"bid_levels": bidBook.Len(),
		"ask_levels": askBook.Len(),
		"sources":    len(snapshots),
	})

	if report.PartialData {
		metrics.ReportPartialData(a.log, failed)
		if a.RequireAllSources {
			return report, fmt.Errorf("%w: failed sources %v", ErrIncompleteSnapshots, failed)
		}
	}
	return report, nil
}

// price quotes target against book. Single-source mode walks the book
// directly; merged mode resolves against the cumulative curve.
func (a *Aggregator) price(book models.Book, target decimal.Decimal) (models.ExecutionQuote, error) {
	if a.Mode == ModeSingle {
		return Walk(book, target)
	}
	return Resolve(BuildCurve(book), target)
}
