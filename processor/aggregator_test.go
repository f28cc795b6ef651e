package processor

import (
	"context"
	"errors"
	"testing"

	"cryptoquote/models"
)

func snapshot(source, format, body string) models.RawSnapshot {
	return models.RawSnapshot{Source: source, Format: format, Symbol: "BTC-USD", Data: []byte(body)}
}

func TestAggregatorMergesSources(t *testing.T) {
	snaps := []models.RawSnapshot{
		snapshot("coinbase", models.FormatCoinbase, `{"bids":[["99","1",1]],"asks":[["100","5",2]]}`),
		snapshot("gemini", models.FormatGemini, `{"bids":[{"price":"98","amount":"4","timestamp":"1"}],
			"asks":[{"price":"100","amount":"3","timestamp":"1"},{"price":"101","amount":"2","timestamp":"1"}]}`),
	}

	agg := NewAggregator(ModeMerged, "BTC-USD", false)
	report, err := agg.Run(context.Background(), snaps, d("9"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Asks merge to (100,8),(101,2): 8*100 + 1*101.
	if !report.Buy.TotalCost.Equal(d("901")) || !report.Buy.FullyFilled {
		t.Fatalf("buy quote %+v", report.Buy)
	}
	// Bids (99,1),(98,4): only 5 available.
	if report.Sell.FullyFilled || !report.Sell.FilledQty.Equal(d("5")) || !report.Sell.TotalCost.Equal(d("491")) {
		t.Fatalf("sell quote %+v", report.Sell)
	}
	if report.PartialData {
		t.Fatalf("no source failed but partial data set")
	}
	if !report.AskDepth.Equal(d("10")) || !report.BidDepth.Equal(d("5")) {
		t.Fatalf("depths ask=%s bid=%s", report.AskDepth, report.BidDepth)
	}
	if report.CycleID == "" || report.Mode != ModeMerged || len(report.Sources) != 2 {
		t.Fatalf("report header %+v", report)
	}
	if report.Sources[1].AskLevels != 2 || !report.Sources[1].OK {
		t.Fatalf("gemini status %+v", report.Sources[1])
	}
}

func TestAggregatorIsolatesFailedSources(t *testing.T) {
	snaps := []models.RawSnapshot{
		snapshot("coinbase", models.FormatCoinbase, `{"bids":[["99","1",1]],"asks":[["100","5",2]]}`),
		snapshot("gemini", models.FormatGemini, `{"bids":[{"price":"oops","amount":"1"}],"asks":[]}`),
		{Source: "kraken", Format: models.FormatKraken, Err: errors.New("dial tcp: timeout")},
	}

	report, err := NewAggregator(ModeMerged, "BTC-USD", false).Run(context.Background(), snaps, d("4"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.PartialData {
		t.Fatalf("expected partial data")
	}
	if !report.Buy.TotalCost.Equal(d("400")) || !report.Buy.FullyFilled {
		t.Fatalf("buy quote %+v", report.Buy)
	}

	byName := map[string]models.SourceStatus{}
	for _, s := range report.Sources {
		byName[s.Source] = s
	}
	if s := byName["gemini"]; s.OK || s.Stage != models.StageNormalize || s.Error == "" {
		t.Fatalf("gemini status %+v", s)
	}
	if s := byName["kraken"]; s.OK || s.Stage != models.StageFetch {
		t.Fatalf("kraken status %+v", s)
	}
	failed := report.FailedSources()
	if len(failed) != 2 {
		t.Fatalf("failed sources %v", failed)
	}
}

func TestAggregatorNoUsableSnapshots(t *testing.T) {
	snaps := []models.RawSnapshot{
		{Source: "coinbase", Err: errors.New("rate limited")},
		snapshot("gemini", models.FormatGemini, `not json`),
	}
	report, err := NewAggregator(ModeMerged, "BTC-USD", false).Run(context.Background(), snaps, d("1"))
	if !errors.Is(err, ErrNoUsableSnapshots) {
		t.Fatalf("expected ErrNoUsableSnapshots, got %v", err)
	}
	if report == nil || len(report.Sources) != 2 {
		t.Fatalf("expected source statuses on failure, got %+v", report)
	}
}

func TestAggregatorStrictMode(t *testing.T) {
	snaps := []models.RawSnapshot{
		snapshot("coinbase", models.FormatCoinbase, `{"bids":[["99","1",1]],"asks":[["100","5",2]]}`),
		{Source: "gemini", Err: errors.New("503")},
	}
	report, err := NewAggregator(ModeMerged, "BTC-USD", true).Run(context.Background(), snaps, d("1"))
	if !errors.Is(err, ErrIncompleteSnapshots) {
		t.Fatalf("expected ErrIncompleteSnapshots, got %v", err)
	}
	if report == nil || !report.Buy.TotalCost.Equal(d("100")) {
		t.Fatalf("strict mode should still return the report, got %+v", report)
	}
}

func TestAggregatorSingleModeWalks(t *testing.T) {
	snaps := []models.RawSnapshot{
		snapshot("coinbase", models.FormatCoinbase, `{"bids":[["99","5",1]],"asks":[["100","5",1],["101","5",1]]}`),
	}
	report, err := NewAggregator(ModeSingle, "BTC-USD", false).Run(context.Background(), snaps, d("7"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Buy.TotalCost.Equal(d("702")) || report.Mode != ModeSingle {
		t.Fatalf("single mode buy %+v", report.Buy)
	}
}

func TestAggregatorRejectsNegativeTarget(t *testing.T) {
	_, err := NewAggregator(ModeMerged, "BTC-USD", false).Run(context.Background(), nil, d("-1"))
	if !errors.Is(err, ErrNegativeQuantity) {
		t.Fatalf("expected ErrNegativeQuantity, got %v", err)
	}
}

func TestAggregatorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewAggregator(ModeMerged, "BTC-USD", false).Run(ctx, nil, d("1")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
