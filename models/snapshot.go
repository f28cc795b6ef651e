package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot formats understood by the normalizer.
const (
	FormatCoinbase = "coinbase"
	FormatGemini   = "gemini"
	FormatBinance  = "binance"
	FormatBybit    = "bybit"
	FormatOkx      = "okx"
	FormatKraken   = "kraken"
	FormatGeneric  = "generic"
)

// Source failure stages.
const (
	StageFetch     = "fetch"
	StageNormalize = "normalize"
)

// RawSnapshot is the outcome of one retrieval attempt against a source.
// A non-nil Err marks the attempt as failed; Data is then empty.
type RawSnapshot struct {
	Source    string
	Format    string
	Symbol    string
	URL       string
	Data      []byte
	FetchedAt time.Time
	Latency   time.Duration
	Err       error
}

// Failed reports whether the retrieval attempt failed.
func (s RawSnapshot) Failed() bool { return s.Err != nil }

// SourceStatus records how one source contributed to an aggregation cycle.
type SourceStatus struct {
	Source    string `json:"source"`
	Symbol    string `json:"symbol"`
	OK        bool   `json:"ok"`
	Stage     string `json:"stage,omitempty"`
	Error     string `json:"error,omitempty"`
	BidLevels int    `json:"bid_levels"`
	AskLevels int    `json:"ask_levels"`
}

// Report is the result of one aggregation cycle.
type Report struct {
	CycleID     string          `json:"cycle_id"`
	Mode        string          `json:"mode"`
	Symbol      string          `json:"symbol"`
	TargetQty   decimal.Decimal `json:"target_qty"`
	Buy         ExecutionQuote  `json:"buy"`
	Sell        ExecutionQuote  `json:"sell"`
	Sources     []SourceStatus  `json:"sources"`
	PartialData bool            `json:"partial_data"`
	BidDepth    decimal.Decimal `json:"bid_depth"`
	AskDepth    decimal.Decimal `json:"ask_depth"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// FailedSources returns the names of sources that did not contribute.
func (r *Report) FailedSources() []string {
	var out []string
	for _, s := range r.Sources {
		if !s.OK {
			out = append(out, s.Source)
		}
	}
	return out
}

// SucceededSources returns how many sources contributed levels.
func (r *Report) SucceededSources() int {
	n := 0
	for _, s := range r.Sources {
		if s.OK {
			n++
		}
	}
	return n
}
