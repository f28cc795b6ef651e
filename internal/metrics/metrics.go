// Package metrics keeps the prometheus counters for one quoting run:
//
//	cryptoquote_fetch_success_total{source}
//	cryptoquote_fetch_errors_total{source,stage}
//	cryptoquote_fetch_throttled_total{source}
//	cryptoquote_partial_fills_total{side}
//	cryptoquote_fetch_duration_seconds{source}
//
// The CLI exits after one cycle, so the registry is exported with
// WriteTextfile for the node exporter textfile collector instead of being
// scraped.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	once           sync.Once
	registry       *prometheus.Registry
	fetchSuccess   *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	fetchThrottled *prometheus.CounterVec
	partialFills   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
)

// Init creates the registry and collectors. It is safe to call more than once.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		fetchSuccess = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoquote_fetch_success_total",
				Help: "Number of order book snapshots retrieved",
			},
			[]string{"source"},
		)
		fetchErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoquote_fetch_errors_total",
				Help: "Number of sources that failed to contribute, by stage",
			},
			[]string{"source", "stage"},
		)
		fetchThrottled = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoquote_fetch_throttled_total",
				Help: "Number of fetch attempts rejected by the per-source throttle",
			},
			[]string{"source"},
		)
		partialFills = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoquote_partial_fills_total",
				Help: "Number of quotes whose target exceeded the book depth",
			},
			[]string{"side"},
		)
		fetchDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptoquote_fetch_duration_seconds",
				Help:    "Snapshot retrieval latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)

		registry.MustRegister(fetchSuccess, fetchErrors, fetchThrottled, partialFills, fetchDuration)
		registry.MustRegister(collectors.NewBuildInfoCollector())
	})
}

// Registry returns the run's registry, initialising it if needed.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// RecordFetchSuccess counts a retrieved snapshot and observes its latency.
func RecordFetchSuccess(source string, latency time.Duration) {
	Init()
	fetchSuccess.WithLabelValues(source).Inc()
	fetchDuration.WithLabelValues(source).Observe(latency.Seconds())
}

// RecordFetchError counts a source that failed at stage.
func RecordFetchError(source, stage string) {
	Init()
	fetchErrors.WithLabelValues(source, stage).Inc()
}

// RecordThrottled counts an attempt rejected by the throttle.
func RecordThrottled(source string) {
	Init()
	fetchThrottled.WithLabelValues(source).Inc()
}

// RecordPartialFill counts a quote that could not be fully filled.
func RecordPartialFill(side string) {
	Init()
	partialFills.WithLabelValues(side).Inc()
}

// WriteTextfile writes the registry in text exposition format to path.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry()); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
