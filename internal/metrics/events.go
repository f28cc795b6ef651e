package metrics

import (
	"time"

	"cryptoquote/logger"
	"cryptoquote/models"
)

// DropMetric names the event emitted when a channel hand-off is abandoned.
type DropMetric string

const (
	// DropMetricJob records a fetch job that never reached a worker.
	DropMetricJob DropMetric = "fetch_jobs_dropped"
	// DropMetricResult records a snapshot result that never reached the collector.
	DropMetricResult DropMetric = "fetch_results_dropped"
)

// EmitMetric logs a metric event through the logger, which also publishes it
// to CloudWatch when configured, and hands it to every registered handler.
// Events without a name are dropped.
func EmitMetric(log *logger.Log, component string, metric string, value interface{}, metricType string, fields logger.Fields) {
	if metric == "" {
		return
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}
	userFields := cloneFields(fields)
	log.LogMetric(component, metric, value, metricType, userFields)

	dispatchMetric(Metric{
		Timestamp: time.Now(),
		Component: component,
		Name:      metric,
		Value:     value,
		Type:      metricType,
		Fields:    cloneFields(fields),
	})
}

// EmitDropMetric emits one dropped hand-off for source.
func EmitDropMetric(log *logger.Log, metric DropMetric, source string) {
	fields := logger.Fields{}
	if source != "" {
		fields["source"] = source
	}
	EmitMetric(log, "channels", string(metric), 1, "counter", fields)
}

// ReportFetch records the outcome of one retrieval attempt in both the
// prometheus registry and the metric log.
func ReportFetch(log *logger.Log, snap models.RawSnapshot, throttled bool) {
	fields := logger.Fields{"source": snap.Source, "symbol": snap.Symbol}
	switch {
	case throttled:
		RecordThrottled(snap.Source)
		EmitMetric(log, "collector", "fetch_throttled", 1, "counter", fields)
	case snap.Failed():
		RecordFetchError(snap.Source, models.StageFetch)
		fields["stage"] = models.StageFetch
		EmitMetric(log, "collector", "fetch_errors", 1, "counter", fields)
	default:
		RecordFetchSuccess(snap.Source, snap.Latency)
		EmitMetric(log, "collector", "fetch_latency", float64(snap.Latency)/float64(time.Millisecond), "duration_ms", fields)
	}
}

// ReportNormalizeError records a source whose snapshot could not be normalised.
func ReportNormalizeError(log *logger.Log, source string) {
	RecordFetchError(source, models.StageNormalize)
	EmitMetric(log, "aggregator", "fetch_errors", 1, "counter", logger.Fields{"source": source, "stage": models.StageNormalize})
}

// ReportPartialFill records a quote that exhausted the book.
func ReportPartialFill(log *logger.Log, q models.ExecutionQuote) {
	RecordPartialFill(string(q.Side))
	EmitMetric(log, "aggregator", "partial_fill", 1, "counter", logger.Fields{
		"side":      string(q.Side),
		"target":    q.TargetQty.InexactFloat64(),
		"filled":    q.FilledQty.InexactFloat64(),
		"remaining": q.RemainingQty().InexactFloat64(),
	})
}

// ReportPartialData records a cycle that ran without every source.
func ReportPartialData(log *logger.Log, failed []string) {
	EmitMetric(log, "aggregator", "partial_data", len(failed), "counter", logger.Fields{})
}
