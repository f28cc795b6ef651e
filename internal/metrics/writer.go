package metrics

import "cryptoquote/logger"

// WriterStats describes what one quote write produced.
type WriterStats struct {
	FilesWritten int64
	RowsWritten  int64
	BytesWritten int64
	ErrorsCount  int64
}

// ReportWriter emits the writer metrics for component.
func ReportWriter(log *logger.Log, component string, stats WriterStats) {
	if log == nil {
		log = logger.GetLogger()
	}
	EmitMetric(log, component, "files_written", stats.FilesWritten, "counter", logger.Fields{})
	EmitMetric(log, component, "rows_written", stats.RowsWritten, "counter", logger.Fields{})
	EmitMetric(log, component, "bytes_written", stats.BytesWritten, "counter", logger.Fields{})
	EmitMetric(log, component, "errors_count", stats.ErrorsCount, "counter", logger.Fields{})

	entry := log.WithComponent(component).WithFields(logger.Fields{
		"files_written": stats.FilesWritten,
		"rows_written":  stats.RowsWritten,
		"bytes_written": stats.BytesWritten,
		"errors_count":  stats.ErrorsCount,
	})
	if stats.ErrorsCount > 0 {
		entry.Warn(component + " metrics")
		return
	}
	entry.Debug(component + " metrics")
}
