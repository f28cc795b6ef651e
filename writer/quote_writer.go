package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "cryptoquote/config"
	"cryptoquote/internal/metrics"
	"cryptoquote/logger"
	"cryptoquote/models"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// QuoteWriter stages the quotes of each cycle as a small parquet file in S3
// or in a local directory.
type QuoteWriter struct {
	config   *appconfig.Config
	s3Client objectPutter
	log      *logger.Log
}

// NewQuoteWriter builds a writer for cfg. The S3 client is only created when
// S3 storage is enabled.
func NewQuoteWriter(ctx context.Context, cfg *appconfig.Config) (*QuoteWriter, error) {
	log := logger.GetLogger()
	w := &QuoteWriter{config: cfg, log: log}

	if !cfg.Writer.Enabled || !cfg.Storage.S3.Enabled {
		return w, nil
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("quote_writer").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	w.s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithComponent("quote_writer").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("quote writer initialized")

	return w, nil
}

// Enabled reports whether Write has a destination.
func (w *QuoteWriter) Enabled() bool {
	if !w.config.Writer.Enabled {
		return false
	}
	return w.s3Client != nil || w.config.Writer.LocalDir != ""
}

// Write stores the two quote rows of report and returns where they went.
// It returns "" without error when the writer has no destination.
func (w *QuoteWriter) Write(ctx context.Context, report *models.Report) (string, error) {
	if !w.Enabled() {
		return "", nil
	}

	key := w.objectKey(report)
	log := w.log.WithComponent("quote_writer").WithFields(logger.Fields{
		"cycle_id":  report.CycleID,
		"key":       key,
		"operation": "write_quotes",
	})

	records := quoteRecords(report)
	start := time.Now()
	data, err := encodeParquet(records, w.config.Writer.Compression)
	if err != nil {
		log.WithError(err).Error("failed to create parquet file")
		metrics.ReportWriter(w.log, "quote_writer", metrics.WriterStats{ErrorsCount: 1})
		return "", err
	}

	var location string
	if w.s3Client != nil {
		location, err = w.upload(ctx, key, data)
	} else {
		location, err = w.writeLocal(key, data)
	}
	if err != nil {
		log.WithError(err).WithEnv("S3_BUCKET").Error("failed to store quotes")
		metrics.ReportWriter(w.log, "quote_writer", metrics.WriterStats{ErrorsCount: 1})
		return "", err
	}

	metrics.ReportWriter(w.log, "quote_writer", metrics.WriterStats{
		FilesWritten: 1,
		RowsWritten:  int64(len(records)),
		BytesWritten: int64(len(data)),
	})

	logger.LogPerformanceEntry(log, "quote_writer", "write_quotes", time.Since(start), logger.Fields{
		"file_size": len(data),
	})
	logger.LogDataFlowEntry(log, "aggregator", location, len(records), "quote_rows")
	log.WithFields(logger.Fields{"location": location, "file_size": len(data)}).Info("quotes written")
	return location, nil
}

func (w *QuoteWriter) objectKey(report *models.Report) string {
	ts := report.GeneratedAt.UTC()
	parts := []string{}
	if p := strings.Trim(w.config.Writer.Prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if layout := w.config.Writer.Partitioning.TimeFormat; layout != "" {
		parts = append(parts, ts.Format(layout))
	}
	symbol := strings.NewReplacer("/", "-", " ", "").Replace(report.Symbol)
	parts = append(parts, fmt.Sprintf("%s_%s.parquet", symbol, report.CycleID))
	return path.Join(parts...)
}

func (w *QuoteWriter) upload(ctx context.Context, key string, data []byte) (string, error) {
	bucket := w.config.Storage.S3.Bucket
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":        "parquet",
			"compression":         w.config.Writer.Compression,
			"cryptoquote-version": w.config.Cryptoquote.Version,
		},
	}

	if _, err := w.s3Client.PutObject(context.WithoutCancel(ctx), input); err != nil {
		return "", fmt.Errorf("failed to upload to S3 bucket %s: %w", bucket, err)
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}

func (w *QuoteWriter) writeLocal(key string, data []byte) (string, error) {
	dst := filepath.Join(w.config.Writer.LocalDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return dst, nil
}

func quoteRecords(report *models.Report) []QuoteRecord {
	failed := strings.Join(report.FailedSources(), ",")
	row := func(side string, q models.ExecutionQuote) QuoteRecord {
		return QuoteRecord{
			CycleID:       report.CycleID,
			GeneratedAt:   report.GeneratedAt.UnixMilli(),
			Mode:          report.Mode,
			Symbol:        report.Symbol,
			Side:          side,
			TargetQty:     q.TargetQty.String(),
			FilledQty:     q.FilledQty.String(),
			TotalCost:     q.TotalCost.String(),
			AveragePrice:  q.AveragePrice().InexactFloat64(),
			FullyFilled:   q.FullyFilled,
			PartialData:   report.PartialData,
			SourcesOK:     int32(report.SucceededSources()),
			SourcesFailed: failed,
		}
	}
	return []QuoteRecord{row("buy", report.Buy), row("sell", report.Sell)}
}
