package writer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// QuoteRecord is one row of the quote table: a side of one aggregation cycle.
type QuoteRecord struct {
	CycleID       string  `parquet:"name=cycle_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	GeneratedAt   int64   `parquet:"name=generated_at, type=INT64"`
	Mode          string  `parquet:"name=mode, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol        string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side          string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	TargetQty     string  `parquet:"name=target_qty, type=BYTE_ARRAY, convertedtype=UTF8"`
	FilledQty     string  `parquet:"name=filled_qty, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalCost     string  `parquet:"name=total_cost, type=BYTE_ARRAY, convertedtype=UTF8"`
	AveragePrice  float64 `parquet:"name=average_price, type=DOUBLE"`
	FullyFilled   bool    `parquet:"name=fully_filled, type=BOOLEAN"`
	PartialData   bool    `parquet:"name=partial_data, type=BOOLEAN"`
	SourcesOK     int32   `parquet:"name=sources_ok, type=INT32"`
	SourcesFailed string  `parquet:"name=sources_failed, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// memoryFileWriter implements source.ParquetFile over a byte buffer.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)   { return mfw, nil }

// Seek only reports the current size; the parquet writer never rewinds.
func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(name) {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

// encodeParquet writes records into an in-memory parquet file.
func encodeParquet(records []QuoteRecord, compression string) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(QuoteRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}
