package writer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"dealflow/logger"
	"dealflow/models"
)

// PriceParquetRecord is the parquet row layout for price history. The
// money columns are OPTIONAL so absent upstream values stay null instead
// of turning into zeros.
type PriceParquetRecord struct {
	Timestamp       int64    `parquet:"name=timestamp, type=INT64"`
	ShopID          int32    `parquet:"name=shop_id, type=INT32"`
	ShopName        string   `parquet:"name=shop_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	PriceAmount     *float64 `parquet:"name=price_amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	PriceCurrency   string   `parquet:"name=price_currency, type=BYTE_ARRAY, convertedtype=UTF8"`
	RegularAmount   *float64 `parquet:"name=regular_amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	RegularCurrency string   `parquet:"name=regular_currency, type=BYTE_ARRAY, convertedtype=UTF8"`
	Cut             int32    `parquet:"name=cut, type=INT32"`
}

// IndicatorParquetRecord is the parquet row layout for the long-format
// indicator table.
type IndicatorParquetRecord struct {
	Country   string  `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year      int32   `parquet:"name=year, type=INT32"`
	Indicator string  `parquet:"name=indicator, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value     float64 `parquet:"name=value, type=DOUBLE"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{
		buffer: &bytes.Buffer{},
	}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// Write-only usage, report the current end of the buffer
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// WritePriceParquet writes price records to a parquet file using the
// configured compression codec.
func WritePriceParquet(path, compression string, records []models.PriceRecord) error {
	data, err := buildPriceParquet(compression, records)
	if err != nil {
		return err
	}
	return writeParquetFile(path, data)
}

// WriteIndicatorParquet writes long-format indicator observations to a
// parquet file.
func WriteIndicatorParquet(path, compression string, obs []models.IndicatorObservation) error {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(IndicatorParquetRecord), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, o := range obs {
		record := IndicatorParquetRecord{
			Country:   o.Country,
			Year:      int32(o.Year),
			Indicator: o.IndicatorCode,
			Value:     o.Value,
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return writeParquetFile(path, fw.Bytes())
}

func buildPriceParquet(compression string, records []models.PriceRecord) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(PriceParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, rec := range records {
		record := PriceParquetRecord{
			Timestamp:       rec.Timestamp.UTC().UnixMilli(),
			ShopID:          int32(rec.ShopID),
			ShopName:        rec.ShopName,
			PriceAmount:     rec.PriceAmount,
			PriceCurrency:   rec.PriceCurrency,
			RegularAmount:   rec.RegularAmount,
			RegularCurrency: rec.RegularCurrency,
			Cut:             int32(rec.DiscountCut),
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return fw.Bytes(), nil
}

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

func writeParquetFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.IncrementArtifactWrite(int64(len(data)))
	return nil
}
