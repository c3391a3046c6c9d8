package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"dealflow/logger"
	"dealflow/models"
)

var priceCSVHeader = []string{
	"timestamp", "shop_id", "shop_name",
	"price_amount", "price_currency",
	"regular_amount", "regular_currency", "cut",
}

// WritePriceCSV writes price records as a flat CSV with a fixed column
// order. Absent optional fields render as empty strings, never as a
// null placeholder.
func WritePriceCSV(path string, records []models.PriceRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, priceCSVHeader)

	for _, rec := range records {
		rows = append(rows, []string{
			rec.Timestamp.UTC().Format(time.RFC3339),
			strconv.Itoa(rec.ShopID),
			rec.ShopName,
			formatAmount(rec.PriceAmount),
			rec.PriceCurrency,
			formatAmount(rec.RegularAmount),
			rec.RegularCurrency,
			strconv.Itoa(rec.DiscountCut),
		})
	}

	return writeCSVFile(path, rows)
}

// WriteIndicatorBundle writes the four-file CSV export of one indicator
// collection run and returns the written paths: the long format, the wide
// per-year format, a by-country sort, and a key/value metadata file.
func WriteIndicatorBundle(dir string, obs []models.IndicatorObservation, ds *models.IndicatorDataset, descriptions map[string]string, now time.Time) ([]string, error) {
	if ds == nil || len(ds.Series) == 0 {
		return nil, fmt.Errorf("no indicator data to export")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bundle directory: %w", err)
	}

	var written []string

	longPath := filepath.Join(dir, "long_format.csv")
	if err := writeLongFormat(longPath, obs); err != nil {
		return written, err
	}
	written = append(written, longPath)

	widePath := filepath.Join(dir, "wide_format.csv")
	if err := writeWideFormat(widePath, ds, descriptions); err != nil {
		return written, err
	}
	written = append(written, widePath)

	byCountryPath := filepath.Join(dir, "by_country.csv")
	if err := writeByCountry(byCountryPath, obs); err != nil {
		return written, err
	}
	written = append(written, byCountryPath)

	metaPath := filepath.Join(dir, "metadata.csv")
	if err := writeBundleMetadata(metaPath, ds, descriptions, now); err != nil {
		return written, err
	}
	written = append(written, metaPath)

	return written, nil
}

func writeLongFormat(path string, obs []models.IndicatorObservation) error {
	rows := make([][]string, 0, len(obs)+1)
	rows = append(rows, []string{"country", "year", "indicator", "value"})
	for _, o := range obs {
		rows = append(rows, observationRow(o))
	}
	return writeCSVFile(path, rows)
}

func writeWideFormat(path string, ds *models.IndicatorDataset, descriptions map[string]string) error {
	codes := ds.IndicatorCodes()

	header := []string{"country", "year"}
	for _, code := range codes {
		header = append(header, wideColumnName(code, descriptions))
	}

	rows := [][]string{header}
	for _, country := range ds.Countries() {
		for _, year := range ds.Series[country] {
			row := []string{country, strconv.Itoa(year.Period)}
			for _, code := range codes {
				if v, ok := year.Indicators[code]; ok {
					row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
				} else {
					row = append(row, "")
				}
			}
			rows = append(rows, row)
		}
	}

	return writeCSVFile(path, rows)
}

func writeByCountry(path string, obs []models.IndicatorObservation) error {
	sorted := append([]models.IndicatorObservation(nil), obs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Country != sorted[j].Country {
			return sorted[i].Country < sorted[j].Country
		}
		if sorted[i].Year != sorted[j].Year {
			return sorted[i].Year < sorted[j].Year
		}
		return sorted[i].IndicatorCode < sorted[j].IndicatorCode
	})

	rows := make([][]string, 0, len(sorted)+1)
	rows = append(rows, []string{"country", "year", "indicator", "value"})
	for _, o := range sorted {
		rows = append(rows, observationRow(o))
	}
	return writeCSVFile(path, rows)
}

func writeBundleMetadata(path string, ds *models.IndicatorDataset, descriptions map[string]string, now time.Time) error {
	start, end, _ := ds.YearRange()

	rows := [][]string{
		{"key", "value"},
		{"source", indicatorSource},
		{"database", indicatorDatabase},
		{"countries", strings.Join(ds.Countries(), ",")},
		{"year_range", fmt.Sprintf("%d-%d", start, end)},
		{"total_records", strconv.Itoa(ds.TotalRecords())},
		{"generated_at", now.UTC().Format(time.RFC3339)},
	}
	for _, code := range ds.IndicatorCodes() {
		desc := descriptions[code]
		if desc == "" {
			desc = code
		}
		rows = append(rows, []string{"indicator_" + code, desc})
	}

	return writeCSVFile(path, rows)
}

func observationRow(o models.IndicatorObservation) []string {
	return []string{
		o.Country,
		strconv.Itoa(o.Year),
		o.IndicatorCode,
		strconv.FormatFloat(o.Value, 'f', -1, 64),
	}
}

// wideColumnName builds the "CODE - description" header, truncating long
// descriptions to keep the header readable.
func wideColumnName(code string, descriptions map[string]string) string {
	desc := descriptions[code]
	if desc == "" {
		return code
	}
	return code + " - " + truncateRunes(desc, 40)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func writeCSVFile(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if info, err := os.Stat(path); err == nil {
		logger.IncrementArtifactWrite(info.Size())
	}

	return nil
}
