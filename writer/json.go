package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dealflow/logger"
	"dealflow/models"
)

const (
	indicatorSource   = "IMF (International Monetary Fund)"
	indicatorDatabase = "World Economic Outlook"
)

// WriteJSON serializes v to path with two-space indentation, creating parent
// directories as needed.
func WriteJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if info, err := os.Stat(path); err == nil {
		logger.IncrementArtifactWrite(info.Size())
	}

	return nil
}

// BuildPriceDocument assembles the exported price history document. Records
// keep their input order; the serving surface relies on it.
func BuildPriceDocument(gameID, country, startDate, endDate string, records []models.PriceRecord, now time.Time) *models.PriceDocument {
	entries := make([]models.PriceEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rec.Entry())
	}

	return &models.PriceDocument{
		GameID:      gameID,
		Country:     country,
		LastUpdated: now.UTC().Format(time.RFC3339),
		StartDate:   startDate,
		EndDate:     endDate,
		Prices:      entries,
	}
}

// BuildIndicatorDocument assembles the exported indicator document from a
// pivoted dataset. Indicator descriptions fall back to the code itself when
// no description is configured.
func BuildIndicatorDocument(ds *models.IndicatorDataset, descriptions map[string]string, now time.Time) (*models.IndicatorDocument, error) {
	if ds == nil || len(ds.Series) == 0 {
		return nil, fmt.Errorf("no indicator data to export")
	}

	indicators := make(map[string]string)
	for _, code := range ds.IndicatorCodes() {
		if desc, ok := descriptions[code]; ok && desc != "" {
			indicators[code] = desc
		} else {
			indicators[code] = code
		}
	}

	start, end, _ := ds.YearRange()

	return &models.IndicatorDocument{
		Metadata: models.IndicatorMetadata{
			Source:       indicatorSource,
			Database:     indicatorDatabase,
			Indicators:   indicators,
			Countries:    ds.Countries(),
			YearRange:    models.YearRangeDoc{Start: start, End: end},
			TotalRecords: ds.TotalRecords(),
			GeneratedAt:  now.UTC().Format(time.RFC3339),
		},
		Data: ds.Series,
	}, nil
}
