package processor

import (
	"errors"
	"sort"

	"dealflow/models"
)

// ErrNoObservations is returned when there is nothing to pivot. Exporters
// turn it into a descriptive error instead of writing an empty document.
var ErrNoObservations = errors.New("no observations to pivot")

// PivotIndicators reshapes long-format observations into per-country year
// rows. Indicator values for the same (country, year) are unioned into one
// row; when the same indicator appears twice for a key, the first occurrence
// wins. Years are sorted ascending per country; no other ordering is imposed.
func PivotIndicators(obs []models.IndicatorObservation) (*models.IndicatorDataset, error) {
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}

	series := make(map[string]map[int]map[string]float64)
	for _, o := range obs {
		years, ok := series[o.Country]
		if !ok {
			years = make(map[int]map[string]float64)
			series[o.Country] = years
		}
		indicators, ok := years[o.Year]
		if !ok {
			indicators = make(map[string]float64)
			years[o.Year] = indicators
		}
		if _, exists := indicators[o.IndicatorCode]; !exists {
			indicators[o.IndicatorCode] = o.Value
		}
	}

	ds := &models.IndicatorDataset{Series: make(map[string][]models.PivotedYear, len(series))}
	for country, years := range series {
		sorted := make([]int, 0, len(years))
		for y := range years {
			sorted = append(sorted, y)
		}
		sort.Ints(sorted)

		rows := make([]models.PivotedYear, 0, len(sorted))
		for _, y := range sorted {
			rows = append(rows, models.PivotedYear{
				Period:     y,
				PeriodType: "year",
				Indicators: years[y],
			})
		}
		ds.Series[country] = rows
	}

	return ds, nil
}

// ShopSeries groups the price records of one shop, in the order they
// appeared in the input.
type ShopSeries struct {
	ShopID   int
	ShopName string
	Records  []models.PriceRecord
}

// PivotDeals groups price records by shop. Shops appear in first-appearance
// order and each shop keeps its records in input order.
func PivotDeals(records []models.PriceRecord) []ShopSeries {
	index := make(map[int]int)
	var out []ShopSeries

	for _, rec := range records {
		i, ok := index[rec.ShopID]
		if !ok {
			i = len(out)
			index[rec.ShopID] = i
			out = append(out, ShopSeries{ShopID: rec.ShopID, ShopName: rec.ShopName})
		}
		if out[i].ShopName == "" && rec.ShopName != "" {
			out[i].ShopName = rec.ShopName
		}
		out[i].Records = append(out[i].Records, rec)
	}

	return out
}
