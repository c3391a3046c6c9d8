package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// IndicatorObservation is the canonical representation of one long-format
// economic observation. (Country, Year, IndicatorCode) is the logical key;
// duplicate keys are resolved downstream with first-occurrence-wins.
type IndicatorObservation struct {
	Country       string  `json:"country"`
	Year          int     `json:"year"`
	IndicatorCode string  `json:"indicator"`
	Value         float64 `json:"value"`
}

// NewIndicatorObservation is the single validating constructor for
// IndicatorObservation. Country and indicator must be non-empty; year and
// value arrive in whatever type the upstream row carried and must coerce to
// int and float64. Any failure means the row is dropped by the caller.
func NewIndicatorObservation(country, indicator string, year, value interface{}) (IndicatorObservation, error) {
	country = strings.TrimSpace(country)
	indicator = strings.TrimSpace(indicator)
	if country == "" {
		return IndicatorObservation{}, fmt.Errorf("observation: missing country")
	}
	if indicator == "" {
		return IndicatorObservation{}, fmt.Errorf("observation: missing indicator code")
	}

	y, err := CoerceYear(year)
	if err != nil {
		return IndicatorObservation{}, fmt.Errorf("observation %s/%s: %w", country, indicator, err)
	}
	v, err := CoerceFloat(value)
	if err != nil {
		return IndicatorObservation{}, fmt.Errorf("observation %s/%d/%s: %w", country, y, indicator, err)
	}

	return IndicatorObservation{
		Country:       country,
		Year:          y,
		IndicatorCode: indicator,
		Value:         v,
	}, nil
}

// CoerceYear converts an upstream year cell to an integer. Strings may
// carry surrounding whitespace; fractional values must be whole.
func CoerceYear(v interface{}) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing year")
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("non-integral year %v", n)
		}
		return int(n), nil
	case json.Number:
		return CoerceYear(string(n))
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, fmt.Errorf("missing year")
		}
		if y, err := strconv.Atoi(s); err == nil {
			return y, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("unparseable year %q", n)
		}
		return int(f), nil
	default:
		return 0, fmt.Errorf("unsupported year type %T", v)
	}
}

// CoerceFloat converts an upstream value cell to a float64.
func CoerceFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing value")
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return CoerceFloat(string(n))
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, fmt.Errorf("missing value")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable value %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}

// PivotedYear holds every indicator value observed for one (country, year)
// pair. PeriodType is always "year".
type PivotedYear struct {
	Period     int                `json:"period"`
	PeriodType string             `json:"period_type"`
	Indicators map[string]float64 `json:"indicators"`
}

// IndicatorDataset is the pivoted country → year → indicators view over a
// set of observations. Years within each country are strictly ascending.
// The dataset is not mutated after the pivot builds it.
type IndicatorDataset struct {
	Series map[string][]PivotedYear
}

// Countries returns the country codes present in the dataset, sorted.
func (d *IndicatorDataset) Countries() []string {
	out := make([]string, 0, len(d.Series))
	for country := range d.Series {
		out = append(out, country)
	}
	sort.Strings(out)
	return out
}

// IndicatorCodes returns the sorted set of indicator codes present
// anywhere in the dataset.
func (d *IndicatorDataset) IndicatorCodes() []string {
	seen := make(map[string]struct{})
	for _, years := range d.Series {
		for _, year := range years {
			for code := range year.Indicators {
				seen[code] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// YearRange reports the minimum and maximum year present. ok is false for
// an empty dataset.
func (d *IndicatorDataset) YearRange() (start, end int, ok bool) {
	for _, years := range d.Series {
		for _, year := range years {
			if !ok {
				start, end, ok = year.Period, year.Period, true
				continue
			}
			if year.Period < start {
				start = year.Period
			}
			if year.Period > end {
				end = year.Period
			}
		}
	}
	return start, end, ok
}

// TotalRecords counts the pivoted (country, year) rows.
func (d *IndicatorDataset) TotalRecords() int {
	total := 0
	for _, years := range d.Series {
		total += len(years)
	}
	return total
}

// Country resolves a country code case-insensitively. The second return
// distinguishes an absent country from one with no data.
func (d *IndicatorDataset) Country(code string) ([]PivotedYear, bool) {
	if years, ok := d.Series[code]; ok {
		return years, true
	}
	for country, years := range d.Series {
		if strings.EqualFold(country, code) {
			return years, true
		}
	}
	return nil, false
}

// CountryYear resolves a single pivoted year for a country,
// case-insensitively on the country code.
func (d *IndicatorDataset) CountryYear(code string, year int) (PivotedYear, bool) {
	years, ok := d.Country(code)
	if !ok {
		return PivotedYear{}, false
	}
	for _, y := range years {
		if y.Period == year {
			return y, true
		}
	}
	return PivotedYear{}, false
}

// YearRangeDoc is the year_range object of the exported indicator metadata.
type YearRangeDoc struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// IndicatorMetadata is the metadata envelope of the exported indicator
// document.
type IndicatorMetadata struct {
	Source       string            `json:"source"`
	Database     string            `json:"database"`
	Indicators   map[string]string `json:"indicators"`
	Countries    []string          `json:"countries"`
	YearRange    YearRangeDoc      `json:"year_range"`
	TotalRecords int               `json:"total_records"`
	GeneratedAt  string            `json:"generated_at"`
}

// IndicatorDocument is the exported economic-indicators artifact.
type IndicatorDocument struct {
	Metadata IndicatorMetadata        `json:"metadata"`
	Data     map[string][]PivotedYear `json:"data"`
}

// Country resolves a country key in the document case-insensitively and
// returns the canonical key alongside its series.
func (doc *IndicatorDocument) Country(code string) (string, []PivotedYear, bool) {
	if years, ok := doc.Data[code]; ok {
		return code, years, true
	}
	for country, years := range doc.Data {
		if strings.EqualFold(country, code) {
			return country, years, true
		}
	}
	return "", nil, false
}

// CountryYear resolves one pivoted year within the document.
func (doc *IndicatorDocument) CountryYear(code string, year int) (string, PivotedYear, bool) {
	country, years, ok := doc.Country(code)
	if !ok {
		return "", PivotedYear{}, false
	}
	for _, y := range years {
		if y.Period == year {
			return country, y, true
		}
	}
	return "", PivotedYear{}, false
}
