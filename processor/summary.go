package processor

import (
	"errors"
	"math"

	"dealflow/models"
)

// ErrNoRecords is returned when a summary is requested for an empty record
// sequence.
var ErrNoRecords = errors.New("no price records to summarize")

// Summarize reduces a price history to its endpoints. Records arrive
// most-recent-first, so the latest record is index 0 and the oldest is the
// last element. The percent change is reported as a magnitude with a
// direction, and only when the history has more than one record and both
// endpoint prices are present and positive.
func Summarize(records []models.PriceRecord) (*models.PriceSummary, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	latest := records[0]
	oldest := records[len(records)-1]

	summary := &models.PriceSummary{
		TotalRecords: len(records),
		Latest:       latest,
		Oldest:       oldest,
	}

	if len(records) > 1 &&
		latest.PriceAmount != nil && oldest.PriceAmount != nil &&
		*latest.PriceAmount > 0 && *oldest.PriceAmount > 0 {
		change := ((*latest.PriceAmount - *oldest.PriceAmount) / *oldest.PriceAmount) * 100
		magnitude := math.Abs(change)
		summary.PercentChange = &magnitude
		if change > 0 {
			summary.Direction = "increase"
		} else {
			summary.Direction = "decrease"
		}
	}

	return summary, nil
}
