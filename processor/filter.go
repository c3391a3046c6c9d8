package processor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dealflow/models"
)

// ErrBadDate marks a date-range argument that cannot be parsed. It is a
// caller error and is always surfaced, never swallowed.
var ErrBadDate = errors.New("invalid date bound")

// DateRange is an inclusive timestamp window. A nil bound is open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// ParseDateRange builds a range from raw query arguments. Empty strings are
// open bounds; a malformed bound wraps ErrBadDate.
func ParseDateRange(start, end string) (DateRange, error) {
	var rng DateRange

	if start != "" {
		t, err := models.ParseTimestamp(start)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start_date '%s'", ErrBadDate, start)
		}
		rng.Start = &t
	}
	if end != "" {
		t, err := models.ParseTimestamp(end)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end_date '%s'", ErrBadDate, end)
		}
		rng.End = &t
	}

	return rng, nil
}

// Inverted reports whether both bounds are set with start after end. An
// inverted range matches nothing.
func (r DateRange) Inverted() bool {
	return r.Start != nil && r.End != nil && r.Start.After(*r.End)
}

// Contains reports whether t falls inside the range. Both bounds are
// inclusive.
func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// FilterPrices returns the records inside the range, restricted to the given
// shop ids when any are provided. Input order is preserved and the input
// slice is never mutated. The result is empty, not nil, when nothing matches.
func FilterPrices(records []models.PriceRecord, rng DateRange, shopIDs []int) []models.PriceRecord {
	out := make([]models.PriceRecord, 0, len(records))
	if rng.Inverted() {
		return out
	}

	var shopSet map[int]bool
	if len(shopIDs) > 0 {
		shopSet = make(map[int]bool, len(shopIDs))
		for _, id := range shopIDs {
			shopSet[id] = true
		}
	}

	for _, rec := range records {
		if !rng.Contains(rec.Timestamp) {
			continue
		}
		if shopSet != nil && !shopSet[rec.ShopID] {
			continue
		}
		out = append(out, rec)
	}

	return out
}

// FilterObservations keeps the observations whose country matches one of the
// given codes, case-insensitively. An empty country list keeps everything.
func FilterObservations(obs []models.IndicatorObservation, countries []string) []models.IndicatorObservation {
	out := make([]models.IndicatorObservation, 0, len(obs))
	if len(countries) == 0 {
		return append(out, obs...)
	}

	wanted := make(map[string]bool, len(countries))
	for _, c := range countries {
		wanted[strings.ToUpper(strings.TrimSpace(c))] = true
	}

	for _, o := range obs {
		if wanted[strings.ToUpper(o.Country)] {
			out = append(out, o)
		}
	}

	return out
}
