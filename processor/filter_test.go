package processor

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"dealflow/models"
)

func mustRecord(t *testing.T, timestamp string, shopID int, amount float64) models.PriceRecord {
	t.Helper()
	rec, err := models.NewPriceRecord(timestamp, models.ShopRef{ID: shopID, Name: "Steam"}, &models.Money{Amount: amount, Currency: "USD"}, nil, nil)
	if err != nil {
		t.Fatalf("build record: %v", err)
	}
	return rec
}

func TestParseDateRange(t *testing.T) {
	rng, err := ParseDateRange("", "")
	if err != nil {
		t.Fatalf("ParseDateRange: %v", err)
	}
	if rng.Start != nil || rng.End != nil {
		t.Errorf("empty bounds must stay open: %+v", rng)
	}

	rng, err = ParseDateRange("2023-01-01", "2023-12-31T23:59:59Z")
	if err != nil {
		t.Fatalf("ParseDateRange: %v", err)
	}
	if rng.Start == nil || rng.End == nil {
		t.Fatalf("bounds not parsed: %+v", rng)
	}
	if rng.Start.Format(time.RFC3339) != "2023-01-01T00:00:00Z" {
		t.Errorf("unexpected start: %s", rng.Start)
	}

	for _, bad := range [][2]string{{"nonsense", ""}, {"", "nonsense"}, {"2023-99-01", "2023-12-31"}} {
		_, err := ParseDateRange(bad[0], bad[1])
		if !errors.Is(err, ErrBadDate) {
			t.Errorf("ParseDateRange(%q, %q): expected ErrBadDate, got %v", bad[0], bad[1], err)
		}
	}
}

func TestFilterPricesInclusiveBounds(t *testing.T) {
	records := []models.PriceRecord{
		mustRecord(t, "2023-06-30T00:00:00Z", 61, 5),
		mustRecord(t, "2023-06-15T12:00:00Z", 61, 4),
		mustRecord(t, "2023-06-01T00:00:00Z", 61, 3),
		mustRecord(t, "2023-05-31T23:59:59Z", 61, 2),
	}

	rng, err := ParseDateRange("2023-06-01T00:00:00Z", "2023-06-30T00:00:00Z")
	if err != nil {
		t.Fatalf("ParseDateRange: %v", err)
	}

	got := FilterPrices(records, rng, nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	// Records exactly at either bound are kept.
	if !got[0].Timestamp.Equal(records[0].Timestamp) || !got[2].Timestamp.Equal(records[2].Timestamp) {
		t.Errorf("boundary records missing: %+v", got)
	}
}

func TestFilterPricesInvertedRange(t *testing.T) {
	records := []models.PriceRecord{mustRecord(t, "2023-06-15T00:00:00Z", 61, 5)}

	rng, err := ParseDateRange("2023-07-01", "2023-06-01")
	if err != nil {
		t.Fatalf("ParseDateRange: %v", err)
	}

	got := FilterPrices(records, rng, nil)
	if got == nil {
		t.Fatal("inverted range must return an empty slice, not nil")
	}
	if len(got) != 0 {
		t.Errorf("inverted range must match nothing, got %d", len(got))
	}
}

func TestFilterPricesShopSet(t *testing.T) {
	records := []models.PriceRecord{
		mustRecord(t, "2023-06-03T00:00:00Z", 61, 5),
		mustRecord(t, "2023-06-02T00:00:00Z", 35, 4),
		mustRecord(t, "2023-06-01T00:00:00Z", 61, 3),
	}

	got := FilterPrices(records, DateRange{}, []int{61})
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	for _, rec := range got {
		if rec.ShopID != 61 {
			t.Errorf("unexpected shop: %+v", rec)
		}
	}

	all := FilterPrices(records, DateRange{}, nil)
	if len(all) != 3 {
		t.Errorf("empty shop set must keep everything, got %d", len(all))
	}
}

func TestFilterPricesPreservesInput(t *testing.T) {
	records := []models.PriceRecord{
		mustRecord(t, "2023-06-03T00:00:00Z", 61, 5),
		mustRecord(t, "2023-06-02T00:00:00Z", 35, 4),
	}
	snapshot := append([]models.PriceRecord(nil), records...)

	FilterPrices(records, DateRange{}, []int{35})

	if !reflect.DeepEqual(records, snapshot) {
		t.Error("input slice was mutated")
	}
}

func TestFilterObservations(t *testing.T) {
	obs := []models.IndicatorObservation{
		{Country: "USA", Year: 2020, IndicatorCode: "PCPIPCH", Value: 1.2},
		{Country: "BRA", Year: 2020, IndicatorCode: "PCPIPCH", Value: 3.2},
		{Country: "DEU", Year: 2020, IndicatorCode: "PCPIPCH", Value: 0.5},
	}

	got := FilterObservations(obs, []string{"usa", " bra "})
	if len(got) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(got))
	}
	if got[0].Country != "USA" || got[1].Country != "BRA" {
		t.Errorf("unexpected order or countries: %+v", got)
	}

	all := FilterObservations(obs, nil)
	if len(all) != 3 {
		t.Errorf("empty country list must keep everything, got %d", len(all))
	}
}
