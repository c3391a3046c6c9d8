package processor

import (
	"errors"
	"testing"
	"time"

	"dealflow/models"
)

func TestNormalizeDealList(t *testing.T) {
	payload := []byte(`[
		{"timestamp":"2023-06-29T13:05:09Z","shop":{"id":61,"name":"Steam"},"deal":{"price":{"amount":3.39,"currency":"USD"},"regular":{"amount":16.99,"currency":"USD"},"cut":80}},
		{"timestamp":"not-a-date","shop":{"id":61,"name":"Steam"},"deal":{"cut":10}},
		"garbage",
		{"timestamp":"2023-01-15","shop":{"id":35,"name":"GOG"}}
	]`)

	set, err := NewAdapter().Normalize(payload, models.ShapeDealList, "")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if len(set.Prices) != 2 {
		t.Fatalf("expected 2 records, got %d", len(set.Prices))
	}
	if set.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", set.Dropped)
	}

	first := set.Prices[0]
	if first.ShopID != 61 || first.ShopName != "Steam" {
		t.Errorf("unexpected shop: %+v", first)
	}
	if first.PriceAmount == nil || *first.PriceAmount != 3.39 || first.PriceCurrency != "USD" {
		t.Errorf("unexpected price: %+v", first)
	}
	if first.DiscountCut != 80 {
		t.Errorf("unexpected cut: %d", first.DiscountCut)
	}

	second := set.Prices[1]
	if second.PriceAmount != nil || second.RegularAmount != nil {
		t.Errorf("expected absent amounts, got %+v", second)
	}
	if second.DiscountCut != 0 {
		t.Errorf("expected default cut, got %d", second.DiscountCut)
	}
	if second.Timestamp.Format(time.RFC3339) != "2023-01-15T00:00:00Z" {
		t.Errorf("unexpected timestamp: %s", second.Timestamp)
	}
}

func TestNormalizeShopMapPreservesOrder(t *testing.T) {
	payload := []byte(`{
		"61": {
			"2023-06-29T13:05:09Z": {"price": {"amount": 3.39, "currency": "USD"}, "cut": 80},
			"2023-01-10T00:00:00Z": {"price": 9.99}
		},
		"Fanatical": {
			"2023-03-05": 4.25,
			"bad-date": {"price": 1.0}
		}
	}`)

	set, err := NewAdapter().Normalize(payload, models.ShapeShopMap, "")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if len(set.Prices) != 3 {
		t.Fatalf("expected 3 records, got %d", len(set.Prices))
	}
	if set.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", set.Dropped)
	}

	if set.Prices[0].ShopID != 61 || set.Prices[1].ShopID != 61 {
		t.Errorf("expected shop 61 first: %+v", set.Prices[:2])
	}
	if !set.Prices[0].Timestamp.After(set.Prices[1].Timestamp) {
		t.Errorf("document order not preserved: %v then %v", set.Prices[0].Timestamp, set.Prices[1].Timestamp)
	}
	if set.Prices[0].PriceAmount == nil || *set.Prices[0].PriceAmount != 3.39 {
		t.Errorf("unexpected first price: %+v", set.Prices[0])
	}
	if set.Prices[0].DiscountCut != 80 {
		t.Errorf("unexpected cut: %d", set.Prices[0].DiscountCut)
	}

	third := set.Prices[2]
	if third.ShopName != "Fanatical" || third.ShopID != 0 {
		t.Errorf("non-numeric shop key not mapped to name: %+v", third)
	}
	if third.PriceAmount == nil || *third.PriceAmount != 4.25 || third.PriceCurrency != "" {
		t.Errorf("bare number not mapped to price amount: %+v", third)
	}
}

func TestNormalizeShopMapLenientFields(t *testing.T) {
	payload := []byte(`{"12": {"2024-02-01": {"note": "no price here"}}}`)

	set, err := NewAdapter().Normalize(payload, models.ShapeShopMap, "")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(set.Prices) != 1 {
		t.Fatalf("expected 1 record, got %d", len(set.Prices))
	}
	rec := set.Prices[0]
	if rec.PriceAmount != nil || rec.RegularAmount != nil || rec.DiscountCut != 0 {
		t.Errorf("missing fields must degrade to absent: %+v", rec)
	}
}

func TestNormalizeIndicatorTable(t *testing.T) {
	payload := []byte(`[
		{"@REF_AREA":"US","@TIME_PERIOD":"2018","@OBS_VALUE":"2.4","@INDICATOR":"PCPIPCH"},
		{"ref_area":"BRA","time_period":2019,"obs_value":3.7},
		{"country":"DEU","year":"2020.0","value":1.9},
		{"@REF_AREA":"FRA","@TIME_PERIOD":"soon","@OBS_VALUE":"1.0"},
		{"@REF_AREA":"","@TIME_PERIOD":"2021","@OBS_VALUE":"1.0"}
	]`)

	set, err := NewAdapter().Normalize(payload, models.ShapeIndicatorTable, "NGDPDPC")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if len(set.Observations) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(set.Observations))
	}
	if set.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", set.Dropped)
	}

	first := set.Observations[0]
	if first.Country != "US" || first.Year != 2018 || first.IndicatorCode != "PCPIPCH" || first.Value != 2.4 {
		t.Errorf("unexpected first observation: %+v", first)
	}

	second := set.Observations[1]
	if second.IndicatorCode != "NGDPDPC" {
		t.Errorf("fallback code not applied: %+v", second)
	}

	third := set.Observations[2]
	if third.Country != "DEU" || third.Year != 2020 || third.Value != 1.9 {
		t.Errorf("plain column aliases not resolved: %+v", third)
	}
}

func TestNormalizeUnknownShape(t *testing.T) {
	_, err := NewAdapter().Normalize([]byte(`42`), models.ShapeUnknown, "")
	if !errors.Is(err, models.ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
}

func TestNormalizeTimestampsAlwaysValid(t *testing.T) {
	adapter := NewAdapter()

	payloads := map[models.PayloadShape][]byte{
		models.ShapeDealList: []byte(`[
			{"timestamp":"2023-06-29T13:05:09Z","shop":{"id":61}},
			{"timestamp":"","shop":{"id":61}},
			{"shop":{"id":61}}
		]`),
		models.ShapeShopMap: []byte(`{"61":{"2023-06-29":{"price":1},"":{"price":2}}}`),
	}

	for shape, payload := range payloads {
		set, err := adapter.Normalize(payload, shape, "")
		if err != nil {
			t.Fatalf("%s: %v", shape, err)
		}
		for _, rec := range set.Prices {
			if rec.Timestamp.IsZero() {
				t.Errorf("%s: record with zero timestamp: %+v", shape, rec)
			}
		}
	}
}
