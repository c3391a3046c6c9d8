package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2023-06-29T13:05:09Z", want: "2023-06-29T13:05:09Z"},
		{in: "2023-06-29T13:05:09+00:00", want: "2023-06-29T13:05:09Z"},
		{in: "2023-06-29T10:05:09-03:00", want: "2023-06-29T13:05:09Z"},
		{in: "2023-06-29T13:05:09", want: "2023-06-29T13:05:09Z"},
		{in: "2023-06-29", want: "2023-06-29T00:00:00Z"},
		{in: "", wantErr: true},
		{in: "not a date", wantErr: true},
		{in: "2023-13-45T00:00:00Z", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimestamp(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", tc.in, err)
			continue
		}
		if got.Format(time.RFC3339) != tc.want {
			t.Errorf("ParseTimestamp(%q) = %s, want %s", tc.in, got.Format(time.RFC3339), tc.want)
		}
	}
}

func TestNewPriceRecord(t *testing.T) {
	price := &Money{Amount: 3.39, Currency: "USD"}
	regular := &Money{Amount: 16.99, Currency: "USD"}
	cut := 80

	rec, err := NewPriceRecord("2023-06-29T13:05:09Z", ShopRef{ID: 61, Name: "Steam"}, price, regular, &cut)
	if err != nil {
		t.Fatalf("NewPriceRecord: %v", err)
	}
	if rec.ShopID != 61 || rec.ShopName != "Steam" {
		t.Errorf("unexpected shop: %d %q", rec.ShopID, rec.ShopName)
	}
	if rec.PriceAmount == nil || *rec.PriceAmount != 3.39 || rec.PriceCurrency != "USD" {
		t.Errorf("unexpected price: %+v", rec)
	}
	if rec.RegularAmount == nil || *rec.RegularAmount != 16.99 {
		t.Errorf("unexpected regular: %+v", rec)
	}
	if rec.DiscountCut != 80 {
		t.Errorf("unexpected cut: %d", rec.DiscountCut)
	}
}

func TestNewPriceRecordDefaults(t *testing.T) {
	rec, err := NewPriceRecord("2023-06-29T13:05:09Z", ShopRef{ID: 35, Name: "GOG"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewPriceRecord: %v", err)
	}
	if rec.PriceAmount != nil || rec.RegularAmount != nil {
		t.Errorf("expected absent amounts, got %+v", rec)
	}
	if rec.PriceCurrency != "" || rec.RegularCurrency != "" {
		t.Errorf("expected empty currencies, got %+v", rec)
	}
	if rec.DiscountCut != 0 {
		t.Errorf("expected default cut 0, got %d", rec.DiscountCut)
	}
}

func TestNewPriceRecordRejectsBadTimestamp(t *testing.T) {
	for _, ts := range []string{"", "yesterday", "2023-02-30T00:00:00Z"} {
		if _, err := NewPriceRecord(ts, ShopRef{ID: 61}, nil, nil, nil); err == nil {
			t.Errorf("NewPriceRecord(%q): expected error", ts)
		}
	}
}

func TestPriceRecordEntryRoundTrip(t *testing.T) {
	price := &Money{Amount: 9.99, Currency: "BRL"}
	cut := 50
	rec, err := NewPriceRecord("2024-01-02T03:04:05Z", ShopRef{ID: 61, Name: "Steam"}, price, nil, &cut)
	if err != nil {
		t.Fatalf("NewPriceRecord: %v", err)
	}

	entry := rec.Entry()
	if entry.Timestamp != "2024-01-02T03:04:05Z" {
		t.Errorf("unexpected entry timestamp: %s", entry.Timestamp)
	}
	if entry.Shop.ID != 61 || entry.Shop.Name != "Steam" {
		t.Errorf("unexpected entry shop: %+v", entry.Shop)
	}
	if entry.Deal.Price == nil || entry.Deal.Price.Amount != 9.99 || entry.Deal.Price.Currency != "BRL" {
		t.Errorf("unexpected entry price: %+v", entry.Deal.Price)
	}
	if entry.Deal.Regular != nil {
		t.Errorf("expected absent regular, got %+v", entry.Deal.Regular)
	}
	if entry.Deal.Cut != 50 {
		t.Errorf("unexpected entry cut: %d", entry.Deal.Cut)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
	var decoded PriceEntry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if decoded.Deal.Regular != nil {
		t.Errorf("absent regular should stay absent, got %+v", decoded.Deal.Regular)
	}
}

func TestNewIndicatorObservation(t *testing.T) {
	obs, err := NewIndicatorObservation("BRA", "NGDPDPC", "2020", "8717.186")
	if err != nil {
		t.Fatalf("NewIndicatorObservation: %v", err)
	}
	if obs.Country != "BRA" || obs.Year != 2020 || obs.IndicatorCode != "NGDPDPC" {
		t.Errorf("unexpected observation: %+v", obs)
	}
	if obs.Value != 8717.186 {
		t.Errorf("unexpected value: %v", obs.Value)
	}
}

func TestNewIndicatorObservationCoercions(t *testing.T) {
	cases := []struct {
		name    string
		year    interface{}
		value   interface{}
		wantErr bool
	}{
		{name: "float year", year: 2020.0, value: 1.5},
		{name: "int year", year: 2020, value: 1.5},
		{name: "json number", year: json.Number("2020"), value: json.Number("1.5")},
		{name: "string float year", year: "2020.0", value: "1.5"},
		{name: "fractional year", year: 2020.5, value: 1.5, wantErr: true},
		{name: "bad year", year: "soon", value: 1.5, wantErr: true},
		{name: "bad value", year: 2020, value: "n/a", wantErr: true},
		{name: "nil year", year: nil, value: 1.5, wantErr: true},
		{name: "nil value", year: 2020, value: nil, wantErr: true},
	}

	for _, tc := range cases {
		_, err := NewIndicatorObservation("USA", "PCPIPCH", tc.year, tc.value)
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: %v", tc.name, err)
		}
	}
}

func TestNewIndicatorObservationRequiresIdentity(t *testing.T) {
	if _, err := NewIndicatorObservation("", "PCPIPCH", 2020, 1.0); err == nil {
		t.Error("expected error for missing country")
	}
	if _, err := NewIndicatorObservation("USA", "", 2020, 1.0); err == nil {
		t.Error("expected error for missing indicator")
	}
}

func TestDetectShape(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    PayloadShape
	}{
		{
			name:    "deal list",
			payload: `[{"timestamp":"2023-06-29T13:05:09Z","shop":{"id":61,"name":"Steam"},"deal":{"cut":80}}]`,
			want:    ShapeDealList,
		},
		{
			name:    "empty array",
			payload: `[]`,
			want:    ShapeDealList,
		},
		{
			name:    "shop map",
			payload: `{"61":{"2023-06-29T13:05:09Z":{"price":3.39}}}`,
			want:    ShapeShopMap,
		},
		{
			name:    "indicator table plain columns",
			payload: `[{"country":"BRA","year":2020,"indicator":"NGDPDPC","value":100}]`,
			want:    ShapeIndicatorTable,
		},
		{
			name:    "indicator table sdmx columns",
			payload: `[{"@REF_AREA":"US","@TIME_PERIOD":"2018","@OBS_VALUE":"2.4"}]`,
			want:    ShapeIndicatorTable,
		},
		{
			name:    "scalar",
			payload: `42`,
			want:    ShapeUnknown,
		},
		{
			name:    "string",
			payload: `"nope"`,
			want:    ShapeUnknown,
		},
		{
			name:    "empty input",
			payload: ``,
			want:    ShapeUnknown,
		},
		{
			name:    "truncated array",
			payload: `[{"timestamp":`,
			want:    ShapeUnknown,
		},
	}

	for _, tc := range cases {
		if got := DetectShape([]byte(tc.payload)); got != tc.want {
			t.Errorf("%s: DetectShape = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestIndicatorDatasetLookups(t *testing.T) {
	ds := &IndicatorDataset{Series: map[string][]PivotedYear{
		"BRA": {
			{Period: 2019, PeriodType: "year", Indicators: map[string]float64{"NGDPDPC": 8845.0}},
			{Period: 2020, PeriodType: "year", Indicators: map[string]float64{"NGDPDPC": 8717.2, "PCPIPCH": 3.2}},
		},
		"USA": {
			{Period: 2020, PeriodType: "year", Indicators: map[string]float64{"NGDPDPC": 63528.6}},
		},
	}}

	if got := ds.Countries(); len(got) != 2 || got[0] != "BRA" || got[1] != "USA" {
		t.Errorf("unexpected countries: %v", got)
	}
	if got := ds.IndicatorCodes(); len(got) != 2 || got[0] != "NGDPDPC" || got[1] != "PCPIPCH" {
		t.Errorf("unexpected codes: %v", got)
	}
	start, end, ok := ds.YearRange()
	if !ok || start != 2019 || end != 2020 {
		t.Errorf("unexpected year range: %d-%d ok=%v", start, end, ok)
	}
	if got := ds.TotalRecords(); got != 3 {
		t.Errorf("unexpected total records: %d", got)
	}

	years, ok := ds.Country("bra")
	if !ok || len(years) != 2 {
		t.Fatalf("case-insensitive lookup failed: ok=%v len=%d", ok, len(years))
	}
	if _, ok := ds.Country("ARG"); ok {
		t.Error("absent country must not resolve")
	}

	year, ok := ds.CountryYear("Bra", 2020)
	if !ok || year.Indicators["PCPIPCH"] != 3.2 {
		t.Errorf("CountryYear lookup failed: ok=%v year=%+v", ok, year)
	}
	if _, ok := ds.CountryYear("BRA", 1999); ok {
		t.Error("absent year must not resolve")
	}
}

func TestIndicatorDocumentLookups(t *testing.T) {
	doc := &IndicatorDocument{
		Data: map[string][]PivotedYear{
			"DEU": {{Period: 2021, PeriodType: "year", Indicators: map[string]float64{"LUR": 3.6}}},
		},
	}

	key, years, ok := doc.Country("deu")
	if !ok || key != "DEU" || len(years) != 1 {
		t.Errorf("document lookup failed: key=%q ok=%v", key, ok)
	}
	if _, _, ok := doc.Country("JPN"); ok {
		t.Error("absent country must not resolve")
	}
	if _, _, ok := doc.CountryYear("DEU", 1990); ok {
		t.Error("absent year must not resolve")
	}
}

func TestPriceDocumentShopEntries(t *testing.T) {
	doc := &PriceDocument{Prices: []PriceEntry{
		{Timestamp: "2024-01-03T00:00:00Z", Shop: ShopRef{ID: 61, Name: "Steam"}},
		{Timestamp: "2024-01-02T00:00:00Z", Shop: ShopRef{ID: 35, Name: "GOG"}},
		{Timestamp: "2024-01-01T00:00:00Z", Shop: ShopRef{ID: 61, Name: "Steam"}},
	}}

	entries := doc.ShopEntries(61)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Timestamp != "2024-01-03T00:00:00Z" || entries[1].Timestamp != "2024-01-01T00:00:00Z" {
		t.Errorf("shop entries out of order: %+v", entries)
	}
	if got := doc.ShopEntries(999); len(got) != 0 {
		t.Errorf("expected no entries for unknown shop, got %d", len(got))
	}
}
