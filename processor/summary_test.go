package processor

import (
	"errors"
	"testing"

	"dealflow/models"
)

func TestSummarizeDecrease(t *testing.T) {
	records := []models.PriceRecord{
		mustRecord(t, "2023-06-30T00:00:00Z", 61, 80),
		mustRecord(t, "2023-06-15T00:00:00Z", 61, 95),
		mustRecord(t, "2023-06-01T00:00:00Z", 61, 100),
	}

	summary, err := Summarize(records)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if summary.TotalRecords != 3 {
		t.Errorf("unexpected total: %d", summary.TotalRecords)
	}
	if *summary.Latest.PriceAmount != 80 || *summary.Oldest.PriceAmount != 100 {
		t.Errorf("endpoints wrong: latest=%+v oldest=%+v", summary.Latest, summary.Oldest)
	}
	if summary.PercentChange == nil || *summary.PercentChange != 20.0 {
		t.Fatalf("expected 20.0 percent change, got %v", summary.PercentChange)
	}
	if summary.Direction != "decrease" {
		t.Errorf("expected decrease, got %q", summary.Direction)
	}
}

func TestSummarizeIncrease(t *testing.T) {
	records := []models.PriceRecord{
		mustRecord(t, "2023-06-30T00:00:00Z", 61, 120),
		mustRecord(t, "2023-06-01T00:00:00Z", 61, 100),
	}

	summary, err := Summarize(records)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.PercentChange == nil || *summary.PercentChange != 20.0 {
		t.Fatalf("expected 20.0 percent change, got %v", summary.PercentChange)
	}
	if summary.Direction != "increase" {
		t.Errorf("expected increase, got %q", summary.Direction)
	}
}

func TestSummarizeSingleRecord(t *testing.T) {
	summary, err := Summarize([]models.PriceRecord{mustRecord(t, "2023-06-01T00:00:00Z", 61, 10)})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.PercentChange != nil || summary.Direction != "" {
		t.Errorf("single record must not produce a change: %+v", summary)
	}
}

func TestSummarizeUndefinedEndpoints(t *testing.T) {
	noPrice, err := models.NewPriceRecord("2023-06-30T00:00:00Z", models.ShopRef{ID: 61}, nil, nil, nil)
	if err != nil {
		t.Fatalf("build record: %v", err)
	}

	cases := [][]models.PriceRecord{
		{noPrice, mustRecord(t, "2023-06-01T00:00:00Z", 61, 100)},
		{mustRecord(t, "2023-06-30T00:00:00Z", 61, 0), mustRecord(t, "2023-06-01T00:00:00Z", 61, 100)},
		{mustRecord(t, "2023-06-30T00:00:00Z", 61, 80), mustRecord(t, "2023-06-01T00:00:00Z", 61, 0)},
	}

	for i, records := range cases {
		summary, err := Summarize(records)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if summary.PercentChange != nil || summary.Direction != "" {
			t.Errorf("case %d: change must be absent: %+v", i, summary)
		}
		if summary.TotalRecords != 2 {
			t.Errorf("case %d: total still reported: %d", i, summary.TotalRecords)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if _, err := Summarize(nil); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}
