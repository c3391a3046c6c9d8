package models

import (
	"fmt"
	"time"
)

// timestampLayouts are tried in order when parsing upstream timestamps.
// RFC 3339 covers the "Z" suffix and numeric offsets; the remaining layouts
// accept naive datetimes and bare dates, both assumed UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 instant as delivered by the upstream
// sources. Naive inputs are interpreted as UTC. The returned time is always
// in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// ShopRef identifies the storefront a deal was observed at.
type ShopRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Money is an amount in a single currency.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// PriceRecord is the canonical representation of one observed price point.
// Records arrive from upstream most-recent-first and that ordering is
// preserved through the pipeline. A record is immutable once built.
type PriceRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	ShopID          int       `json:"shop_id"`
	ShopName        string    `json:"shop_name"`
	PriceAmount     *float64  `json:"price_amount,omitempty"`
	PriceCurrency   string    `json:"price_currency,omitempty"`
	RegularAmount   *float64  `json:"regular_amount,omitempty"`
	RegularCurrency string    `json:"regular_currency,omitempty"`
	DiscountCut     int       `json:"cut"`
}

// NewPriceRecord is the single validating constructor for PriceRecord.
// The timestamp is required and must parse; everything else is optional.
// Absent money values stay nil, an absent cut defaults to 0.
func NewPriceRecord(timestamp string, shop ShopRef, price, regular *Money, cut *int) (PriceRecord, error) {
	ts, err := ParseTimestamp(timestamp)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("price record: %w", err)
	}

	rec := PriceRecord{
		Timestamp: ts,
		ShopID:    shop.ID,
		ShopName:  shop.Name,
	}
	if price != nil {
		amount := price.Amount
		rec.PriceAmount = &amount
		rec.PriceCurrency = price.Currency
	}
	if regular != nil {
		amount := regular.Amount
		rec.RegularAmount = &amount
		rec.RegularCurrency = regular.Currency
	}
	if cut != nil {
		rec.DiscountCut = *cut
	}
	return rec, nil
}

// Shop returns the record's storefront reference.
func (r PriceRecord) Shop() ShopRef {
	return ShopRef{ID: r.ShopID, Name: r.ShopName}
}

// Entry converts the record back into the nested wire form used by the
// exported price-history document.
func (r PriceRecord) Entry() PriceEntry {
	entry := PriceEntry{
		Timestamp: r.Timestamp.Format(time.RFC3339),
		Shop:      r.Shop(),
		Deal:      DealInfo{Cut: r.DiscountCut},
	}
	if r.PriceAmount != nil {
		entry.Deal.Price = &Money{Amount: *r.PriceAmount, Currency: r.PriceCurrency}
	}
	if r.RegularAmount != nil {
		entry.Deal.Regular = &Money{Amount: *r.RegularAmount, Currency: r.RegularCurrency}
	}
	return entry
}

// DealInfo is the deal portion of an exported price entry.
type DealInfo struct {
	Price   *Money `json:"price,omitempty"`
	Regular *Money `json:"regular,omitempty"`
	Cut     int    `json:"cut"`
}

// PriceEntry is one element of the exported price-history document,
// mirroring the upstream deal-event shape.
type PriceEntry struct {
	Timestamp string   `json:"timestamp"`
	Shop      ShopRef  `json:"shop"`
	Deal      DealInfo `json:"deal"`
}

// PriceDocument is the exported price-history artifact for one game in one
// country. Each collection run regenerates it wholesale.
type PriceDocument struct {
	GameID      string       `json:"game_id"`
	Country     string       `json:"country,omitempty"`
	LastUpdated string       `json:"last_updated"`
	StartDate   string       `json:"start_date,omitempty"`
	EndDate     string       `json:"end_date,omitempty"`
	Prices      []PriceEntry `json:"prices"`
}

// ShopEntries returns the document entries belonging to one shop,
// preserving document order.
func (d *PriceDocument) ShopEntries(shopID int) []PriceEntry {
	var out []PriceEntry
	for _, entry := range d.Prices {
		if entry.Shop.ID == shopID {
			out = append(out, entry)
		}
	}
	return out
}
