package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"dealflow/logger"
	"dealflow/models"
)

// Column-name variants seen across upstream indicator payloads. Lookup is
// exact match first, then case-insensitive.
var (
	timeColumns      = []string{"TIME_PERIOD", "@TIME_PERIOD", "time_period", "year"}
	areaColumns      = []string{"REF_AREA", "@REF_AREA", "ref_area", "country"}
	valueColumns     = []string{"OBS_VALUE", "@OBS_VALUE", "obs_value", "value"}
	indicatorColumns = []string{"INDICATOR", "@INDICATOR", "indicator", "indicator_code"}
)

// RecordSet is the adapter output: canonical records of exactly one kind,
// tagged with the shape they were decoded from, plus the count of rows that
// failed per-record validation and were dropped.
type RecordSet struct {
	Shape        models.PayloadShape
	Prices       []models.PriceRecord
	Observations []models.IndicatorObservation
	Dropped      int
}

// Adapter converts raw upstream payloads into canonical records. Malformed
// individual entries are dropped and logged; an unrecognized payload shape is
// the only hard failure.
type Adapter struct {
	log     *logger.Log
	dropped int64
}

func NewAdapter() *Adapter {
	return &Adapter{log: logger.GetLogger()}
}

// Dropped returns the cumulative count of rows this adapter has dropped.
func (a *Adapter) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

// Normalize decodes a payload according to its detected shape. fallbackCode
// fills the indicator code for table rows that do not carry one.
func (a *Adapter) Normalize(payload []byte, shape models.PayloadShape, fallbackCode string) (*RecordSet, error) {
	log := a.log.WithComponent("adapter").WithFields(logger.Fields{
		"shape":     shape.String(),
		"bytes":     len(payload),
		"operation": "normalize",
	})

	set := &RecordSet{Shape: shape}
	var err error

	switch shape {
	case models.ShapeDealList:
		set.Prices, set.Dropped, err = a.normalizeDealList(payload)
	case models.ShapeShopMap:
		set.Prices, set.Dropped, err = a.normalizeShopMap(payload)
	case models.ShapeIndicatorTable:
		set.Observations, set.Dropped, err = a.normalizeIndicatorTable(payload, fallbackCode)
	default:
		return nil, models.ErrUnknownShape
	}
	if err != nil {
		return nil, err
	}

	atomic.AddInt64(&a.dropped, int64(set.Dropped))
	if set.Dropped > 0 {
		logger.IncrementDropped(set.Dropped)
	}

	logger.LogDataFlowEntry(log, "raw_payload", "canonical_records",
		len(set.Prices)+len(set.Observations), shape.String())

	return set, nil
}

type dealWire struct {
	Timestamp string         `json:"timestamp"`
	Shop      models.ShopRef `json:"shop"`
	Deal      *struct {
		Price   *models.Money `json:"price"`
		Regular *models.Money `json:"regular"`
		Cut     *int          `json:"cut"`
	} `json:"deal"`
}

func (a *Adapter) normalizeDealList(payload []byte) ([]models.PriceRecord, int, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(payload, &elements); err != nil {
		return nil, 0, fmt.Errorf("failed to decode deal list: %w", err)
	}

	log := a.log.WithComponent("adapter")
	records := make([]models.PriceRecord, 0, len(elements))
	dropped := 0

	for i, element := range elements {
		var wire dealWire
		if err := json.Unmarshal(element, &wire); err != nil {
			dropped++
			log.WithError(err).WithFields(logger.Fields{"index": i}).Warn("failed to decode deal entry")
			continue
		}

		var price, regular *models.Money
		var cut *int
		if wire.Deal != nil {
			price = wire.Deal.Price
			regular = wire.Deal.Regular
			cut = wire.Deal.Cut
		}

		rec, err := models.NewPriceRecord(wire.Timestamp, wire.Shop, price, regular, cut)
		if err != nil {
			dropped++
			log.WithError(err).WithFields(logger.Fields{
				"index":         i,
				"raw_timestamp": wire.Timestamp,
			}).Warn("dropping deal entry")
			continue
		}
		records = append(records, rec)
	}

	return records, dropped, nil
}

func (a *Adapter) normalizeShopMap(payload []byte) ([]models.PriceRecord, int, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode shop map: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, 0, fmt.Errorf("failed to decode shop map: expected object, got %v", tok)
	}

	var records []models.PriceRecord
	dropped := 0

	// Walk keys through the decoder so upstream document order is preserved.
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, dropped, fmt.Errorf("failed to decode shop map key: %w", err)
		}
		shopKey, _ := keyTok.(string)

		var shopVal json.RawMessage
		if err := dec.Decode(&shopVal); err != nil {
			return nil, dropped, fmt.Errorf("failed to decode shop %q: %w", shopKey, err)
		}

		recs, drops := a.shopRecords(shopKey, shopVal)
		records = append(records, recs...)
		dropped += drops
	}

	if records == nil {
		records = []models.PriceRecord{}
	}
	return records, dropped, nil
}

func (a *Adapter) shopRecords(shopKey string, raw json.RawMessage) ([]models.PriceRecord, int) {
	log := a.log.WithComponent("adapter").WithFields(logger.Fields{"shop": shopKey})

	shop := models.ShopRef{}
	if id, err := strconv.Atoi(strings.TrimSpace(shopKey)); err == nil {
		shop.ID = id
	} else {
		shop.Name = shopKey
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		log.WithError(err).Warn("failed to decode shop entry")
		return nil, 1
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		log.Warn("shop entry is not an object, skipping")
		return nil, 1
	}

	var records []models.PriceRecord
	dropped := 0

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			log.WithError(err).Warn("failed to decode date key")
			return records, dropped + 1
		}
		dateKey, _ := keyTok.(string)

		var dealVal json.RawMessage
		if err := dec.Decode(&dealVal); err != nil {
			log.WithError(err).WithFields(logger.Fields{"date": dateKey}).Warn("failed to decode deal value")
			return records, dropped + 1
		}

		price, regular, cut := parseShopMapDeal(dealVal)
		rec, err := models.NewPriceRecord(dateKey, shop, price, regular, cut)
		if err != nil {
			dropped++
			log.WithError(err).WithFields(logger.Fields{"raw_timestamp": dateKey}).Warn("dropping shop map entry")
			continue
		}
		records = append(records, rec)
	}

	return records, dropped
}

// parseShopMapDeal maps the legacy per-date value leniently: an object with
// price/regular/cut subkeys, or a bare number taken as the price amount.
// Missing fields degrade to nil rather than dropping the record.
func parseShopMapDeal(raw json.RawMessage) (price, regular *models.Money, cut *int) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		price = parseMoneyValue(fields["price"])
		regular = parseMoneyValue(fields["regular"])
		if rawCut, ok := fields["cut"]; ok {
			var c int
			if err := json.Unmarshal(rawCut, &c); err == nil {
				cut = &c
			}
		}
		return price, regular, cut
	}

	if m := parseMoneyValue(raw); m != nil {
		return m, nil, nil
	}
	return nil, nil, nil
}

func parseMoneyValue(raw json.RawMessage) *models.Money {
	if len(raw) == 0 {
		return nil
	}

	var amount float64
	if err := json.Unmarshal(raw, &amount); err == nil {
		return &models.Money{Amount: amount}
	}

	var money models.Money
	if err := json.Unmarshal(raw, &money); err == nil {
		return &money
	}
	return nil
}

func (a *Adapter) normalizeIndicatorTable(payload []byte, fallbackCode string) ([]models.IndicatorObservation, int, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var rows []map[string]interface{}
	if err := dec.Decode(&rows); err != nil {
		return nil, 0, fmt.Errorf("failed to decode indicator table: %w", err)
	}

	log := a.log.WithComponent("adapter")
	observations := make([]models.IndicatorObservation, 0, len(rows))
	dropped := 0

	for i, row := range rows {
		country, _ := lookupColumn(row, areaColumns)
		year, _ := lookupColumn(row, timeColumns)
		value, _ := lookupColumn(row, valueColumns)

		code := fallbackCode
		if v, ok := lookupColumn(row, indicatorColumns); ok {
			if s, ok := v.(string); ok && s != "" {
				code = s
			}
		}

		countryStr, _ := country.(string)
		obs, err := models.NewIndicatorObservation(countryStr, code, year, value)
		if err != nil {
			dropped++
			log.WithError(err).WithFields(logger.Fields{
				"index":     i,
				"indicator": code,
			}).Warn("dropping indicator row")
			continue
		}
		observations = append(observations, obs)
	}

	return observations, dropped, nil
}

// lookupColumn resolves a row value by any of the known column aliases,
// preferring an exact key match over a case-insensitive one.
func lookupColumn(row map[string]interface{}, names []string) (interface{}, bool) {
	for _, name := range names {
		if v, ok := row[name]; ok {
			return v, true
		}
	}
	for _, name := range names {
		for k, v := range row {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
	}
	return nil, false
}
