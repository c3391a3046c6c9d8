package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dealflow/logger"
	"dealflow/models"
)

const (
	pricePrefix    = "price_history"
	indicatorsFile = "economic_indicators.json"
)

// Store holds the artifacts of the most recent collection run, loaded from
// the export directory. It is safe for concurrent use; Load swaps the
// entire contents atomically.
type Store struct {
	mu             sync.RWMutex
	dir            string
	defaultCountry string
	prices         map[string]*models.PriceDocument
	indicators     *models.IndicatorDocument
	loadedAt       time.Time
	log            *logger.Log
}

// NewStore creates an empty store over the given export directory. Price
// lookups without an explicit country fall back to defaultCountry.
func NewStore(dir, defaultCountry string) *Store {
	return &Store{
		dir:            dir,
		defaultCountry: strings.ToUpper(defaultCountry),
		prices:         make(map[string]*models.PriceDocument),
		log:            logger.GetLogger(),
	}
}

// Load reads every recognized artifact from the export directory. Files
// that fail to parse are logged and skipped; a missing directory leaves
// the store empty so the serving surface answers with 404s.
func (s *Store) Load() error {
	log := s.log.WithComponent("store").WithFields(logger.Fields{"dir": s.dir})

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.WithError(err).Warn("export directory not readable, serving empty store")
		s.mu.Lock()
		s.prices = make(map[string]*models.PriceDocument)
		s.indicators = nil
		s.loadedAt = time.Now().UTC()
		s.mu.Unlock()
		return nil
	}

	prices := make(map[string]*models.PriceDocument)
	var indicators *models.IndicatorDocument

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(s.dir, name)

		switch {
		case name == indicatorsFile:
			var doc models.IndicatorDocument
			if err := readJSON(path, &doc); err != nil {
				log.WithError(err).WithFields(logger.Fields{"file": name}).Warn("skipping malformed indicator artifact")
				continue
			}
			indicators = &doc
		case strings.HasPrefix(name, pricePrefix) && strings.HasSuffix(name, ".json"):
			var doc models.PriceDocument
			if err := readJSON(path, &doc); err != nil {
				log.WithError(err).WithFields(logger.Fields{"file": name}).Warn("skipping malformed price artifact")
				continue
			}
			prices[priceCountryKey(name, &doc)] = &doc
		}
	}

	s.mu.Lock()
	s.prices = prices
	s.indicators = indicators
	s.loadedAt = time.Now().UTC()
	s.mu.Unlock()

	log.WithFields(logger.Fields{
		"price_documents": len(prices),
		"has_indicators":  indicators != nil,
	}).Info("store loaded")
	return nil
}

// priceCountryKey derives the lookup key for a price document, preferring
// the country embedded in the document and falling back to the filename
// (price_history_US.json). A bare price_history.json keys to "".
func priceCountryKey(name string, doc *models.PriceDocument) string {
	if doc.Country != "" {
		return strings.ToUpper(doc.Country)
	}
	base := strings.TrimSuffix(name, ".json")
	base = strings.TrimPrefix(base, pricePrefix)
	return strings.ToUpper(strings.Trim(base, "_"))
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// PriceDocument resolves the price document for a country,
// case-insensitively. An empty country means the configured default, or
// the only loaded document when exactly one exists.
func (s *Store) PriceDocument(country string) (*models.PriceDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := strings.ToUpper(strings.TrimSpace(country))
	if key == "" {
		if doc, ok := s.prices[s.defaultCountry]; ok {
			return doc, true
		}
		if len(s.prices) == 1 {
			for _, doc := range s.prices {
				return doc, true
			}
		}
		return nil, false
	}

	doc, ok := s.prices[key]
	return doc, ok
}

// Indicators returns the loaded indicator document, if any.
func (s *Store) Indicators() (*models.IndicatorDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indicators, s.indicators != nil
}

// Countries lists the countries with a loaded price document, sorted.
func (s *Store) Countries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.prices))
	for country := range s.prices {
		out = append(out, country)
	}
	sort.Strings(out)
	return out
}

// LoadedAt reports when the store last loaded artifacts.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
