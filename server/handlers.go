package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"dealflow/models"
	"dealflow/processor"
)

// registerRoutes wires the serving surface. The shop route is registered
// before the game-id route so its static segment wins the match.
func (s *Server) registerRoutes() {
	s.app.Get("/", s.getRoot)
	s.app.Get("/healthz", s.getHealth)
	s.app.Get("/prices", s.getPrices)
	s.app.Get("/prices/shop/:shop_id", s.getShopPrices)
	s.app.Get("/prices/:game_id", s.getGamePrices)
	s.app.Get("/economic-indicators", s.getIndicators)
	s.app.Get("/economic-indicators/:country", s.getIndicatorCountry)
	s.app.Get("/economic-indicators/:country/:year", s.getIndicatorCountryYear)
}

func (s *Server) getRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "welcome to the game price history API",
		"endpoints": []string{
			"/prices - full price history document",
			"/prices/{game_id} - price history for one game, filterable by start_date/end_date",
			"/prices/shop/{shop_id} - price entries for one shop",
			"/economic-indicators - pivoted economic indicator document",
			"/economic-indicators/{country} - indicator series for one country",
			"/economic-indicators/{country}/{year} - indicators for one country and year",
		},
	})
}

func (s *Server) getHealth(c *fiber.Ctx) error {
	_, hasIndicators := s.store.Indicators()
	return c.JSON(fiber.Map{
		"status":         "ok",
		"loaded_at":      s.store.LoadedAt().Format(time.RFC3339),
		"countries":      s.store.Countries(),
		"has_indicators": hasIndicators,
	})
}

func (s *Server) getPrices(c *fiber.Ctx) error {
	country := c.Query("country")
	doc, ok := s.store.PriceDocument(country)
	if !ok {
		return priceNotFound(c, country)
	}
	return c.JSON(doc)
}

func (s *Server) getGamePrices(c *fiber.Ctx) error {
	gameID := c.Params("game_id")
	country := c.Query("country")

	doc, ok := s.store.PriceDocument(country)
	if !ok {
		return priceNotFound(c, country)
	}
	if doc.GameID != gameID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("no price history for game %s", gameID),
		})
	}

	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	rng, err := processor.ParseDateRange(startDate, endDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	out := models.PriceDocument{
		GameID:      doc.GameID,
		Country:     doc.Country,
		LastUpdated: doc.LastUpdated,
		StartDate:   startDate,
		EndDate:     endDate,
		Prices:      filterEntries(doc.Prices, rng),
	}
	return c.JSON(out)
}

func (s *Server) getShopPrices(c *fiber.Ctx) error {
	shopID, err := strconv.Atoi(c.Params("shop_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid shop ID %q", c.Params("shop_id")),
		})
	}

	doc, ok := s.store.PriceDocument(c.Query("country"))
	if !ok {
		return priceNotFound(c, c.Query("country"))
	}

	entries := doc.ShopEntries(shopID)
	if len(entries) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("no prices found for shop ID %d", shopID),
		})
	}
	return c.JSON(entries)
}

func (s *Server) getIndicators(c *fiber.Ctx) error {
	doc, ok := s.store.Indicators()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "economic indicator data not found",
		})
	}
	return c.JSON(doc)
}

func (s *Server) getIndicatorCountry(c *fiber.Ctx) error {
	doc, ok := s.store.Indicators()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "economic indicator data not found",
		})
	}

	country, years, ok := doc.Country(c.Params("country"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("no indicator data for country %s", c.Params("country")),
		})
	}
	return c.JSON(fiber.Map{"country": country, "data": years})
}

func (s *Server) getIndicatorCountryYear(c *fiber.Ctx) error {
	doc, ok := s.store.Indicators()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "economic indicator data not found",
		})
	}

	year, err := strconv.Atoi(c.Params("year"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid year %q", c.Params("year")),
		})
	}

	country, pivoted, ok := doc.CountryYear(c.Params("country"), year)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("no indicator data for country %s in %d", c.Params("country"), year),
		})
	}
	return c.JSON(fiber.Map{"country": country, "data": pivoted})
}

func priceNotFound(c *fiber.Ctx, country string) error {
	msg := "price data not found"
	if country != "" {
		msg = fmt.Sprintf("no price data for country %s", country)
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

// filterEntries applies the inclusive date window to exported entries.
// Entries whose timestamp no longer parses are dropped. The result is
// empty, not nil, when nothing matches.
func filterEntries(entries []models.PriceEntry, rng processor.DateRange) []models.PriceEntry {
	out := make([]models.PriceEntry, 0, len(entries))
	if rng.Inverted() {
		return out
	}
	for _, entry := range entries {
		ts, err := models.ParseTimestamp(entry.Timestamp)
		if err != nil {
			continue
		}
		if rng.Contains(ts) {
			out = append(out, entry)
		}
	}
	return out
}
