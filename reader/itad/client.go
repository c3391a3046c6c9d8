package itad

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dealflow/config"
	"dealflow/logger"
	"dealflow/reader"
)

const source = "itad"

// Client talks to the IsThereAnyDeal REST API. Every request passes the
// rate limiter before it is sent.
type Client struct {
	cfg     config.ITADConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewClient(cfg config.ITADConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("itad api key is required; set ITAD_API_KEY or source.itad.api_key")
	}

	burst := cfg.BurstSize
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		cfg:     cfg,
		http:    reader.NewHTTPClient(cfg.TimeoutSeconds),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		log:     logger.GetLogger(),
	}

	c.log.WithComponent("itad_reader").WithFields(logger.Fields{
		"base_url":            cfg.BaseURL,
		"timeout_seconds":     cfg.TimeoutSeconds,
		"requests_per_second": cfg.RequestsPerSecond,
	}).Info("itad client initialized")

	return c, nil
}

// HistoryRequest selects one game's price history.
type HistoryRequest struct {
	GameID  string
	Country string
	Since   string
	ShopIDs []int
}

// GameHistory fetches the raw price history payload for one game in one
// country. The payload shape is detected downstream, not here.
func (c *Client) GameHistory(ctx context.Context, req HistoryRequest) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("id", req.GameID)
	if req.Since != "" {
		params.Set("since", req.Since)
	}
	if len(req.ShopIDs) > 0 {
		params.Set("shops", joinShopIDs(req.ShopIDs))
	}
	if req.Country != "" {
		params.Set("country", req.Country)
	}

	body, err := c.get(ctx, "/games/history/v2", params, logger.Fields{
		"game_id": req.GameID,
		"country": req.Country,
	})
	if err != nil {
		return nil, err
	}

	logger.IncrementPriceRead(len(body))
	return body, nil
}

// SearchResult is one row of the game search response.
type SearchResult struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Type   string `json:"type,omitempty"`
	Mature bool   `json:"mature"`
}

// SearchGames looks up games by title.
func (c *Client) SearchGames(ctx context.Context, title string, limit int) ([]SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("title", title)
	params.Set("results", strconv.Itoa(limit))

	body, err := c.get(ctx, "/games/search/v1", params, logger.Fields{"title": title})
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, fields logger.Fields) ([]byte, error) {
	log := c.log.WithComponent("itad_reader").WithFields(fields)

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	reqURL := endpoint + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.WithError(err).Error("request failed")
		return nil, &reader.UpstreamError{Source: source, Message: err.Error()}
	}
	defer resp.Body.Close()

	logger.LogPerformanceEntry(log, "itad_reader", "api_request", time.Since(start), logger.Fields{
		"path":   path,
		"status": resp.StatusCode,
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &reader.UpstreamError{Source: source, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		log.WithFields(logger.Fields{"status": resp.StatusCode}).Error("unexpected status")
		return nil, &reader.UpstreamError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Message:    reader.BodySnippet(body),
		}
	}

	return body, nil
}

func joinShopIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
