package imf

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

const source = "imf"

// Client talks to the IMF SDMX JSON data service.
type Client struct {
	cfg     config.IMFConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewClient(cfg config.IMFConfig) *Client {
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

	c.log.WithComponent("imf_reader").WithFields(logger.Fields{
		"base_url":            cfg.BaseURL,
		"database":            cfg.Database,
		"timeout_seconds":     cfg.TimeoutSeconds,
		"requests_per_second": cfg.RequestsPerSecond,
	}).Info("imf client initialized")

	return c
}

// SeriesRequest selects one indicator's annual series for a set of
// countries.
type SeriesRequest struct {
	Indicator string
	Countries []string
	StartYear int
	EndYear   int
}

// IndicatorSeries fetches one indicator and flattens the SDMX compact
// nesting into a long-format JSON row array. Series attributes are merged
// onto every observation row, so each row carries the @REF_AREA,
// @INDICATOR, @TIME_PERIOD and @OBS_VALUE columns.
func (c *Client) IndicatorSeries(ctx context.Context, req SeriesRequest) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log := c.log.WithComponent("imf_reader").WithFields(logger.Fields{
		"indicator": req.Indicator,
		"database":  c.cfg.Database,
	})

	key := fmt.Sprintf("A.%s.%s", strings.Join(req.Countries, "+"), req.Indicator)
	endpoint := fmt.Sprintf("%s/CompactData/%s/%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Database), key)

	params := url.Values{}
	if req.StartYear > 0 {
		params.Set("startPeriod", strconv.Itoa(req.StartYear))
	}
	if req.EndYear > 0 {
		params.Set("endPeriod", strconv.Itoa(req.EndYear))
	}
	reqURL := endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.WithError(err).Error("request failed")
		return nil, &reader.UpstreamError{Source: source, Message: err.Error()}
	}
	defer resp.Body.Close()

	logger.LogPerformanceEntry(log, "imf_reader", "api_request", time.Since(start), logger.Fields{
		"indicator": req.Indicator,
		"status":    resp.StatusCode,
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

	rows, err := flattenCompact(body)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten %s response: %w", req.Indicator, err)
	}
	if len(rows) == 0 {
		log.Warn("response contained no series")
	}

	out, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}

	logger.IncrementIndicatorRead(len(body))
	return out, nil
}
