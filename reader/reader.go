package reader

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// UpstreamError describes a failed upstream request. Requests are never
// retried; the error is logged and surfaced to the caller.
type UpstreamError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed with status %d: %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Source, e.Message)
}

// NewHTTPClient builds the pooled-transport client shared by the upstream
// readers.
func NewHTTPClient(timeoutSeconds int) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(timeoutSeconds) * time.Second,
	}
}

// BodySnippet trims a response body down to something safe to embed in an
// error message.
func BodySnippet(body []byte) string {
	const max = 200

	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
