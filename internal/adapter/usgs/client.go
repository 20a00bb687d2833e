// Package usgs fetches earthquake summary feeds from the USGS GeoJSON API.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/observability"
)

// maxErrorBody caps how much of a non-2xx body is kept for logs.
const maxErrorBody = 512

// StatusError reports a non-2xx response from the feed endpoint.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("usgs feed error: status %d from %s: %s", e.Code, e.URL, e.Body)
}

// Client implements feed.Fetcher against the USGS summary feeds.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client. An empty baseURL selects the public USGS
// feeds; timeout bounds each request end to end.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = domain.DefaultFeedBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchFeed downloads and decodes the feed for the given window. The request
// is bound to ctx, so cancelling ctx aborts it.
func (c *Client) FetchFeed(ctx context.Context, w domain.TimeWindow) (domain.FeatureCollection, error) {
	endpoint := w.Endpoint(c.baseURL)
	if endpoint == "" {
		return domain.FeatureCollection{}, fmt.Errorf("no endpoint for time window %q", w)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	defer func() {
		c.metrics.UpstreamDuration.WithLabelValues(string(w)).Observe(time.Since(start).Seconds())
	}()

	c.logger.Debug("fetching feed", "window", w, "url", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("%s feed request: %w", w, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.FeatureCollection{}, &StatusError{Code: resp.StatusCode, URL: endpoint, Body: string(body)}
	}

	var coll domain.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&coll); err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("decode %s feed: %w", w, err)
	}
	return coll, nil
}
