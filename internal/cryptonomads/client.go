// Package cryptonomads is a client for the cryptonomads.org side-event listings
// and its Luma event proxy. It fetches server-rendered pages for scraping and
// calls the JSON endpoints the site's frontend uses.
package cryptonomads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/event-scraper/event-scraper/internal/telemetry"
)

// DefaultBaseURL is the public site.
const DefaultBaseURL = "https://cryptonomads.org"

const (
	lumaEventPath = "/api/luma/get_event"
	eventsPath    = "/api/airtable/events"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Client talks to cryptonomads.org
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// Limiter spaces outbound requests. Nil disables pacing.
	Limiter *rate.Limiter
}

// NewClient creates a client for baseURL. requestsPerMinute <= 0 disables pacing.
func NewClient(baseURL string, timeout time.Duration, requestsPerMinute int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if requestsPerMinute > 0 {
		c.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return c
}

func (c *Client) do(ctx context.Context, operation string, req *http.Request) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s request not sent: %w", operation, err)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		telemetry.UpstreamRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	telemetry.UpstreamRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) postJSON(ctx context.Context, operation, path string, payload interface{}, headers map[string]string) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	body, err := c.do(ctx, operation, req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s returned invalid JSON", operation)
	}
	return json.RawMessage(body), nil
}

// GetLumaEvent fetches a Luma event through the site's proxy, sending the
// same headers a browser on the site would.
func (c *Client) GetLumaEvent(ctx context.Context, lumaEventID string) (json.RawMessage, error) {
	headers := map[string]string{
		"accept":          "*/*",
		"accept-language": "en-US,en;q=0.9",
		"content-type":    "application/json",
		"referer":         DefaultBaseURL + "/",
		"user-agent":      userAgent,
	}
	return c.postJSON(ctx, "get_event", lumaEventPath, map[string]string{"lumaEventId": lumaEventID}, headers)
}

// FindSideEventBySlug looks up one side event of a series.
func (c *Client) FindSideEventBySlug(ctx context.Context, seriesSlug, slug string) (json.RawMessage, error) {
	payload := map[string]string{
		"queryType":  "findSideEventBySlug",
		"seriesSlug": seriesSlug,
		"slug":       slug,
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "*/*",
	}
	return c.postJSON(ctx, "find_side_event", eventsPath, payload, headers)
}

// fetchPage GETs a site page and returns the HTML.
func (c *Client) fetchPage(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create page request: %w", err)
	}
	req.Header.Set("accept", "text/html,application/xhtml+xml")
	req.Header.Set("user-agent", userAgent)

	return c.do(ctx, "page", req)
}
