package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds each upstream call; the fetch is a network
// operation and the natural timeout boundary of a proxied request.
const DefaultTimeout = 5 * time.Second

// Client talks to the rate-capped rates upstream. It performs no retries;
// the caller's periodic refresh cycle is the retry mechanism.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an upstream client for the given base URL and API key.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Latest fetches the latest rates snapshot.
func (c *Client) Latest(ctx context.Context) (int, json.RawMessage, error) {
	return c.get(ctx, "/latest", nil)
}

// History fetches one page of history for a symbol.
func (c *Client) History(ctx context.Context, id string, limit, page int) (int, json.RawMessage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("page", strconv.Itoa(page))

	return c.get(ctx, "/symbols/"+url.PathEscape(id)+"/history", query)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (int, json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	c.logger.Debug("upstream call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	return resp.StatusCode, body, nil
}
