// Package httpclient is the shared REST plumbing behind the tmdb,
// plex, radarr, and sonarr tool adapters: a small JSON-over-HTTP client
// with a response-size cap and pluggable auth header, generalizing the
// single-service client pattern to four backing services.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout          = 10 * time.Second
	defaultMaxResponseBytes = int64(1 << 20) // 1MB
)

// Config configures a Client.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	MaxResponseBytes int64
	HTTPClient       *http.Client

	// AuthHeader/AuthValue set one static header on every request
	// (e.g. "X-Api-Key"/key for Radarr/Sonarr, "X-Plex-Token"/token for
	// Plex). Leave both empty for services authenticated via query
	// parameter instead (TMDb).
	AuthHeader string
	AuthValue  string
}

// Client is a minimal JSON REST client shared by the media tool adapters.
type Client struct {
	BaseURL    string
	client     *http.Client
	maxBytes   int64
	authHeader string
	authValue  string
}

// New validates cfg and builds a Client.
func New(serviceName string, cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base_url is required", serviceName)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed == nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return nil, fmt.Errorf("%s: invalid base_url", serviceName)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%s: base_url scheme must be http or https", serviceName)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	return &Client{
		BaseURL:    baseURL,
		client:     client,
		maxBytes:   maxBytes,
		authHeader: cfg.AuthHeader,
		authValue:  cfg.AuthValue,
	}, nil
}

// Get issues a GET request with the given query parameters and decodes
// the JSON response body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, endpoint, nil)
}

// PostJSON issues a POST request with a JSON-encoded body.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.withBody(ctx, http.MethodPost, c.BaseURL+path, body)
}

// PutJSON issues a PUT request with a JSON-encoded body.
func (c *Client) PutJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.withBody(ctx, http.MethodPut, c.BaseURL+path, body)
}

// Delete issues a DELETE request with the given query parameters.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.doJSON(ctx, http.MethodDelete, endpoint, nil)
}

func (c *Client) withBody(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	return c.doJSON(ctx, method, endpoint, reader)
}

// AsResult decodes a JSON response body into the map[string]any shape
// engine.Tool.Execute returns. A top-level JSON array is wrapped as
// {"results": [...]} so every tool result is an object.
func AsResult(raw json.RawMessage) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj, nil
	}
	var arr []any
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return map[string]any{"results": arr}, nil
}

// StatusError is returned when the upstream service responds with a
// non-2xx status; tool adapters inspect it to detect service-specific
// "already exists" conditions before surfacing a plain error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body io.Reader) (json.RawMessage, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("httpclient: not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authHeader != "" {
		req.Header.Set(c.authHeader, c.authValue)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	limit := c.maxBytes
	if limit <= 0 {
		limit = defaultMaxResponseBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response too large")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if len(data) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(data), nil
}
