// Package tmdb adapts The Movie Database's read-only search API to
// engine.Tool, grounded in the original bot's tmdb_search/tmdb_search_tv
// tool surface (bot/agent_prompt.py) and the homeassistant client's
// HTTP-tool shape (NewClient/Execute).
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/httpclient"
)

// Config holds TMDb connection settings.
type Config struct {
	BaseURL string // defaults to https://api.themoviedb.org/3
	APIKey  string
}

// Client wraps the TMDb v3 REST API. Auth is a query parameter
// (api_key), not a header, so it does not use httpclient's AuthHeader.
type Client struct {
	http   *httpclient.Client
	apiKey string
}

// NewClient builds a TMDb client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tmdb: api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.themoviedb.org/3"
	}
	hc, err := httpclient.New("tmdb", httpclient.Config{BaseURL: base})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, apiKey: cfg.APIKey}, nil
}

func (c *Client) query(extra url.Values) url.Values {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	for k, v := range extra {
		q[k] = v
	}
	return q
}

// SearchMovie calls GET /search/movie.
func (c *Client) SearchMovie(ctx context.Context, query string, year int) (json.RawMessage, error) {
	q := url.Values{"query": []string{query}}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	return c.http.Get(ctx, "/search/movie", c.query(q))
}

// SearchTV calls GET /search/tv.
func (c *Client) SearchTV(ctx context.Context, query string, firstAirDateYear int) (json.RawMessage, error) {
	q := url.Values{"query": []string{query}}
	if firstAirDateYear > 0 {
		q.Set("first_air_date_year", strconv.Itoa(firstAirDateYear))
	}
	return c.http.Get(ctx, "/search/tv", c.query(q))
}

// SearchMulti calls GET /search/multi (movies, TV, and people together).
func (c *Client) SearchMulti(ctx context.Context, query string) (json.RawMessage, error) {
	q := url.Values{"query": []string{query}}
	return c.http.Get(ctx, "/search/multi", c.query(q))
}

// MovieDetails calls GET /movie/{id}.
func (c *Client) MovieDetails(ctx context.Context, id int) (json.RawMessage, error) {
	return c.http.Get(ctx, fmt.Sprintf("/movie/%d", id), c.query(nil))
}

// TVDetails calls GET /tv/{id}.
func (c *Client) TVDetails(ctx context.Context, id int) (json.RawMessage, error) {
	return c.http.Get(ctx, fmt.Sprintf("/tv/%d", id), c.query(nil))
}

// Recommendations calls GET /movie/{id}/recommendations.
func (c *Client) Recommendations(ctx context.Context, movieID int) (json.RawMessage, error) {
	return c.http.Get(ctx, fmt.Sprintf("/movie/%d/recommendations", movieID), c.query(nil))
}
