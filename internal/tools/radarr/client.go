// Package radarr adapts Radarr's v3 REST API to engine.Tool, grounded
// in integrations/radarr_client.py and bot/workers/radarr.py's tolerant
// argument handling and "already exists" success upgrade.
package radarr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/httpclient"
)

// Config holds Radarr connection settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client wraps the subset of Radarr's v3 API the tool adapters use.
type Client struct {
	http *httpclient.Client
}

// NewClient builds a Radarr client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("radarr: api key is required")
	}
	hc, err := httpclient.New("radarr", httpclient.Config{
		BaseURL:    cfg.BaseURL,
		AuthHeader: "X-Api-Key",
		AuthValue:  cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

// Lookup calls GET /api/v3/movie/lookup?term=.
func (c *Client) Lookup(ctx context.Context, term string) (json.RawMessage, error) {
	return c.http.Get(ctx, "/api/v3/movie/lookup", url.Values{"term": []string{term}})
}

// GetMovies calls GET /api/v3/movie or /api/v3/movie/{id}.
func (c *Client) GetMovies(ctx context.Context, movieID int) (json.RawMessage, error) {
	if movieID > 0 {
		return c.http.Get(ctx, fmt.Sprintf("/api/v3/movie/%d", movieID), nil)
	}
	return c.http.Get(ctx, "/api/v3/movie", nil)
}

// AddMovieInput is the add_movie request shape (integrations/radarr_client.py add_movie).
type AddMovieInput struct {
	TMDbID            int    `json:"tmdbId"`
	QualityProfileID  int    `json:"qualityProfileId"`
	RootFolderPath    string `json:"rootFolderPath"`
	Monitored         bool   `json:"monitored"`
	MinimumAvailability string `json:"minimumAvailability"`
	AddOptions        struct {
		SearchForMovie bool `json:"searchForMovie"`
	} `json:"addOptions"`
}

// AddMovie calls POST /api/v3/movie.
func (c *Client) AddMovie(ctx context.Context, in AddMovieInput) (json.RawMessage, error) {
	return c.http.PostJSON(ctx, "/api/v3/movie", in)
}

// QualityProfiles calls GET /api/v3/qualityprofile.
func (c *Client) QualityProfiles(ctx context.Context) (json.RawMessage, error) {
	return c.http.Get(ctx, "/api/v3/qualityprofile", nil)
}

// RootFolders calls GET /api/v3/rootfolder.
func (c *Client) RootFolders(ctx context.Context) (json.RawMessage, error) {
	return c.http.Get(ctx, "/api/v3/rootfolder", nil)
}

// SearchMovie calls POST /api/v3/command {name: MoviesSearch}.
func (c *Client) SearchMovie(ctx context.Context, movieID int) (json.RawMessage, error) {
	return c.http.PostJSON(ctx, "/api/v3/command", map[string]any{
		"name":     "MoviesSearch",
		"movieIds": []int{movieID},
	})
}

// IsAlreadyExists reports whether err is a Radarr validation error
// indicating the movie is already present, used to upgrade an
// "already exists" error into a successful outcome.
func IsAlreadyExists(err error) bool {
	var statusErr *httpclient.StatusError
	if !asStatusError(err, &statusErr) {
		return false
	}
	if statusErr.StatusCode != 400 {
		return false
	}
	body := strings.ToLower(statusErr.Body)
	return strings.Contains(body, "already") && (strings.Contains(body, "exist") || strings.Contains(body, "added"))
}

func asStatusError(err error, target **httpclient.StatusError) bool {
	se, ok := err.(*httpclient.StatusError)
	if !ok {
		return false
	}
	*target = se
	return true
}
