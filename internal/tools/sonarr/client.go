// Package sonarr adapts Sonarr's v3 REST API to engine.Tool, grounded
// in integrations/sonarr_client.py and bot/workers/sonarr.py's tolerant
// argument handling, mirroring internal/tools/radarr's shape for the
// series/episode domain.
package sonarr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/httpclient"
)

// Config holds Sonarr connection settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client wraps the subset of Sonarr's v3 API the tool adapters use.
type Client struct {
	http *httpclient.Client
}

// NewClient builds a Sonarr client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sonarr: api key is required")
	}
	hc, err := httpclient.New("sonarr", httpclient.Config{
		BaseURL:    cfg.BaseURL,
		AuthHeader: "X-Api-Key",
		AuthValue:  cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

// Lookup calls GET /api/v3/series/lookup?term=.
func (c *Client) Lookup(ctx context.Context, term string) (json.RawMessage, error) {
	return c.http.Get(ctx, "/api/v3/series/lookup", url.Values{"term": []string{term}})
}

// AddSeriesInput is the add_series request shape
// (integrations/sonarr_client.py add_series).
type AddSeriesInput struct {
	TVDbID           int    `json:"tvdbId"`
	QualityProfileID int    `json:"qualityProfileId"`
	RootFolderPath   string `json:"rootFolderPath"`
	Monitored        bool   `json:"monitored"`
	SeasonFolder     bool   `json:"seasonFolder"`
	AddOptions       struct {
		SearchForMissingEpisodes bool  `json:"searchForMissingEpisodes"`
		Monitor                  string `json:"monitor,omitempty"`
		SeasonsToMonitor         []int  `json:"seasonsToMonitor,omitempty"`
	} `json:"addOptions"`
}

// AddSeries calls POST /api/v3/series.
func (c *Client) AddSeries(ctx context.Context, in AddSeriesInput) (json.RawMessage, error) {
	return c.http.PostJSON(ctx, "/api/v3/series", in)
}

// GetSeries calls GET /api/v3/series or /api/v3/series/{id}.
func (c *Client) GetSeries(ctx context.Context, seriesID int) (json.RawMessage, error) {
	if seriesID > 0 {
		return c.http.Get(ctx, fmt.Sprintf("/api/v3/series/%d", seriesID), nil)
	}
	return c.http.Get(ctx, "/api/v3/series", nil)
}

// GetEpisodes calls GET /api/v3/episode?seriesId=.
func (c *Client) GetEpisodes(ctx context.Context, seriesID int) (json.RawMessage, error) {
	return c.http.Get(ctx, "/api/v3/episode", url.Values{"seriesId": []string{strconv.Itoa(seriesID)}})
}

// MonitorEpisodes calls PUT /api/v3/episode/monitor.
func (c *Client) MonitorEpisodes(ctx context.Context, episodeIDs []int, monitored bool) (json.RawMessage, error) {
	return c.http.PutJSON(ctx, "/api/v3/episode/monitor", map[string]any{
		"episodeIds": episodeIDs,
		"monitored":  monitored,
	})
}

// SearchSeries calls POST /api/v3/command {name: SeriesSearch}.
func (c *Client) SearchSeries(ctx context.Context, seriesID int) (json.RawMessage, error) {
	return c.http.PostJSON(ctx, "/api/v3/command", map[string]any{
		"name":     "SeriesSearch",
		"seriesId": seriesID,
	})
}

// SearchEpisode calls POST /api/v3/command {name: EpisodeSearch}, used
// by the episode-fallback sub-agent when a season-pack search fails
// and individual episodes are retried.
func (c *Client) SearchEpisode(ctx context.Context, episodeID int) (json.RawMessage, error) {
	return c.http.PostJSON(ctx, "/api/v3/command", map[string]any{
		"name":       "EpisodeSearch",
		"episodeIds": []int{episodeID},
	})
}

// GetQueue calls GET /api/v3/queue.
func (c *Client) GetQueue(ctx context.Context) (json.RawMessage, error) {
	return c.http.Get(ctx, "/api/v3/queue", nil)
}

// QualityProfiles calls GET /api/v3/qualityprofile.
func (c *Client) QualityProfiles(ctx context.Context) (json.RawMessage, error) {
	return c.http.Get(ctx, "/api/v3/qualityprofile", nil)
}

// RootFolders calls GET /api/v3/rootfolder.
func (c *Client) RootFolders(ctx context.Context) (json.RawMessage, error) {
	return c.http.Get(ctx, "/api/v3/rootfolder", nil)
}

// IsAlreadyExists reports whether err is a Sonarr validation error
// indicating the series is already present, mirroring radarr.IsAlreadyExists
// for the "already exists" upgrade.
func IsAlreadyExists(err error) bool {
	statusErr, ok := err.(*httpclient.StatusError)
	if !ok || statusErr.StatusCode != 400 {
		return false
	}
	body := strings.ToLower(statusErr.Body)
	return strings.Contains(body, "already") && (strings.Contains(body, "exist") || strings.Contains(body, "added"))
}
