// Package plex adapts a Plex Media Server's REST API to engine.Tool,
// grounded in integrations/plex_client.py and bot/workers/plex.py's
// library-browsing surface, and bot/workers/plex_search.py's filtered
// search. Plex's XML-first API is requested as JSON via the Accept
// header, same convention as tmdb/radarr/sonarr's httpclient usage.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/httpclient"
)

// Config holds Plex connection settings.
type Config struct {
	BaseURL string
	Token   string
}

// Client wraps the subset of the Plex Media Server API the tool
// adapters use.
type Client struct {
	http *httpclient.Client
}

// NewClient builds a Plex client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("plex: token is required")
	}
	hc, err := httpclient.New("plex", httpclient.Config{
		BaseURL:    cfg.BaseURL,
		AuthHeader: "X-Plex-Token",
		AuthValue:  cfg.Token,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

// LibrarySections calls GET /library/sections.
func (c *Client) LibrarySections(ctx context.Context) (json.RawMessage, error) {
	return c.http.Get(ctx, "/library/sections", nil)
}

// RecentlyAdded calls GET /library/sections/{id}/recentlyAdded (or the
// global /library/recentlyAdded when sectionID is empty).
func (c *Client) RecentlyAdded(ctx context.Context, sectionID string, limit int) (json.RawMessage, error) {
	path := "/library/recentlyAdded"
	if sectionID != "" {
		path = "/library/sections/" + sectionID + "/recentlyAdded"
	}
	return c.http.Get(ctx, path, limitQuery(limit))
}

// OnDeck calls GET /library/onDeck.
func (c *Client) OnDeck(ctx context.Context, limit int) (json.RawMessage, error) {
	return c.http.Get(ctx, "/library/onDeck", limitQuery(limit))
}

// SearchMovies calls GET /library/sections/{id}/all with type=1 (movie)
// and free-text/title filters, mirroring
// plex_search.py's search_movies_filtered argument shape.
func (c *Client) SearchMovies(ctx context.Context, sectionID, query string, limit int) (json.RawMessage, error) {
	q := limitQuery(limit)
	q.Set("type", "1")
	if query != "" {
		q.Set("title<", query) // Plex contains-filter syntax
	}
	path := "/library/all"
	if sectionID != "" {
		path = "/library/sections/" + sectionID + "/all"
	}
	return c.http.Get(ctx, path, q)
}

// Collections calls GET /library/sections/{id}/collections.
func (c *Client) Collections(ctx context.Context, sectionID string, limit int) (json.RawMessage, error) {
	return c.http.Get(ctx, "/library/sections/"+sectionID+"/collections", limitQuery(limit))
}

// Playlists calls GET /playlists.
func (c *Client) Playlists(ctx context.Context, limit int) (json.RawMessage, error) {
	return c.http.Get(ctx, "/playlists", limitQuery(limit))
}

// ItemDetails calls GET /library/metadata/{ratingKey}.
func (c *Client) ItemDetails(ctx context.Context, ratingKey int) (json.RawMessage, error) {
	return c.http.Get(ctx, fmt.Sprintf("/library/metadata/%d", ratingKey), nil)
}

// SimilarItems calls GET /library/metadata/{ratingKey}/similar.
func (c *Client) SimilarItems(ctx context.Context, ratingKey, limit int) (json.RawMessage, error) {
	return c.http.Get(ctx, fmt.Sprintf("/library/metadata/%d/similar", ratingKey), limitQuery(limit))
}

// SetRating calls PUT /:/rate, Plex's rating-write endpoint
// (bot/workers/plex.py set_rating). This is plex's one write-style
// tool: it mutates user/library state rather than reading it.
func (c *Client) SetRating(ctx context.Context, ratingKey, rating int) (json.RawMessage, error) {
	q := url.Values{
		"key":      []string{strconv.Itoa(ratingKey)},
		"identifier": []string{"com.plexapp.plugins.library"},
		"rating":   []string{strconv.Itoa(rating)},
	}
	return c.http.PutJSON(ctx, "/:/rate?"+q.Encode(), nil)
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("X-Plex-Container-Size", strconv.Itoa(limit))
	}
	return q
}
