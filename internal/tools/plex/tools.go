package plex

import (
	"context"
	"fmt"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/httpclient"
)

// LibrarySectionsTool implements plex_library_sections.
type LibrarySectionsTool struct{ client *Client }

func NewLibrarySectionsTool(client *Client) *LibrarySectionsTool {
	return &LibrarySectionsTool{client: client}
}

func (t *LibrarySectionsTool) Name() string        { return "plex_library_sections" }
func (t *LibrarySectionsTool) Description() string { return "List the Plex server's library sections (movies, TV, music, ...)." }
func (t *LibrarySectionsTool) Schema() string      { return `{"type": "object", "properties": {}}` }

func (t *LibrarySectionsTool) Execute(ctx context.Context, _ map[string]any) (map[string]any, error) {
	raw, err := t.client.LibrarySections(ctx)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// RecentlyAddedTool implements plex_recently_added.
type RecentlyAddedTool struct{ client *Client }

func NewRecentlyAddedTool(client *Client) *RecentlyAddedTool { return &RecentlyAddedTool{client: client} }

func (t *RecentlyAddedTool) Name() string        { return "plex_recently_added" }
func (t *RecentlyAddedTool) Description() string { return "List recently added items across the Plex library, or within one section." }
func (t *RecentlyAddedTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "section_id": {"type": "string", "description": "Optional Plex library section key"},
    "limit": {"type": "integer", "description": "Max items to return", "default": 20}
  }
}`
}

func (t *RecentlyAddedTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	sectionID, _ := args["section_id"].(string)
	limit := intArg(args["limit"])
	if limit <= 0 {
		limit = 20
	}
	raw, err := t.client.RecentlyAdded(ctx, sectionID, limit)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// OnDeckTool implements plex_on_deck.
type OnDeckTool struct{ client *Client }

func NewOnDeckTool(client *Client) *OnDeckTool { return &OnDeckTool{client: client} }

func (t *OnDeckTool) Name() string        { return "plex_on_deck" }
func (t *OnDeckTool) Description() string { return "List items the household is partway through watching." }
func (t *OnDeckTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "limit": {"type": "integer", "description": "Max items to return", "default": 20}
  }
}`
}

func (t *OnDeckTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	limit := intArg(args["limit"])
	if limit <= 0 {
		limit = 20
	}
	raw, err := t.client.OnDeck(ctx, limit)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// SearchTool implements plex_search (bot/workers/plex_search.py search:
// "Search movies with advanced filters and sort options").
type SearchTool struct{ client *Client }

func NewSearchTool(client *Client) *SearchTool { return &SearchTool{client: client} }

func (t *SearchTool) Name() string        { return "plex_search" }
func (t *SearchTool) Description() string { return "Search the Plex movie library by title substring, optionally scoped to a section." }
func (t *SearchTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Title substring to search for"},
    "section_id": {"type": "string", "description": "Optional Plex library section key"},
    "limit": {"type": "integer", "description": "Max items to return", "default": 20}
  }
}`
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	sectionID, _ := args["section_id"].(string)
	limit := intArg(args["limit"])
	if limit <= 0 {
		limit = 20
	}
	raw, err := t.client.SearchMovies(ctx, sectionID, query, limit)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// CollectionsTool implements plex_collections.
type CollectionsTool struct{ client *Client }

func NewCollectionsTool(client *Client) *CollectionsTool { return &CollectionsTool{client: client} }

func (t *CollectionsTool) Name() string        { return "plex_collections" }
func (t *CollectionsTool) Description() string { return "List collections defined within a Plex library section." }
func (t *CollectionsTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "section_id": {"type": "string", "description": "Plex library section key"},
    "limit": {"type": "integer", "description": "Max items to return", "default": 20}
  },
  "required": ["section_id"]
}`
}

func (t *CollectionsTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	sectionID, _ := args["section_id"].(string)
	if sectionID == "" {
		return nil, fmt.Errorf("plex_collections: section_id is required")
	}
	limit := intArg(args["limit"])
	if limit <= 0 {
		limit = 20
	}
	raw, err := t.client.Collections(ctx, sectionID, limit)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// PlaylistsTool implements plex_playlists.
type PlaylistsTool struct{ client *Client }

func NewPlaylistsTool(client *Client) *PlaylistsTool { return &PlaylistsTool{client: client} }

func (t *PlaylistsTool) Name() string        { return "plex_playlists" }
func (t *PlaylistsTool) Description() string { return "List the Plex server's playlists." }
func (t *PlaylistsTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "limit": {"type": "integer", "description": "Max items to return", "default": 20}
  }
}`
}

func (t *PlaylistsTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	limit := intArg(args["limit"])
	if limit <= 0 {
		limit = 20
	}
	raw, err := t.client.Playlists(ctx, limit)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// ItemDetailsTool implements plex_item_details.
type ItemDetailsTool struct{ client *Client }

func NewItemDetailsTool(client *Client) *ItemDetailsTool { return &ItemDetailsTool{client: client} }

func (t *ItemDetailsTool) Name() string        { return "plex_item_details" }
func (t *ItemDetailsTool) Description() string { return "Fetch full Plex metadata for a library item by rating key." }
func (t *ItemDetailsTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "rating_key": {"type": "integer", "description": "Plex rating key"}
  },
  "required": ["rating_key"]
}`
}

func (t *ItemDetailsTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	ratingKey := intArg(args["rating_key"])
	if ratingKey <= 0 {
		return nil, fmt.Errorf("plex_item_details: rating_key is required")
	}
	raw, err := t.client.ItemDetails(ctx, ratingKey)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// SimilarItemsTool implements plex_similar_items.
type SimilarItemsTool struct{ client *Client }

func NewSimilarItemsTool(client *Client) *SimilarItemsTool { return &SimilarItemsTool{client: client} }

func (t *SimilarItemsTool) Name() string        { return "plex_similar_items" }
func (t *SimilarItemsTool) Description() string { return "List Plex's locally-similar items to a library item by rating key." }
func (t *SimilarItemsTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "rating_key": {"type": "integer", "description": "Plex rating key"},
    "limit": {"type": "integer", "description": "Max items to return", "default": 10}
  },
  "required": ["rating_key"]
}`
}

func (t *SimilarItemsTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	ratingKey := intArg(args["rating_key"])
	if ratingKey <= 0 {
		return nil, fmt.Errorf("plex_similar_items: rating_key is required")
	}
	limit := intArg(args["limit"])
	if limit <= 0 {
		limit = 10
	}
	raw, err := t.client.SimilarItems(ctx, ratingKey, limit)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// SetRatingTool implements plex_set_rating, the one write-style Plex
// tool (bot/workers/plex.py set_rating).
type SetRatingTool struct{ client *Client }

func NewSetRatingTool(client *Client) *SetRatingTool { return &SetRatingTool{client: client} }

func (t *SetRatingTool) Name() string        { return "plex_set_rating" }
func (t *SetRatingTool) Description() string { return "Set a user rating on a Plex library item." }
func (t *SetRatingTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "rating_key": {"type": "integer", "description": "Plex rating key"},
    "rating": {"type": "integer", "description": "Rating from 0-10 (Plex stores on a 0-10 scale)"}
  },
  "required": ["rating_key", "rating"]
}`
}

func (t *SetRatingTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	ratingKey := intArg(args["rating_key"])
	if ratingKey <= 0 {
		return nil, fmt.Errorf("plex_set_rating: rating_key is required")
	}
	rating := intArg(args["rating"])
	raw, err := t.client.SetRating(ctx, ratingKey, rating)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

func intArg(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
