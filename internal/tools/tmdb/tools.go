package tmdb

import (
	"context"
	"fmt"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/httpclient"
)

// SearchMovieTool implements tmdb_search (bot/agent_prompt.py's
// tmdb_search, "Search TMDb for movies").
type SearchMovieTool struct{ client *Client }

func NewSearchMovieTool(client *Client) *SearchMovieTool { return &SearchMovieTool{client: client} }

func (t *SearchMovieTool) Name() string        { return "tmdb_search" }
func (t *SearchMovieTool) Description() string { return "Search TMDb for movies by title and optional year." }
func (t *SearchMovieTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Movie title to search for"},
    "year": {"type": "integer", "description": "Optional release year to narrow results"}
  },
  "required": ["query"]
}`
}

func (t *SearchMovieTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("tmdb_search: query is required")
	}
	year := intArg(args["year"])
	raw, err := t.client.SearchMovie(ctx, query, year)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// SearchTVTool implements tmdb_search_tv.
type SearchTVTool struct{ client *Client }

func NewSearchTVTool(client *Client) *SearchTVTool { return &SearchTVTool{client: client} }

func (t *SearchTVTool) Name() string        { return "tmdb_search_tv" }
func (t *SearchTVTool) Description() string { return "Search TMDb for TV series by title and optional first-air year." }
func (t *SearchTVTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Series title to search for"},
    "first_air_date_year": {"type": "integer", "description": "Optional first-air year to narrow results"}
  },
  "required": ["query"]
}`
}

func (t *SearchTVTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("tmdb_search_tv: query is required")
	}
	year := intArg(args["first_air_date_year"])
	raw, err := t.client.SearchTV(ctx, query, year)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// SearchMultiTool implements tmdb_search_multi, used when the user's
// query is ambiguous between a movie, a series, or a person
// (bot/sub_agent.py's recommendation flow calls this first).
type SearchMultiTool struct{ client *Client }

func NewSearchMultiTool(client *Client) *SearchMultiTool { return &SearchMultiTool{client: client} }

func (t *SearchMultiTool) Name() string        { return "tmdb_search_multi" }
func (t *SearchMultiTool) Description() string {
	return "Search TMDb across movies, TV series, and people when the media type is ambiguous."
}
func (t *SearchMultiTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Free-text query"}
  },
  "required": ["query"]
}`
}

func (t *SearchMultiTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("tmdb_search_multi: query is required")
	}
	raw, err := t.client.SearchMulti(ctx, query)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// MovieDetailsTool implements tmdb_movie_details.
type MovieDetailsTool struct{ client *Client }

func NewMovieDetailsTool(client *Client) *MovieDetailsTool { return &MovieDetailsTool{client: client} }

func (t *MovieDetailsTool) Name() string        { return "tmdb_movie_details" }
func (t *MovieDetailsTool) Description() string { return "Fetch full TMDb details for a movie by id." }
func (t *MovieDetailsTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "id": {"type": "integer", "description": "TMDb movie id"}
  },
  "required": ["id"]
}`
}

func (t *MovieDetailsTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	id := intArg(args["id"])
	if id <= 0 {
		return nil, fmt.Errorf("tmdb_movie_details: id is required")
	}
	raw, err := t.client.MovieDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// TVDetailsTool implements tmdb_tv_details.
type TVDetailsTool struct{ client *Client }

func NewTVDetailsTool(client *Client) *TVDetailsTool { return &TVDetailsTool{client: client} }

func (t *TVDetailsTool) Name() string        { return "tmdb_tv_details" }
func (t *TVDetailsTool) Description() string { return "Fetch full TMDb details for a TV series by id." }
func (t *TVDetailsTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "id": {"type": "integer", "description": "TMDb TV series id"}
  },
  "required": ["id"]
}`
}

func (t *TVDetailsTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	id := intArg(args["id"])
	if id <= 0 {
		return nil, fmt.Errorf("tmdb_tv_details: id is required")
	}
	raw, err := t.client.TVDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// RecommendationsTool implements tmdb_recommendations
// (bot/agent_prompt.py: "Fetch: use tmdb_search or tmdb_recommendations").
type RecommendationsTool struct{ client *Client }

func NewRecommendationsTool(client *Client) *RecommendationsTool {
	return &RecommendationsTool{client: client}
}

func (t *RecommendationsTool) Name() string { return "tmdb_recommendations" }
func (t *RecommendationsTool) Description() string {
	return "Fetch TMDb's recommended movies similar to a given movie id."
}
func (t *RecommendationsTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "movie_id": {"type": "integer", "description": "TMDb movie id to base recommendations on"}
  },
  "required": ["movie_id"]
}`
}

func (t *RecommendationsTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	id := intArg(args["movie_id"])
	if id <= 0 {
		return nil, fmt.Errorf("tmdb_recommendations: movie_id is required")
	}
	raw, err := t.client.Recommendations(ctx, id)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// intArg tolerantly coerces a JSON-decoded argument (float64 from
// encoding/json, or occasionally an int already) to an int, mirroring
// the original RadarrWorker's tolerant argument handling.
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
