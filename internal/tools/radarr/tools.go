package radarr

import (
	"context"
	"fmt"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/httpclient"
)

// LookupTool implements radarr_lookup (integrations/radarr_client.py lookup).
type LookupTool struct{ client *Client }

func NewLookupTool(client *Client) *LookupTool { return &LookupTool{client: client} }

func (t *LookupTool) Name() string        { return "radarr_lookup" }
func (t *LookupTool) Description() string { return "Search Radarr's movie lookup (TMDb-backed) by free text." }
func (t *LookupTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "term": {"type": "string", "description": "Title or TMDb-id query, e.g. \"tmdb:603\""}
  },
  "required": ["term"]
}`
}

func (t *LookupTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	term, _ := args["term"].(string)
	if term == "" {
		return nil, fmt.Errorf("radarr_lookup: term is required")
	}
	raw, err := t.client.Lookup(ctx, term)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// AddMovieTool implements radarr_add_movie. On an "already exists"
// validation error from Radarr, it upgrades the result to a successful
// outcome with already_exists:true instead of propagating the error,
// mirroring the original worker's add_movie handling.
type AddMovieTool struct{ client *Client }

func NewAddMovieTool(client *Client) *AddMovieTool { return &AddMovieTool{client: client} }

func (t *AddMovieTool) Name() string        { return "radarr_add_movie" }
func (t *AddMovieTool) Description() string { return "Add a movie to Radarr by TMDb id and start a search for it." }
func (t *AddMovieTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "tmdb_id": {"type": "integer", "description": "TMDb movie id"},
    "quality_profile_id": {"type": "integer", "description": "Radarr quality profile id"},
    "root_folder_path": {"type": "string", "description": "Radarr root folder path, e.g. /movies"},
    "monitored": {"type": "boolean", "description": "Whether to monitor the movie", "default": true},
    "search_now": {"type": "boolean", "description": "Whether to search for the movie immediately", "default": true}
  },
  "required": ["tmdb_id", "quality_profile_id", "root_folder_path"]
}`
}

func (t *AddMovieTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	tmdbID := intArg(args["tmdb_id"])
	if tmdbID <= 0 {
		return nil, fmt.Errorf("radarr_add_movie: tmdb_id is required")
	}
	qualityProfileID := intArg(args["quality_profile_id"])
	rootFolder, _ := args["root_folder_path"].(string)
	if qualityProfileID <= 0 || rootFolder == "" {
		return nil, fmt.Errorf("radarr_add_movie: quality_profile_id and root_folder_path are required")
	}
	monitored := boolArg(args["monitored"], true)
	searchNow := boolArg(args["search_now"], true)

	in := AddMovieInput{
		TMDbID:              tmdbID,
		QualityProfileID:    qualityProfileID,
		RootFolderPath:      rootFolder,
		Monitored:           monitored,
		MinimumAvailability: "announced",
	}
	in.AddOptions.SearchForMovie = searchNow

	raw, err := t.client.AddMovie(ctx, in)
	if err != nil {
		if IsAlreadyExists(err) {
			return map[string]any{
				"success":         true,
				"already_exists":  true,
				"message":         fmt.Sprintf("Movie with TMDb ID %d already exists in Radarr", tmdbID),
				"tmdb_id":         tmdbID,
			}, nil
		}
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// GetMoviesTool implements radarr_get_movies.
type GetMoviesTool struct{ client *Client }

func NewGetMoviesTool(client *Client) *GetMoviesTool { return &GetMoviesTool{client: client} }

func (t *GetMoviesTool) Name() string        { return "radarr_get_movies" }
func (t *GetMoviesTool) Description() string { return "List movies known to Radarr, or fetch one by movie_id." }
func (t *GetMoviesTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "movie_id": {"type": "integer", "description": "Optional Radarr movie id to fetch a single movie"}
  }
}`
}

func (t *GetMoviesTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	movieID := intArg(args["movie_id"])
	raw, err := t.client.GetMovies(ctx, movieID)
	if err != nil {
		return nil, err
	}
	result, err := httpclient.AsResult(raw)
	if err != nil {
		return nil, err
	}
	if movieID <= 0 {
		if list, ok := result["results"]; ok {
			return map[string]any{"movies": list}, nil
		}
	}
	return map[string]any{"movie": result}, nil
}

// SearchMovieTool implements radarr_search_movie, the re-search
// primitive for a movie that was added without search_now or whose
// first search came up empty.
type SearchMovieTool struct{ client *Client }

func NewSearchMovieTool(client *Client) *SearchMovieTool { return &SearchMovieTool{client: client} }

func (t *SearchMovieTool) Name() string        { return "radarr_search_movie" }
func (t *SearchMovieTool) Description() string { return "Trigger Radarr to search for an already-added movie." }
func (t *SearchMovieTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "movie_id": {"type": "integer", "description": "Radarr movie id"}
  },
  "required": ["movie_id"]
}`
}

func (t *SearchMovieTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	movieID := intArg(args["movie_id"])
	if movieID <= 0 {
		return nil, fmt.Errorf("radarr_search_movie: movie_id is required")
	}
	raw, err := t.client.SearchMovie(ctx, movieID)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// QualityProfilesTool implements radarr_quality_profiles.
type QualityProfilesTool struct{ client *Client }

func NewQualityProfilesTool(client *Client) *QualityProfilesTool {
	return &QualityProfilesTool{client: client}
}

func (t *QualityProfilesTool) Name() string        { return "radarr_quality_profiles" }
func (t *QualityProfilesTool) Description() string { return "List Radarr's configured quality profiles." }
func (t *QualityProfilesTool) Schema() string      { return `{"type": "object", "properties": {}}` }

func (t *QualityProfilesTool) Execute(ctx context.Context, _ map[string]any) (map[string]any, error) {
	raw, err := t.client.QualityProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// RootFoldersTool implements radarr_root_folders.
type RootFoldersTool struct{ client *Client }

func NewRootFoldersTool(client *Client) *RootFoldersTool { return &RootFoldersTool{client: client} }

func (t *RootFoldersTool) Name() string        { return "radarr_root_folders" }
func (t *RootFoldersTool) Description() string { return "List Radarr's configured root folders." }
func (t *RootFoldersTool) Schema() string      { return `{"type": "object", "properties": {}}` }

func (t *RootFoldersTool) Execute(ctx context.Context, _ map[string]any) (map[string]any, error) {
	raw, err := t.client.RootFolders(ctx)
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

func boolArg(v any, def bool) bool {
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
