package sonarr

import (
	"context"
	"fmt"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/httpclient"
)

// LookupTool implements sonarr_lookup (integrations/sonarr_client.py lookup).
type LookupTool struct{ client *Client }

func NewLookupTool(client *Client) *LookupTool { return &LookupTool{client: client} }

func (t *LookupTool) Name() string        { return "sonarr_lookup" }
func (t *LookupTool) Description() string { return "Search Sonarr's series lookup (TVDb-backed) by free text." }
func (t *LookupTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "term": {"type": "string", "description": "Title or TVDb-id query, e.g. \"tvdb:81189\""}
  },
  "required": ["term"]
}`
}

func (t *LookupTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	term, _ := args["term"].(string)
	if term == "" {
		return nil, fmt.Errorf("sonarr_lookup: term is required")
	}
	raw, err := t.client.Lookup(ctx, term)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// AddSeriesTool implements sonarr_add_series. On an "already exists"
// validation error from Sonarr, it upgrades the result to a successful
// outcome with already_exists:true instead of propagating the error,
// mirroring the original worker's add_series handling.
type AddSeriesTool struct{ client *Client }

func NewAddSeriesTool(client *Client) *AddSeriesTool { return &AddSeriesTool{client: client} }

func (t *AddSeriesTool) Name() string        { return "sonarr_add_series" }
func (t *AddSeriesTool) Description() string { return "Add a series to Sonarr by TVDb id and start monitoring/searching it." }
func (t *AddSeriesTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "tvdb_id": {"type": "integer", "description": "TVDb series id"},
    "quality_profile_id": {"type": "integer", "description": "Sonarr quality profile id"},
    "root_folder_path": {"type": "string", "description": "Sonarr root folder path, e.g. /tv"},
    "monitored": {"type": "boolean", "description": "Whether to monitor the series", "default": true},
    "season_folder": {"type": "boolean", "description": "Whether to use per-season folders", "default": true},
    "search_now": {"type": "boolean", "description": "Whether to search for missing episodes immediately", "default": true}
  },
  "required": ["tvdb_id", "quality_profile_id", "root_folder_path"]
}`
}

func (t *AddSeriesTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	tvdbID := intArg(args["tvdb_id"])
	if tvdbID <= 0 {
		return nil, fmt.Errorf("sonarr_add_series: tvdb_id is required")
	}
	qualityProfileID := intArg(args["quality_profile_id"])
	rootFolder, _ := args["root_folder_path"].(string)
	if qualityProfileID <= 0 || rootFolder == "" {
		return nil, fmt.Errorf("sonarr_add_series: quality_profile_id and root_folder_path are required")
	}
	monitored := boolArg(args["monitored"], true)
	seasonFolder := boolArg(args["season_folder"], true)
	searchNow := boolArg(args["search_now"], true)

	in := AddSeriesInput{
		TVDbID:           tvdbID,
		QualityProfileID: qualityProfileID,
		RootFolderPath:   rootFolder,
		Monitored:        monitored,
		SeasonFolder:     seasonFolder,
	}
	in.AddOptions.SearchForMissingEpisodes = searchNow

	raw, err := t.client.AddSeries(ctx, in)
	if err != nil {
		if IsAlreadyExists(err) {
			return map[string]any{
				"success":        true,
				"already_exists": true,
				"message":        fmt.Sprintf("Series with TVDb ID %d already exists in Sonarr", tvdbID),
				"tvdb_id":        tvdbID,
			}, nil
		}
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// GetSeriesTool implements sonarr_get_series.
type GetSeriesTool struct{ client *Client }

func NewGetSeriesTool(client *Client) *GetSeriesTool { return &GetSeriesTool{client: client} }

func (t *GetSeriesTool) Name() string        { return "sonarr_get_series" }
func (t *GetSeriesTool) Description() string { return "List series known to Sonarr, or fetch one by series_id." }
func (t *GetSeriesTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "series_id": {"type": "integer", "description": "Optional Sonarr series id to fetch a single series"}
  }
}`
}

func (t *GetSeriesTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	seriesID := intArg(args["series_id"])
	raw, err := t.client.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	result, err := httpclient.AsResult(raw)
	if err != nil {
		return nil, err
	}
	if seriesID <= 0 {
		if list, ok := result["results"]; ok {
			return map[string]any{"series": list}, nil
		}
	}
	return map[string]any{"series": result}, nil
}

// GetEpisodesTool implements sonarr_get_episodes.
type GetEpisodesTool struct{ client *Client }

func NewGetEpisodesTool(client *Client) *GetEpisodesTool { return &GetEpisodesTool{client: client} }

func (t *GetEpisodesTool) Name() string        { return "sonarr_get_episodes" }
func (t *GetEpisodesTool) Description() string { return "List episodes for a series known to Sonarr." }
func (t *GetEpisodesTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "series_id": {"type": "integer", "description": "Sonarr series id"}
  },
  "required": ["series_id"]
}`
}

func (t *GetEpisodesTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	seriesID := intArg(args["series_id"])
	if seriesID <= 0 {
		return nil, fmt.Errorf("sonarr_get_episodes: series_id is required")
	}
	raw, err := t.client.GetEpisodes(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// MonitorEpisodesTool implements sonarr_monitor_episodes.
type MonitorEpisodesTool struct{ client *Client }

func NewMonitorEpisodesTool(client *Client) *MonitorEpisodesTool {
	return &MonitorEpisodesTool{client: client}
}

func (t *MonitorEpisodesTool) Name() string        { return "sonarr_monitor_episodes" }
func (t *MonitorEpisodesTool) Description() string { return "Set the monitored flag on one or more Sonarr episodes." }
func (t *MonitorEpisodesTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "episode_ids": {"type": "array", "items": {"type": "integer"}, "description": "Sonarr episode ids"},
    "monitored": {"type": "boolean", "description": "Desired monitored state", "default": true}
  },
  "required": ["episode_ids"]
}`
}

func (t *MonitorEpisodesTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	ids := intListArg(args["episode_ids"])
	if len(ids) == 0 {
		return nil, fmt.Errorf("sonarr_monitor_episodes: episode_ids is required")
	}
	monitored := boolArg(args["monitored"], true)
	raw, err := t.client.MonitorEpisodes(ctx, ids, monitored)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// SearchSeriesTool implements sonarr_search_series.
type SearchSeriesTool struct{ client *Client }

func NewSearchSeriesTool(client *Client) *SearchSeriesTool { return &SearchSeriesTool{client: client} }

func (t *SearchSeriesTool) Name() string        { return "sonarr_search_series" }
func (t *SearchSeriesTool) Description() string { return "Trigger Sonarr to search for all missing episodes of a series." }
func (t *SearchSeriesTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "series_id": {"type": "integer", "description": "Sonarr series id"}
  },
  "required": ["series_id"]
}`
}

func (t *SearchSeriesTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	seriesID := intArg(args["series_id"])
	if seriesID <= 0 {
		return nil, fmt.Errorf("sonarr_search_series: series_id is required")
	}
	raw, err := t.client.SearchSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// SearchEpisodeTool implements sonarr_search_episode, used by the
// episode-fallback sub-agent when a season-pack search fails.
type SearchEpisodeTool struct{ client *Client }

func NewSearchEpisodeTool(client *Client) *SearchEpisodeTool {
	return &SearchEpisodeTool{client: client}
}

func (t *SearchEpisodeTool) Name() string        { return "sonarr_search_episode" }
func (t *SearchEpisodeTool) Description() string { return "Trigger Sonarr to search for a single episode." }
func (t *SearchEpisodeTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "episode_id": {"type": "integer", "description": "Sonarr episode id"}
  },
  "required": ["episode_id"]
}`
}

func (t *SearchEpisodeTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	episodeID := intArg(args["episode_id"])
	if episodeID <= 0 {
		return nil, fmt.Errorf("sonarr_search_episode: episode_id is required")
	}
	raw, err := t.client.SearchEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// GetQueueTool implements sonarr_get_queue.
type GetQueueTool struct{ client *Client }

func NewGetQueueTool(client *Client) *GetQueueTool { return &GetQueueTool{client: client} }

func (t *GetQueueTool) Name() string        { return "sonarr_get_queue" }
func (t *GetQueueTool) Description() string { return "List Sonarr's current download queue." }
func (t *GetQueueTool) Schema() string      { return `{"type": "object", "properties": {}}` }

func (t *GetQueueTool) Execute(ctx context.Context, _ map[string]any) (map[string]any, error) {
	raw, err := t.client.GetQueue(ctx)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// QualityProfilesTool implements sonarr_quality_profiles.
type QualityProfilesTool struct{ client *Client }

func NewQualityProfilesTool(client *Client) *QualityProfilesTool {
	return &QualityProfilesTool{client: client}
}

func (t *QualityProfilesTool) Name() string        { return "sonarr_quality_profiles" }
func (t *QualityProfilesTool) Description() string { return "List Sonarr's configured quality profiles." }
func (t *QualityProfilesTool) Schema() string      { return `{"type": "object", "properties": {}}` }

func (t *QualityProfilesTool) Execute(ctx context.Context, _ map[string]any) (map[string]any, error) {
	raw, err := t.client.QualityProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return httpclient.AsResult(raw)
}

// RootFoldersTool implements sonarr_root_folders.
type RootFoldersTool struct{ client *Client }

func NewRootFoldersTool(client *Client) *RootFoldersTool { return &RootFoldersTool{client: client} }

func (t *RootFoldersTool) Name() string        { return "sonarr_root_folders" }
func (t *RootFoldersTool) Description() string { return "List Sonarr's configured root folders." }
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

func intListArg(v any) []int {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		if n := intArg(item); n > 0 {
			out = append(out, n)
		}
	}
	return out
}
