package preferences

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
)

func TestStore_LoadMissingFileReturnsEmptyMap(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	data, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected an empty map for a missing file, got %v", data)
	}
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "prefs.json"))
	if err := store.Save(map[string]any{"likes": map[string]any{"genres": []any{"sci-fi"}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	likes, ok := data["likes"].(map[string]any)
	if !ok {
		t.Fatalf("expected likes map, got %v", data)
	}
	genres, ok := likes["genres"].([]any)
	if !ok || len(genres) != 1 || genres[0] != "sci-fi" {
		t.Fatalf("unexpected genres: %v", likes["genres"])
	}
}

func TestStore_LoadReturnsIndependentClone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	store := NewStore(path)
	if err := store.Save(map[string]any{"a": float64(1)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	first["a"] = float64(999)

	second, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if second["a"] != float64(1) {
		t.Fatalf("expected Load to return an independent clone unaffected by caller mutation, got %v", second["a"])
	}
}

func TestGetByPathAndSetByPath(t *testing.T) {
	data := map[string]any{}
	SetByPath(data, "likes.genres", []any{"drama"})
	if got := GetByPath(data, "likes.genres"); len(got.([]any)) != 1 {
		t.Fatalf("unexpected value at likes.genres: %v", got)
	}
	if got := GetByPath(data, "likes.missing"); got != nil {
		t.Fatalf("expected nil for a missing path, got %v", got)
	}
	if got := GetByPath(data, "missing.deeper"); got != nil {
		t.Fatalf("expected nil when an intermediate segment is missing, got %v", got)
	}
}

func TestListAppend_DedupsExistingValue(t *testing.T) {
	data := map[string]any{}
	data, err := ListAppend(data, "likes.genres", "sci-fi")
	if err != nil {
		t.Fatalf("ListAppend: %v", err)
	}
	data, err = ListAppend(data, "likes.genres", "sci-fi")
	if err != nil {
		t.Fatalf("ListAppend: %v", err)
	}
	genres := GetByPath(data, "likes.genres").([]any)
	if len(genres) != 1 {
		t.Fatalf("expected duplicate append to be a no-op, got %v", genres)
	}

	data, err = ListAppend(data, "likes.genres", "drama")
	if err != nil {
		t.Fatalf("ListAppend: %v", err)
	}
	genres = GetByPath(data, "likes.genres").([]any)
	if len(genres) != 2 {
		t.Fatalf("expected a distinct value to append, got %v", genres)
	}
}

func TestListRemoveValue(t *testing.T) {
	data := map[string]any{}
	data, _ = ListAppend(data, "dislikes.genres", "horror")
	data, _ = ListAppend(data, "dislikes.genres", "romance")

	data, err := ListRemoveValue(data, "dislikes.genres", "horror")
	if err != nil {
		t.Fatalf("ListRemoveValue: %v", err)
	}
	genres := GetByPath(data, "dislikes.genres").([]any)
	if len(genres) != 1 || genres[0] != "romance" {
		t.Fatalf("expected horror removed, got %v", genres)
	}

	// Removing an absent value is a no-op, not an error.
	data, err = ListRemoveValue(data, "dislikes.genres", "nonexistent")
	if err != nil {
		t.Fatalf("ListRemoveValue on absent value: %v", err)
	}
	if len(GetByPath(data, "dislikes.genres").([]any)) != 1 {
		t.Fatal("expected no change when removing an absent value")
	}
}

func TestDeepMerge(t *testing.T) {
	base := map[string]any{"likes": map[string]any{"genres": []any{"drama"}, "actors": []any{"Neo"}}}
	patch := map[string]any{"likes": map[string]any{"genres": []any{"sci-fi"}}}

	merged := DeepMerge(base, patch).(map[string]any)
	likes := merged["likes"].(map[string]any)
	if genres, ok := likes["genres"].([]any); !ok || genres[0] != "sci-fi" {
		t.Fatalf("expected patch to override genres, got %v", likes["genres"])
	}
	if _, ok := likes["actors"]; !ok {
		t.Fatal("expected untouched sibling key 'actors' preserved by the merge")
	}
}

func TestBuildCompactContext(t *testing.T) {
	data := map[string]any{"likes": map[string]any{"genres": []any{"sci-fi", "drama"}}}
	compact := BuildCompactContext(data)
	if compact != "likes.genres: sci-fi, drama" {
		t.Fatalf("unexpected compact context: %q", compact)
	}
}

func TestReadTool_Modes(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	if err := store.Save(map[string]any{
		"likes": map[string]any{"genres": []any{"sci-fi"}},
		"other": "value",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	tool := NewReadTool(store)

	out, err := tool.Execute(context.Background(), map[string]any{"path": "likes.genres"})
	if err != nil {
		t.Fatalf("Execute(path): %v", err)
	}
	if out["path"] != "likes.genres" {
		t.Fatalf("unexpected path-mode result: %v", out)
	}

	out, err = tool.Execute(context.Background(), map[string]any{"keys": []any{"other"}})
	if err != nil {
		t.Fatalf("Execute(keys): %v", err)
	}
	if out["other"] != "value" {
		t.Fatalf("unexpected keys-mode result: %v", out)
	}

	out, err = tool.Execute(context.Background(), map[string]any{"compact": true})
	if err != nil {
		t.Fatalf("Execute(compact): %v", err)
	}
	if _, ok := out["compact"].(string); !ok {
		t.Fatalf("expected a compact string result, got %v", out)
	}

	out, err = tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Execute(full dump): %v", err)
	}
	if _, ok := out["likes"]; !ok {
		t.Fatalf("expected a full dump, got %v", out)
	}
}

func TestUpdateTool_PatchPathAppendRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	store := NewStore(path)
	tool := NewUpdateTool(store)

	if _, err := tool.Execute(context.Background(), map[string]any{"patch": map[string]any{"likes": map[string]any{"genres": []any{"drama"}}}}); err != nil {
		t.Fatalf("Execute(patch): %v", err)
	}
	if _, err := tool.Execute(context.Background(), map[string]any{"path": "rating", "value": float64(5)}); err != nil {
		t.Fatalf("Execute(path+value): %v", err)
	}
	if _, err := tool.Execute(context.Background(), map[string]any{"path": "likes.genres", "append": "sci-fi"}); err != nil {
		t.Fatalf("Execute(append): %v", err)
	}
	if _, err := tool.Execute(context.Background(), map[string]any{"path": "likes.genres", "remove_value": "drama"}); err != nil {
		t.Fatalf("Execute(remove): %v", err)
	}

	data, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data["rating"] != float64(5) {
		t.Fatalf("expected rating=5, got %v", data["rating"])
	}
	genres := GetByPath(data, "likes.genres").([]any)
	if len(genres) != 1 || genres[0] != "sci-fi" {
		t.Fatalf("expected only sci-fi remaining, got %v", genres)
	}
}

func TestUpdateTool_AppendAndRemoveAreMutuallyExclusive(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	tool := NewUpdateTool(store)
	_, err := tool.Execute(context.Background(), map[string]any{
		"path": "likes.genres", "append": "a", "remove_value": "b",
	})
	if err == nil {
		t.Fatal("expected an error when both append and remove_value are set")
	}
}

func TestUpdateTool_RequiresSomeMutation(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	tool := NewUpdateTool(store)
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected an error when neither patch nor path is given")
	}
}

func TestRateTool_LikesAndDislikesPaths(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	tool := NewRateTool(store)

	out, err := tool.Execute(context.Background(), map[string]any{"category": "genres", "value": "sci-fi", "liked": true})
	if err != nil {
		t.Fatalf("Execute(liked): %v", err)
	}
	if out["path"] != "likes.genres" {
		t.Fatalf("expected likes.genres path, got %v", out["path"])
	}

	out, err = tool.Execute(context.Background(), map[string]any{"category": "genres", "value": "horror", "liked": false})
	if err != nil {
		t.Fatalf("Execute(disliked): %v", err)
	}
	if out["path"] != "dislikes.genres" {
		t.Fatalf("expected dislikes.genres path, got %v", out["path"])
	}

	data, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetByPath(data, "likes.genres").([]any); len(got) != 1 || got[0] != "sci-fi" {
		t.Fatalf("unexpected likes.genres: %v", got)
	}
	if got := GetByPath(data, "dislikes.genres").([]any); len(got) != 1 || got[0] != "horror" {
		t.Fatalf("unexpected dislikes.genres: %v", got)
	}
}

func TestRateTool_RequiresCategoryAndValue(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	tool := NewRateTool(store)
	if _, err := tool.Execute(context.Background(), map[string]any{"category": "genres"}); err == nil {
		t.Fatal("expected an error when value is missing")
	}
}

func TestSearchTool_MatchesKeysAndValuesWithLimit(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	if err := store.Save(map[string]any{
		"likes": map[string]any{"genres": []any{"sci-fi"}, "actors": []any{"Keanu Reeves"}},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	tool := NewSearchTool(store)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "keanu"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	matches, ok := out["matches"].([]map[string]any)
	if !ok || len(matches) != 1 {
		t.Fatalf("expected one case-insensitive match, got %v", out)
	}

	out, err = tool.Execute(context.Background(), map[string]any{"query": "likes", "limit": float64(1)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	limited := out["matches"].([]map[string]any)
	if len(limited) != 1 {
		t.Fatalf("expected limit to cap results to 1, got %d", len(limited))
	}
}

func TestSearchTool_RequiresQuery(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	tool := NewSearchTool(store)
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected an error when query is missing")
	}
}

type fakeQueryLLM struct {
	answer string
	req    engine.Request
}

func (f *fakeQueryLLM) Complete(ctx context.Context, req engine.Request) (*engine.Response, error) {
	f.req = req
	return &engine.Response{Content: f.answer}, nil
}

func (f *fakeQueryLLM) Stream(ctx context.Context, req engine.Request) (<-chan engine.StreamChunk, error) {
	ch := make(chan engine.StreamChunk)
	close(ch)
	return ch, nil
}

func TestQueryTool_DelegatesToBoundLLM(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	if err := store.Save(map[string]any{"likes": map[string]any{"genres": []any{"sci-fi"}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	llm := &fakeQueryLLM{answer: "The household likes sci-fi."}
	factory := NewQueryToolFactory(store, "test-model")
	tool := factory(llm)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "what genres do we like?"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out["answer"] != "The household likes sci-fi" {
		t.Fatalf("expected trailing period trimmed, got %v", out["answer"])
	}
	if llm.req.ToolChoice != engine.ToolChoiceNone {
		t.Fatalf("expected the delegated query to request tool_choice=none, got %q", llm.req.ToolChoice)
	}
}

func TestQueryTool_RequiresBoundLLM(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	tool := &QueryTool{store: store}
	if _, err := tool.Execute(context.Background(), map[string]any{"query": "anything"}); err == nil {
		t.Fatal("expected an error when no LLM client is bound")
	}
}

func TestQueryTool_RequiresQuery(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	factory := NewQueryToolFactory(store, "test-model")
	tool := factory(&fakeQueryLLM{})
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected an error when query is missing")
	}
}
