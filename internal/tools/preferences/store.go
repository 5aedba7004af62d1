// Package preferences adapts the household-preferences JSON file to
// engine.Tool, grounded in bot/tools/tool_impl.py's PreferencesStore
// and make_{read,update,search,query}_household_preferences factories.
package preferences

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Store is a mutex-guarded, mtime-cached JSON file store, mirroring
// PreferencesStore's async load/save pair (cache invalidated by
// stat comparison rather than this module's own polling).
type Store struct {
	path string

	mu      sync.Mutex
	cache   map[string]any
	modTime int64
	size    int64
}

// NewStore builds a Store backed by the JSON file at path. The file
// need not exist yet; Load returns an empty map until the first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the current preferences tree, re-reading the file from
// disk only if its mtime/size changed since the last Load/Save.
func (s *Store) Load() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		s.cache = map[string]any{}
		s.modTime, s.size = 0, 0
		return cloneMap(s.cache), nil
	}
	if err != nil {
		return nil, fmt.Errorf("preferences: stat: %w", err)
	}

	mtime := info.ModTime().UnixNano()
	sz := info.Size()
	if s.cache != nil && s.modTime == mtime && s.size == sz {
		return cloneMap(s.cache), nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("preferences: read: %w", err)
	}
	var data map[string]any
	if len(raw) == 0 {
		data = map[string]any{}
	} else if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("preferences: decode: %w", err)
	}
	s.cache = data
	s.modTime = mtime
	s.size = sz
	return cloneMap(data), nil
}

// Save writes data to disk, creating parent directories if needed, and
// updates the cache so the next Load is a pure cache hit.
func (s *Store) Save(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("preferences: mkdir: %w", err)
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("preferences: encode: %w", err)
	}
	if err := os.WriteFile(s.path, encoded, 0o644); err != nil {
		return fmt.Errorf("preferences: write: %w", err)
	}
	s.cache = data
	if info, statErr := os.Stat(s.path); statErr == nil {
		s.modTime = info.ModTime().UnixNano()
		s.size = info.Size()
	}
	return nil
}

// GetByPath navigates a dotted path ("likes.genres") through data,
// returning nil if any segment is missing.
func GetByPath(data map[string]any, dottedPath string) any {
	var cur any = data
	for _, part := range strings.Split(dottedPath, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// SetByPath sets value at a dotted path, creating intermediate object
// containers as needed, mirroring _set_by_path/_ensure_container_for_path.
func SetByPath(data map[string]any, dottedPath string, value any) map[string]any {
	parts := strings.Split(dottedPath, ".")
	cur := ensureContainer(data, parts[:len(parts)-1])
	cur[parts[len(parts)-1]] = value
	return data
}

// ListAppend appends value to the list at a dotted path (creating it
// if absent), skipping the append if value is already present, per
// _list_append's de-duplication behavior.
func ListAppend(data map[string]any, dottedPath string, value any) (map[string]any, error) {
	parts := strings.Split(dottedPath, ".")
	cur := ensureContainer(data, parts[:len(parts)-1])
	key := parts[len(parts)-1]

	existing, ok := cur[key]
	if !ok || existing == nil {
		cur[key] = []any{value}
		return data, nil
	}
	list, ok := existing.([]any)
	if !ok {
		return nil, fmt.Errorf("preferences: path %q is not a list", dottedPath)
	}
	for _, item := range list {
		if deepEqual(item, value) {
			return data, nil
		}
	}
	cur[key] = append(list, value)
	return data, nil
}

// ListRemoveValue removes the first occurrence of value from the list
// at a dotted path, per _list_remove_value (no-op if absent).
func ListRemoveValue(data map[string]any, dottedPath string, value any) (map[string]any, error) {
	existing := GetByPath(data, dottedPath)
	list, ok := existing.([]any)
	if existing == nil {
		return data, nil
	}
	if !ok {
		return nil, fmt.Errorf("preferences: path %q is not a list", dottedPath)
	}
	out := make([]any, 0, len(list))
	removed := false
	for _, item := range list {
		if !removed && deepEqual(item, value) {
			removed = true
			continue
		}
		out = append(out, item)
	}
	return SetByPath(data, dottedPath, out), nil
}

// DeepMerge recursively merges patch into base, per _deep_merge: for
// dict/dict overlaps it recurses; otherwise patch wins outright.
func DeepMerge(base, patch any) any {
	baseMap, baseOK := base.(map[string]any)
	patchMap, patchOK := patch.(map[string]any)
	if !baseOK || !patchOK {
		return patch
	}
	if baseMap == nil {
		baseMap = map[string]any{}
	}
	for k, v := range patchMap {
		if existing, ok := baseMap[k]; ok {
			baseMap[k] = DeepMerge(existing, v)
		} else {
			baseMap[k] = v
		}
	}
	return baseMap
}

// BuildCompactContext renders a short human-readable summary of the
// preferences tree, grounded in build_preferences_context's flattened
// "key: value" projection. Used both by the compact read path and the
// late-bound query tool's prompt construction.
func BuildCompactContext(data map[string]any) string {
	flat := flatten(data, "")
	sort.Slice(flat, func(i, j int) bool { return flat[i].key < flat[j].key })
	parts := make([]string, 0, len(flat))
	for _, kv := range flat {
		parts = append(parts, kv.key+": "+kv.value)
	}
	return strings.Join(parts, "; ")
}

type flatEntry struct{ key, value string }

func flatten(v any, prefix string) []flatEntry {
	switch t := v.(type) {
	case map[string]any:
		var out []flatEntry
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			childPrefix := k
			if prefix != "" {
				childPrefix = prefix + "." + k
			}
			out = append(out, flatten(t[k], childPrefix)...)
		}
		return out
	case []any:
		strs := make([]string, 0, len(t))
		for _, item := range t {
			strs = append(strs, scalarString(item))
		}
		return []flatEntry{{key: prefix, value: strings.Join(strs, ", ")}}
	default:
		return []flatEntry{{key: prefix, value: scalarString(v)}}
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		encoded, _ := json.Marshal(t)
		return string(encoded)
	}
}

func ensureContainer(data map[string]any, parts []string) map[string]any {
	cur := data
	for _, p := range parts {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	return cur
}

func deepEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}

func cloneMap(m map[string]any) map[string]any {
	raw, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
