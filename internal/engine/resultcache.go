package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// canonicalQueryFields are string fields lowercased and trimmed before
// hashing for dedup purposes only (the original argument map passed to
// the tool is left untouched).
var canonicalQueryFields = map[string]bool{
	"query": true, "q": true, "title": true, "name": true,
}

// CanonicalizeArgs produces a stable dedup key for (tool_name, args) by
// deep-sorting map keys and normalizing common query-like string
// fields. Key permutation invariance falls out of sorting.
func CanonicalizeArgs(toolName string, args map[string]any) string {
	normalized := canonicalizeValue(args, true).(map[string]any)
	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(toolName)
	sb.WriteByte('|')
	for _, k := range keys {
		b, _ := json.Marshal(normalized[k])
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.Write(b)
		sb.WriteByte(';')
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func canonicalizeValue(v any, _ bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			normalizedVal := canonicalizeValue(val, false)
			if s, ok := normalizedVal.(string); ok && canonicalQueryFields[strings.ToLower(k)] {
				normalizedVal = strings.ToLower(strings.TrimSpace(s))
			}
			out[k] = normalizedVal
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = canonicalizeValue(val, false)
		}
		return out
	default:
		return v
	}
}

// cacheEntry is a stored full result with its expiry.
type cacheEntry struct {
	value     map[string]any
	refID     string
	expiresAt time.Time
}

// DedupMap is the per-run, unbounded dedup map (discarded at run end).
type DedupMap struct {
	mu      sync.Mutex
	entries map[string]map[string]any
}

// NewDedupMap creates an empty per-run dedup map.
func NewDedupMap() *DedupMap {
	return &DedupMap{entries: make(map[string]map[string]any)}
}

// Get returns the cached value for key and whether it was present.
func (d *DedupMap) Get(key string) (map[string]any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.entries[key]
	return v, ok
}

// Put stores value under key for the remainder of the run.
func (d *DedupMap) Put(key string, value map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[key] = value
}

// ResultCache implements C2: in-run dedup (via the run's DedupMap),
// a cross-run short-TTL cache, and a process-wide full-result store
// addressable by ref_id.
type ResultCache struct {
	mu         sync.Mutex
	crossRun   map[string]*cacheEntry
	refStore   map[string]map[string]any

	ttlShort  time.Duration
	ttlMedium time.Duration
}

// ResultCacheConfig configures per-family TTLs.
type ResultCacheConfig struct {
	TTLShort  time.Duration // default 60s: reads
	TTLMedium time.Duration // default 300s: catalogs
}

// NewResultCache creates the process-wide cache and ref store.
func NewResultCache(cfg ResultCacheConfig) *ResultCache {
	if cfg.TTLShort <= 0 {
		cfg.TTLShort = 60 * time.Second
	}
	if cfg.TTLMedium <= 0 {
		cfg.TTLMedium = 300 * time.Second
	}
	return &ResultCache{
		crossRun:  make(map[string]*cacheEntry),
		refStore:  make(map[string]map[string]any),
		ttlShort:  cfg.TTLShort,
		ttlMedium: cfg.TTLMedium,
	}
}

// ttlFor returns the cache lifetime for a family; tmdb/plex reads are
// short-lived, radarr/sonarr catalog listings are medium-lived.
func (c *ResultCache) ttlFor(f Family) time.Duration {
	switch f {
	case FamilyRadarr, FamilySonarr:
		return c.ttlMedium
	default:
		return c.ttlShort
	}
}

// Lookup checks the cross-run cache for a fresh entry.
func (c *ResultCache) Lookup(key string) (map[string]any, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.crossRun[key]
	if !ok {
		return nil, "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.crossRun, key)
		return nil, "", false
	}
	return entry.value, entry.refID, true
}

// Store commits value to the full-results store under a fresh ref_id,
// and — if eligible (read-only, not a write) — to the cross-run cache.
// Returns the assigned ref_id.
func (c *ResultCache) Store(key string, family Family, writeStyle bool, value map[string]any) string {
	refID := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.refStore[refID] = value

	if !writeStyle {
		c.crossRun[key] = &cacheEntry{
			value:     value,
			refID:     refID,
			expiresAt: time.Now().Add(c.ttlFor(family)),
		}
	}

	return refID
}

// Resolve looks up the full value for a ref_id. Used by detail-fetch
// tools; a ref_id must resolve for the remainder of the run even after
// eviction from the hit/miss cache.
func (c *ResultCache) Resolve(refID string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.refStore[refID]
	return v, ok
}

// StoreRefOnly commits value to the full-results store without
// touching the cross-run cache, used for write results (never cached)
// that still need a ref_id for the tool message.
func (c *ResultCache) StoreRefOnly(value map[string]any) string {
	refID := uuid.NewString()
	c.mu.Lock()
	c.refStore[refID] = value
	c.mu.Unlock()
	return refID
}
