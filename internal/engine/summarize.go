package engine

// DetailLevel is one of the four projection levels C6 supports.
type DetailLevel string

const (
	DetailMinimal  DetailLevel = "minimal"
	DetailCompact  DetailLevel = "compact"
	DetailStandard DetailLevel = "standard"
	DetailDetailed DetailLevel = "detailed"
)

// listFields are the top-level keys checked for "non-empty content" by
// the finalization gate and truncated by the summarizer.
var listFields = []string{"items", "results", "movies", "series", "episodes", "playlists", "collections"}

// familyAllowlist is the fixed field allowlist per family at each
// detail level. Fields not listed are dropped from the projection.
var familyAllowlist = map[Family]map[DetailLevel][]string{
	FamilyTMDb: {
		DetailMinimal:  {"id", "title", "year"},
		DetailCompact:  {"id", "title", "year", "overview"},
		DetailStandard: {"id", "title", "year", "overview", "rating", "genres"},
		DetailDetailed: {"id", "title", "year", "overview", "rating", "genres", "cast", "runtime"},
	},
	FamilyPlex: {
		DetailMinimal:  {"id", "title"},
		DetailCompact:  {"id", "title", "year", "watched"},
		DetailStandard: {"id", "title", "year", "watched", "rating", "library"},
		DetailDetailed: {"id", "title", "year", "watched", "rating", "library", "summary", "duration"},
	},
	FamilyRadarr: {
		DetailMinimal:  {"id", "title"},
		DetailCompact:  {"id", "title", "tmdbId", "status"},
		DetailStandard: {"id", "title", "tmdbId", "status", "monitored", "qualityProfileId"},
		DetailDetailed: {"id", "title", "tmdbId", "status", "monitored", "qualityProfileId", "path", "sizeOnDisk"},
	},
	FamilySonarr: {
		DetailMinimal:  {"id", "title"},
		DetailCompact:  {"id", "title", "tvdbId", "status"},
		DetailStandard: {"id", "title", "tvdbId", "status", "monitored", "qualityProfileId"},
		DetailDetailed: {"id", "title", "tvdbId", "status", "monitored", "qualityProfileId", "path", "seasons"},
	},
	FamilyOther: {
		DetailMinimal:  {"id", "name"},
		DetailCompact:  {"id", "name", "value"},
		DetailStandard: {"id", "name", "value"},
		DetailDetailed: {"id", "name", "value"},
	},
}

// SummarizerConfig configures per-family max_items truncation.
type SummarizerConfig struct {
	MaxItemsByFamily map[Family]int // default 5 when absent
}

// Summarizer is C6: a deterministic, pure projection from a tool's
// full structured result to an LLM-safe summary.
type Summarizer struct {
	cfg SummarizerConfig
}

// NewSummarizer builds C6 with the given per-family limits.
func NewSummarizer(cfg SummarizerConfig) *Summarizer {
	if cfg.MaxItemsByFamily == nil {
		cfg.MaxItemsByFamily = map[Family]int{}
	}
	return &Summarizer{cfg: cfg}
}

func (s *Summarizer) maxItems(family Family) int {
	if n, ok := s.cfg.MaxItemsByFamily[family]; ok && n > 0 {
		return n
	}
	return 5
}

// Summarize projects value down to a compact, allowlisted structure at
// level. It is idempotent: running it twice on its own output yields
// the same result, since truncation and allowlisting are both
// monotone no-ops once already applied.
func (s *Summarizer) Summarize(family Family, value map[string]any, level DetailLevel) map[string]any {
	allowlist := s.fieldsFor(family, level)
	maxItems := s.maxItems(family)

	out := make(map[string]any, len(value))
	for key, v := range value {
		if isListField(key) {
			out[key] = s.projectList(v, allowlist, maxItems)
			continue
		}
		if key == "count" || key == "total" || isIdentifierField(key) {
			out[key] = v
			continue
		}
	}
	return out
}

// projectList truncates a list to maxItems and projects each element
// through the allowlist. A list already at or below 2 items is
// preserved lightly truncated rather than allowlist-projected, per the
// summarizer's escape hatch.
func (s *Summarizer) projectList(v any, allowlist map[string]bool, maxItems int) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}

	if len(list) <= 2 {
		return truncateList(list, maxItems)
	}

	truncated := truncateList(list, maxItems)
	projected := make([]any, len(truncated))
	for i, item := range truncated {
		projected[i] = projectItem(item, allowlist)
	}
	return projected
}

func truncateList(list []any, maxItems int) []any {
	if len(list) <= maxItems {
		return list
	}
	out := make([]any, maxItems)
	copy(out, list[:maxItems])
	return out
}

func projectItem(item any, allowlist map[string]bool) any {
	m, ok := item.(map[string]any)
	if !ok {
		return item
	}
	out := make(map[string]any, len(allowlist))
	for k, v := range m {
		if allowlist[k] {
			out[k] = v
		}
	}
	return out
}

func (s *Summarizer) fieldsFor(family Family, level DetailLevel) map[string]bool {
	byLevel, ok := familyAllowlist[family]
	if !ok {
		byLevel = familyAllowlist[FamilyOther]
	}
	fields, ok := byLevel[level]
	if !ok {
		fields = byLevel[DetailStandard]
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func isListField(key string) bool {
	for _, f := range listFields {
		if f == key {
			return true
		}
	}
	return false
}

func isIdentifierField(key string) bool {
	return key == "id" || key == "tmdbId" || key == "tvdbId" || key == "title"
}

// HasNonEmptyContent reports whether value has a non-empty list field
// or a non-map scalar, per the finalization gate's predicate.
func HasNonEmptyContent(value map[string]any) bool {
	for key, v := range value {
		if isListField(key) {
			if list, ok := v.([]any); ok && len(list) > 0 {
				return true
			}
			continue
		}
		switch v.(type) {
		case map[string]any, []any, nil:
			// not a scalar
		default:
			return true
		}
	}
	return false
}
