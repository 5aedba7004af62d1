package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// LoadRaw reads a config file into one merged raw map. Environment
// variables are expanded before parsing; the "$include" key itself is
// left as written. A "$include" (or "include")
// entry names other files, resolved relative to the file that includes
// them; the merged result layers fragments in include order with the
// including file last, so its own keys win on conflict.
func LoadRaw(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}

	fragments, err := (&loader{}).collect(path)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	for _, frag := range fragments {
		merged = overlay(merged, frag)
	}
	return merged, nil
}

// loader walks an include tree depth-first, flattening it into the
// ordered fragment list LoadRaw folds. chain is the branch currently
// being walked, used both for cycle detection and for the cycle error
// message.
type loader struct {
	chain []string
}

func (l *loader) collect(path string) ([]map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	for _, ancestor := range l.chain {
		if ancestor == abs {
			return nil, fmt.Errorf("config include cycle: %s -> %s", strings.Join(l.chain, " -> "), abs)
		}
	}
	l.chain = append(l.chain, abs)
	defer func() { l.chain = l.chain[:len(l.chain)-1] }()

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	expanded := os.Expand(string(data), func(name string) string {
		if name == "include" {
			return "$include"
		}
		return os.Getenv(name)
	})
	own, err := parseConfigBytes([]byte(expanded), filepath.Ext(abs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	includes, err := popIncludes(own)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}

	var fragments []map[string]any
	for _, ref := range includes {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		if !filepath.IsAbs(ref) {
			ref = filepath.Join(filepath.Dir(abs), ref)
		}
		sub, err := l.collect(ref)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, sub...)
	}
	return append(fragments, own), nil
}

// parseConfigBytes decodes one file's content by extension: JSON5 for
// .json/.json5, otherwise YAML restricted to a single document.
func parseConfigBytes(data []byte, ext string) (map[string]any, error) {
	var raw map[string]any

	switch strings.ToLower(ext) {
	case ".json", ".json5":
		if err := json5.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		var docs []map[string]any
		dec := yaml.NewDecoder(bytes.NewReader(data))
		for {
			var doc map[string]any
			if err := dec.Decode(&doc); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, err
			}
			docs = append(docs, doc)
		}
		if len(docs) > 1 {
			return nil, fmt.Errorf("expected a single YAML document, found %d", len(docs))
		}
		if len(docs) == 1 {
			raw = docs[0]
		}
	}

	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// popIncludes removes the include directive from raw and returns its
// paths. A single string or a list of strings is accepted, under
// "$include" or plain "include".
func popIncludes(raw map[string]any) ([]string, error) {
	var val any
	for _, key := range []string{"$include", "include"} {
		if v, ok := raw[key]; ok {
			val = v
			delete(raw, key)
			break
		}
	}

	switch typed := val.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{typed}, nil
	case []string:
		return typed, nil
	case []any:
		paths := make([]string, 0, len(typed))
		for _, entry := range typed {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("include entries must be strings")
			}
			paths = append(paths, s)
		}
		return paths, nil
	}
	return nil, fmt.Errorf("include must be a string or list of strings")
}

// overlay returns a fresh map combining base and over, with over's
// values winning; nested maps combine recursively so an override file
// can change one leaf without clobbering its siblings. Neither input is
// mutated.
func overlay(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		overMap, overIsMap := v.(map[string]any)
		baseMap, baseIsMap := out[k].(map[string]any)
		if overIsMap && baseIsMap {
			out[k] = overlay(baseMap, overMap)
			continue
		}
		out[k] = v
	}
	return out
}

// decodeRawConfig strictly decodes the merged raw map into Config,
// rejecting unknown fields so typos surface at startup instead of
// silently defaulting.
func decodeRawConfig(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(payload))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
