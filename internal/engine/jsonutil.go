package engine

import (
	"encoding/json"
	"io"
	"strings"
)

// stringsReader adapts a raw schema string for jsonschema.Compiler's
// AddResource, which takes an io.Reader.
func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

// decodeJSONObject parses raw into a generic map, used to forward a
// tool's declared schema to the LLM provider as-is.
func decodeJSONObject(raw string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// jsonMarshalCompact marshals v without indentation, used for the
// {ref_id, summary} tool message payload.
func jsonMarshalCompact(v any) ([]byte, error) {
	return json.Marshal(v)
}
