// Package flowio serializes VisualFlow documents. Import always runs the
// canonicalization engine after parsing and never partially applies: a
// malformed document yields an explicit parse error and no flow.
package flowio

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/flowdeck/flowdeck/pkg/flow/canonical"
	"github.com/flowdeck/flowdeck/pkg/model/mvflow"
)

// ExportJSON renders the flow as a pretty-printed JSON document that
// round-trips losslessly through ImportJSON. A missing id is minted so the
// exported document is importable standalone.
func ExportJSON(f *mvflow.VisualFlow) ([]byte, error) {
	out := *f
	if out.ID == "" {
		out.ID = ulid.Make().String()
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export flow: %w", err)
	}
	return data, nil
}

// ImportJSON parses a (possibly foreign or older) flow document and
// migrates it to the current schema.
func ImportJSON(data []byte) (*mvflow.VisualFlow, error) {
	var f mvflow.VisualFlow
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse flow: %w", err)
	}
	canonical.Migrate(&f)
	return &f, nil
}

// ImportYAML accepts the same document shape in YAML. The document is
// normalized through JSON so both formats share one decode path.
func ImportYAML(data []byte) (*mvflow.VisualFlow, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse flow: %w", err)
	}
	normalized, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return nil, fmt.Errorf("parse flow: %w", err)
	}
	return ImportJSON(normalized)
}

// normalizeYAML rewrites yaml.v3's map[any]any values into map[string]any
// so the document marshals as JSON.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return val
	}
}
