//nolint:revive // exported
package canonical

import "github.com/flowdeck/flowdeck/pkg/model/mnode"

// Fold collapses a family of deprecated scalar pins into one structured
// default under Target. Keys maps each folded pin id to its key inside the
// resulting object. A fold only applies while none of the folded pins has an
// incident edge; a connected pin is never silently dropped.
type Fold struct {
	Pins   []string
	Target string
	Keys   map[string]string
}

// Promotion lifts a legacy free-form config key into a pin default, making
// the setting addressable as a data pin. The config key is removed once
// migrated; an already-present default is never stomped.
type Promotion struct {
	ConfigKey string
	PinID     string
}

// Rule captures the full schema history of one node kind. The engine applies
// one generic algorithm over this table, so new kinds are additive.
type Rule struct {
	// Renames maps old input pin ids to their current ids.
	Renames map[string]string

	Folds      []Fold
	Promotions []Promotion

	// LegacyLabels are former default display labels; a node label matching
	// one of these (or empty) is backfilled from the current template title.
	LegacyLabels []string

	// DropUnused lists deprecated pin ids removed when nothing references
	// them. A connected pin survives regardless.
	DropUnused []string
}

var rules = map[mnode.NodeKind]Rule{
	mnode.KindLLMCall: {
		Renames: map[string]string{
			"include_context": "use_context",
			"system":          "system_prompt",
		},
		Folds: []Fold{{
			Pins:   []string{"memory_enabled", "memory_window", "memory_key"},
			Target: "memory",
			Keys: map[string]string{
				"memory_enabled": "enabled",
				"memory_window":  "window",
				"memory_key":     "key",
			},
		}},
		Promotions: []Promotion{
			{ConfigKey: "stream", PinID: "stream"},
			{ConfigKey: "temperature", PinID: "temperature"},
		},
		LegacyLabels: []string{"LLM", "LLM Node"},
		DropUnused:   []string{"legacy_stop"},
	},
	mnode.KindAgent: {
		Renames: map[string]string{
			"include_context": "use_context",
			"system":          "system_prompt",
		},
		Folds: []Fold{{
			Pins:   []string{"memory_enabled", "memory_window", "memory_key"},
			Target: "memory",
			Keys: map[string]string{
				"memory_enabled": "enabled",
				"memory_window":  "window",
				"memory_key":     "key",
			},
		}},
		Promotions: []Promotion{
			{ConfigKey: "max_iterations", PinID: "max_iterations"},
		},
		LegacyLabels: []string{"AI Agent"},
	},
	mnode.KindCondition: {
		Renames:      map[string]string{"cond": "expression"},
		LegacyLabels: []string{"If", "Branch"},
	},
	mnode.KindForEach: {
		Promotions:   []Promotion{{ConfigKey: "parallel", PinID: "parallel"}},
		LegacyLabels: []string{"Loop"},
	},
	mnode.KindMemoryGet: {
		Renames: map[string]string{"mem_key": "key"},
	},
	mnode.KindMemorySet: {
		Renames: map[string]string{"mem_key": "key"},
	},
}

// RuleFor exposes the migration rule for a node kind, mainly for tests.
func RuleFor(kind mnode.NodeKind) (Rule, bool) {
	r, ok := rules[kind]
	return r, ok
}
