//nolint:revive // exported
package mnode

import (
	"github.com/flowdeck/flowdeck/pkg/model/mpin"
)

// NodeKind identifies the canonical template a node was created from.
// Kinds outside this set are treated as opaque pass-throughs everywhere.
type NodeKind = string

const (
	KindOnFlowStart NodeKind = "on_flow_start"
	KindLLMCall     NodeKind = "llm_call"
	KindAgent       NodeKind = "agent"
	KindCondition   NodeKind = "condition"
	KindForEach     NodeKind = "for_each"
	KindTransform   NodeKind = "transform"
	KindMemoryGet   NodeKind = "memory_get"
	KindMemorySet   NodeKind = "memory_set"
	KindSubflow     NodeKind = "subflow"
	KindUserInput   NodeKind = "user_input"
	KindHTTPRequest NodeKind = "http_request"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is the persisted and editable representation of one graph node.
// Pin identity is independent of node identity: pins may be reordered or
// added without breaking edges as long as ids are preserved.
type Node struct {
	ID          string         `json:"id"`
	Kind        NodeKind       `json:"nodeType"`
	Label       string         `json:"label,omitempty"`
	Position    Position       `json:"position"`
	Inputs      []mpin.Pin     `json:"inputs"`
	Outputs     []mpin.Pin     `json:"outputs"`
	PinDefaults map[string]any `json:"pinDefaults,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

func (n *Node) Input(pinID string) *mpin.Pin {
	if i := mpin.FindByID(n.Inputs, pinID); i >= 0 {
		return &n.Inputs[i]
	}
	return nil
}

func (n *Node) Output(pinID string) *mpin.Pin {
	if i := mpin.FindByID(n.Outputs, pinID); i >= 0 {
		return &n.Outputs[i]
	}
	return nil
}

// Clone returns a structural deep copy sharing no mutable state with n.
func (n *Node) Clone() Node {
	c := *n
	c.Inputs = append([]mpin.Pin(nil), n.Inputs...)
	c.Outputs = append([]mpin.Pin(nil), n.Outputs...)
	c.PinDefaults = DeepCopyMap(n.PinDefaults)
	c.Config = DeepCopyMap(n.Config)
	return c
}

// DeepCopyMap recursively copies a map[string]any.
func DeepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = DeepCopyValue(v)
	}
	return result
}

// DeepCopyValue creates a deep copy of any JSON-shaped value.
func DeepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return DeepCopyMap(val)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = DeepCopyValue(item)
		}
		return result
	case []map[string]any:
		result := make([]map[string]any, len(val))
		for i, item := range val {
			if mapCopy, ok := DeepCopyValue(item).(map[string]any); ok {
				result[i] = mapCopy
			}
		}
		return result
	default:
		// Primitive types (string, int, float, bool, etc.) are copied by value.
		return val
	}
}
