// Package template defines, per node kind, the canonical ordered pin lists
// and default configuration a fresh node is created from. The registry is
// read-only after init; lookups never fail loudly: an unknown kind simply
// reports absence so callers treat the node as an opaque pass-through.
package template

import (
	"github.com/flowdeck/flowdeck/pkg/model/medge"
	"github.com/flowdeck/flowdeck/pkg/model/mnode"
	"github.com/flowdeck/flowdeck/pkg/model/mpin"
)

type Template struct {
	Kind        mnode.NodeKind
	Title       string
	Inputs      []mpin.Pin
	Outputs     []mpin.Pin
	PinDefaults map[string]any
	Config      map[string]any
}

// Lookup returns the canonical template for a node kind. The second return
// is false for unknown kinds.
func Lookup(kind mnode.NodeKind) (Template, bool) {
	t, ok := registry[kind]
	return t, ok
}

// Kinds returns every registered node kind, in registration order.
func Kinds() []mnode.NodeKind {
	out := make([]mnode.NodeKind, len(order))
	copy(out, order)
	return out
}

// Instantiate builds a fresh node from the canonical template. The returned
// node shares no mutable state with the registry. The caller assigns the id.
func Instantiate(kind mnode.NodeKind) (mnode.Node, bool) {
	t, ok := registry[kind]
	if !ok {
		return mnode.Node{}, false
	}
	n := mnode.Node{
		Kind:        t.Kind,
		Label:       t.Title,
		Inputs:      append([]mpin.Pin(nil), t.Inputs...),
		Outputs:     append([]mpin.Pin(nil), t.Outputs...),
		PinDefaults: mnode.DeepCopyMap(t.PinDefaults),
		Config:      mnode.DeepCopyMap(t.Config),
	}
	return n, true
}

func execIn() mpin.Pin {
	return mpin.Pin{ID: medge.PinExecIn, Label: "In", Type: mpin.PinTypeExecution}
}

func execOut() mpin.Pin {
	return mpin.Pin{ID: medge.PinExecOut, Label: "Out", Type: mpin.PinTypeExecution}
}

var order []mnode.NodeKind

var registry = map[mnode.NodeKind]Template{}

func register(t Template) {
	registry[t.Kind] = t
	order = append(order, t.Kind)
}

func init() {
	register(Template{
		Kind:    mnode.KindOnFlowStart,
		Title:   "On Flow Start",
		Outputs: []mpin.Pin{execOut()},
	})
	register(Template{
		Kind:  mnode.KindLLMCall,
		Title: "LLM Call",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "provider", Label: "Provider", Type: mpin.PinTypeProvider, Doc: "LLM provider to call, e.g. openai or anthropic."},
			{ID: "model", Label: "Model", Type: mpin.PinTypeModel, Doc: "Model identifier understood by the provider."},
			{ID: "system_prompt", Label: "System Prompt", Type: mpin.PinTypeString, Doc: "Instructions prepended to every call."},
			{ID: "prompt", Label: "Prompt", Type: mpin.PinTypeString, Doc: "User prompt for this call."},
			{ID: "use_context", Label: "Use Context", Type: mpin.PinTypeBoolean, Doc: "Include upstream flow context in the prompt."},
			{ID: "memory", Label: "Memory", Type: mpin.PinTypeMemory, Doc: "Conversation memory settings."},
			{ID: "tools", Label: "Tools", Type: mpin.PinTypeTools, Doc: "Tools exposed to the model."},
			{ID: "temperature", Label: "Temperature", Type: mpin.PinTypeNumber},
			{ID: "stream", Label: "Stream", Type: mpin.PinTypeBoolean},
		},
		Outputs: []mpin.Pin{
			execOut(),
			{ID: "response", Label: "Response", Type: mpin.PinTypeString, Doc: "Model output text."},
			{ID: "usage", Label: "Usage", Type: mpin.PinTypeObject},
		},
		PinDefaults: map[string]any{"use_context": true, "stream": false},
	})
	register(Template{
		Kind:  mnode.KindAgent,
		Title: "Agent",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "provider", Label: "Provider", Type: mpin.PinTypeProvider},
			{ID: "model", Label: "Model", Type: mpin.PinTypeModel},
			{ID: "system_prompt", Label: "System Prompt", Type: mpin.PinTypeString},
			{ID: "tools", Label: "Tools", Type: mpin.PinTypeTools, Doc: "Tools the agent may invoke per step."},
			{ID: "memory", Label: "Memory", Type: mpin.PinTypeMemory},
			{ID: "use_context", Label: "Use Context", Type: mpin.PinTypeBoolean},
			{ID: "assertions", Label: "Assertions", Type: mpin.PinTypeAssertions, Doc: "Post-conditions checked on the agent result."},
			{ID: "max_iterations", Label: "Max Iterations", Type: mpin.PinTypeNumber},
		},
		Outputs: []mpin.Pin{
			execOut(),
			{ID: "result", Label: "Result", Type: mpin.PinTypeString},
			{ID: "steps", Label: "Steps", Type: mpin.PinTypeArray},
		},
		PinDefaults: map[string]any{"use_context": true, "max_iterations": float64(10)},
	})
	register(Template{
		Kind:  mnode.KindCondition,
		Title: "Condition",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "expression", Label: "Expression", Type: mpin.PinTypeString, Doc: "Boolean expression deciding the branch."},
		},
		Outputs: []mpin.Pin{
			{ID: "exec-true", Label: "True", Type: mpin.PinTypeExecution},
			{ID: "exec-false", Label: "False", Type: mpin.PinTypeExecution},
		},
	})
	register(Template{
		Kind:  mnode.KindForEach,
		Title: "For Each",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "items", Label: "Items", Type: mpin.PinTypeArray, Doc: "Collection iterated over."},
			{ID: "parallel", Label: "Parallel", Type: mpin.PinTypeBoolean},
		},
		Outputs: []mpin.Pin{
			{ID: "exec-loop", Label: "Loop", Type: mpin.PinTypeExecution},
			{ID: "exec-done", Label: "Done", Type: mpin.PinTypeExecution},
			{ID: "item", Label: "Item", Type: mpin.PinTypeAny},
			{ID: "index", Label: "Index", Type: mpin.PinTypeNumber},
		},
		PinDefaults: map[string]any{"parallel": false},
	})
	register(Template{
		Kind:  mnode.KindTransform,
		Title: "Transform",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "input", Label: "Input", Type: mpin.PinTypeAny},
			{ID: "expression", Label: "Expression", Type: mpin.PinTypeString, Doc: "Expression mapping input to output."},
		},
		Outputs: []mpin.Pin{
			execOut(),
			{ID: "output", Label: "Output", Type: mpin.PinTypeAny},
		},
	})
	register(Template{
		Kind:  mnode.KindMemoryGet,
		Title: "Memory Get",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "key", Label: "Key", Type: mpin.PinTypeString},
		},
		Outputs: []mpin.Pin{
			execOut(),
			{ID: "value", Label: "Value", Type: mpin.PinTypeAny},
		},
	})
	register(Template{
		Kind:  mnode.KindMemorySet,
		Title: "Memory Set",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "key", Label: "Key", Type: mpin.PinTypeString},
			{ID: "value", Label: "Value", Type: mpin.PinTypeAny},
		},
		Outputs: []mpin.Pin{execOut()},
	})
	register(Template{
		Kind:  mnode.KindSubflow,
		Title: "Subflow",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "flow_id", Label: "Flow", Type: mpin.PinTypeString, Doc: "Id of the flow to invoke."},
			{ID: "input", Label: "Input", Type: mpin.PinTypeObject},
		},
		Outputs: []mpin.Pin{
			execOut(),
			{ID: "output", Label: "Output", Type: mpin.PinTypeObject},
		},
	})
	register(Template{
		Kind:  mnode.KindUserInput,
		Title: "User Input",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "prompt", Label: "Prompt", Type: mpin.PinTypeString, Doc: "Question shown to the user."},
			{ID: "choices", Label: "Choices", Type: mpin.PinTypeArray},
			{ID: "allow_free_text", Label: "Allow Free Text", Type: mpin.PinTypeBoolean},
		},
		Outputs: []mpin.Pin{
			execOut(),
			{ID: "answer", Label: "Answer", Type: mpin.PinTypeString},
		},
		PinDefaults: map[string]any{"allow_free_text": true},
	})
	register(Template{
		Kind:  mnode.KindHTTPRequest,
		Title: "HTTP Request",
		Inputs: []mpin.Pin{
			execIn(),
			{ID: "url", Label: "URL", Type: mpin.PinTypeString},
			{ID: "method", Label: "Method", Type: mpin.PinTypeString},
			{ID: "body", Label: "Body", Type: mpin.PinTypeObject},
		},
		Outputs: []mpin.Pin{
			execOut(),
			{ID: "response", Label: "Response", Type: mpin.PinTypeObject},
			{ID: "status", Label: "Status", Type: mpin.PinTypeNumber},
		},
		PinDefaults: map[string]any{"method": "GET"},
	})
}
