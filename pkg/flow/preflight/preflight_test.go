package preflight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/flow/template"
	"github.com/flowdeck/flowdeck/pkg/model/medge"
	"github.com/flowdeck/flowdeck/pkg/model/mnode"
	"github.com/flowdeck/flowdeck/pkg/model/mvflow"
)

func mustInstantiate(t *testing.T, kind mnode.NodeKind, id string) mnode.Node {
	t.Helper()
	n, ok := template.Instantiate(kind)
	require.True(t, ok, "unknown kind %s", kind)
	n.ID = id
	return n
}

func execEdge(id, src, dst string) medge.Edge {
	return medge.Edge{ID: id, Source: src, SourceHandle: medge.PinExecOut, Target: dst, TargetHandle: medge.PinExecIn}
}

func TestValidateEmptyFlow(t *testing.T) {
	assert.Empty(t, Validate(&mvflow.VisualFlow{}))
}

func TestValidateLLMCallMissingBothFields(t *testing.T) {
	f := &mvflow.VisualFlow{
		Nodes: []mnode.Node{
			mustInstantiate(t, mnode.KindOnFlowStart, "on_flow_start-1"),
			mustInstantiate(t, mnode.KindLLMCall, "llm_call-2"),
		},
		Edges: []medge.Edge{execEdge("e1", "on_flow_start-1", "llm_call-2")},
	}
	issues := Validate(f)
	require.Len(t, issues, 2)
	assert.Equal(t, "Missing required field: model", issues[0].Message)
	assert.Equal(t, "Missing required field: provider", issues[1].Message)
}

func TestValidateProviderDefaultModelUnset(t *testing.T) {
	llm := mustInstantiate(t, mnode.KindLLMCall, "llm_call-2")
	llm.PinDefaults["provider"] = "openai"

	f := &mvflow.VisualFlow{
		Nodes: []mnode.Node{
			mustInstantiate(t, mnode.KindOnFlowStart, "on_flow_start-1"),
			llm,
		},
		Edges: []medge.Edge{execEdge("e1", "on_flow_start-1", "llm_call-2")},
	}
	issues := Validate(f)
	require.Len(t, issues, 1)
	assert.Equal(t, "LLM Call", issues[0].NodeLabel)
	assert.Equal(t, "Missing required field: model", issues[0].Message)
}

func TestValidateWiredFieldSatisfiesRule(t *testing.T) {
	llm := mustInstantiate(t, mnode.KindLLMCall, "llm_call-2")
	llm.PinDefaults["model"] = "gpt-4o"
	transform := mustInstantiate(t, mnode.KindTransform, "transform-3")
	transform.PinDefaults["expression"] = `"anthropic"`

	f := &mvflow.VisualFlow{
		Nodes: []mnode.Node{
			mustInstantiate(t, mnode.KindOnFlowStart, "on_flow_start-1"),
			llm,
			transform,
		},
		Edges: []medge.Edge{
			execEdge("e1", "on_flow_start-1", "llm_call-2"),
			{ID: "e2", Source: "transform-3", SourceHandle: "output", Target: "llm_call-2", TargetHandle: "provider"},
		},
	}
	assert.Empty(t, Validate(f))
}

func TestValidateEmptyStringDefaultIsMissing(t *testing.T) {
	llm := mustInstantiate(t, mnode.KindLLMCall, "llm_call-2")
	llm.PinDefaults["provider"] = ""
	llm.PinDefaults["model"] = "gpt-4o"

	f := &mvflow.VisualFlow{
		Nodes: []mnode.Node{
			mustInstantiate(t, mnode.KindOnFlowStart, "on_flow_start-1"),
			llm,
		},
		Edges: []medge.Edge{execEdge("e1", "on_flow_start-1", "llm_call-2")},
	}
	issues := Validate(f)
	require.Len(t, issues, 1)
	assert.Equal(t, "Missing required field: provider", issues[0].Message)
}

func TestValidateUnreachableNodeSkipped(t *testing.T) {
	// A disconnected, misconfigured node never produces an issue.
	f := &mvflow.VisualFlow{
		Nodes: []mnode.Node{
			mustInstantiate(t, mnode.KindOnFlowStart, "on_flow_start-1"),
			mustInstantiate(t, mnode.KindLLMCall, "llm_call-2"),
		},
	}
	assert.Empty(t, Validate(f))
}

func TestValidateFollowsOnlyExecutionEdges(t *testing.T) {
	// llm is linked by a data edge only; still unreachable for preflight.
	start := mustInstantiate(t, mnode.KindOnFlowStart, "on_flow_start-1")
	transform := mustInstantiate(t, mnode.KindTransform, "transform-2")
	transform.PinDefaults["expression"] = "input"
	llm := mustInstantiate(t, mnode.KindLLMCall, "llm_call-3")

	f := &mvflow.VisualFlow{
		Nodes: []mnode.Node{start, transform, llm},
		Edges: []medge.Edge{
			execEdge("e1", "on_flow_start-1", "transform-2"),
			{ID: "e2", Source: "transform-2", SourceHandle: "output", Target: "llm_call-3", TargetHandle: "prompt"},
		},
	}
	assert.Empty(t, Validate(f))
}

func TestValidateBranchesTraversed(t *testing.T) {
	start := mustInstantiate(t, mnode.KindOnFlowStart, "on_flow_start-1")
	cond := mustInstantiate(t, mnode.KindCondition, "condition-2")
	cond.PinDefaults["expression"] = "score > 3"
	llmA := mustInstantiate(t, mnode.KindLLMCall, "llm_call-3")
	llmA.Label = "Branch A"
	llmB := mustInstantiate(t, mnode.KindLLMCall, "llm_call-4")
	llmB.Label = "Branch B"

	f := &mvflow.VisualFlow{
		Nodes: []mnode.Node{start, cond, llmA, llmB},
		Edges: []medge.Edge{
			execEdge("e1", "on_flow_start-1", "condition-2"),
			{ID: "e2", Source: "condition-2", SourceHandle: "exec-true", Target: "llm_call-3", TargetHandle: medge.PinExecIn},
			{ID: "e3", Source: "condition-2", SourceHandle: "exec-false", Target: "llm_call-4", TargetHandle: medge.PinExecIn},
		},
	}
	issues := Validate(f)
	require.Len(t, issues, 4)
	// Sorted by (label, message) for presentation stability.
	assert.Equal(t, "Branch A", issues[0].NodeLabel)
	assert.Equal(t, "Missing required field: model", issues[0].Message)
	assert.Equal(t, "Branch A", issues[1].NodeLabel)
	assert.Equal(t, "Missing required field: provider", issues[1].Message)
	assert.Equal(t, "Branch B", issues[2].NodeLabel)
	assert.Equal(t, "Branch B", issues[3].NodeLabel)
}

func TestValidateConditionExpression(t *testing.T) {
	tests := []struct {
		name string
		expr any
		want []string
	}{
		{name: "valid expression", expr: "score > 3", want: nil},
		{name: "empty expression", expr: "", want: []string{"Missing required field: expression"}},
		{name: "syntax error", expr: "score >", want: []string{"Invalid expression: expression"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := mustInstantiate(t, mnode.KindOnFlowStart, "on_flow_start-1")
			cond := mustInstantiate(t, mnode.KindCondition, "condition-2")
			cond.PinDefaults = map[string]any{"expression": tt.expr}

			f := &mvflow.VisualFlow{
				Nodes: []mnode.Node{start, cond},
				Edges: []medge.Edge{execEdge("e1", "on_flow_start-1", "condition-2")},
			}
			var messages []string
			for _, issue := range Validate(f) {
				messages = append(messages, issue.Message)
			}
			assert.Equal(t, tt.want, messages)
		})
	}
}

func TestValidateFallbackEntryWithoutStartNode(t *testing.T) {
	llm := mustInstantiate(t, mnode.KindLLMCall, "llm_call-1")
	f := &mvflow.VisualFlow{Nodes: []mnode.Node{llm}}
	issues := Validate(f)
	assert.Len(t, issues, 2)
}

func TestValidateConcreteScenario(t *testing.T) {
	// One on_flow_start wired to one llm_call; provider defaulted, model
	// unset. Exactly one issue for the model field.
	llm := mustInstantiate(t, mnode.KindLLMCall, "llm_call-2")
	llm.PinDefaults["provider"] = "openai"

	f := &mvflow.VisualFlow{
		Nodes: []mnode.Node{
			mustInstantiate(t, mnode.KindOnFlowStart, "on_flow_start-1"),
			llm,
		},
		Edges: []medge.Edge{execEdge("e1", "on_flow_start-1", "llm_call-2")},
	}
	issues := Validate(f)
	require.Len(t, issues, 1)
	assert.Equal(t, Issue{
		NodeID:    "llm_call-2",
		NodeLabel: "LLM Call",
		Message:   "Missing required field: model",
	}, issues[0])
}
