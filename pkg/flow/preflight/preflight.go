// Package preflight statically validates a flow before dispatch. Only nodes
// reachable from the entry point through execution edges are checked; dead
// nodes never block a run. An empty issue list means the flow is runnable.
package preflight

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"

	"github.com/flowdeck/flowdeck/pkg/model/mnode"
	"github.com/flowdeck/flowdeck/pkg/model/mpin"
	"github.com/flowdeck/flowdeck/pkg/model/mvflow"
)

type Issue struct {
	NodeID    string `json:"node_id"`
	NodeLabel string `json:"node_label"`
	Message   string `json:"message"`
}

// Check inspects one reachable node. wired holds the input pin ids that
// have an incoming data edge.
type Check func(n *mnode.Node, wired map[string]bool) []Issue

// checks is the open/closed rule table: adding a node kind never touches
// the rules of another.
var checks = map[mnode.NodeKind][]Check{
	mnode.KindLLMCall:     {requireField("provider"), requireField("model")},
	mnode.KindAgent:       {requireField("provider"), requireField("model")},
	mnode.KindCondition:   {requireField("expression"), validExpression("expression")},
	mnode.KindForEach:     {requireField("items")},
	mnode.KindTransform:   {requireField("expression"), validExpression("expression")},
	mnode.KindSubflow:     {requireField("flow_id")},
	mnode.KindHTTPRequest: {requireField("url")},
}

// Validate returns all configuration gaps in the reachable execution
// subgraph, sorted by (label, message) for presentation stability.
func Validate(f *mvflow.VisualFlow) []Issue {
	entry := entryNode(f)
	if entry == "" {
		return nil
	}

	var issues []Issue
	for _, id := range reachable(f, entry) {
		n := f.Node(id)
		if n == nil {
			continue
		}
		wired := wiredInputs(f, n)
		for _, check := range checks[n.Kind] {
			issues = append(issues, check(n, wired)...)
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].NodeLabel != issues[j].NodeLabel {
			return issues[i].NodeLabel < issues[j].NodeLabel
		}
		return issues[i].Message < issues[j].Message
	})
	return issues
}

// entryNode picks the first node of the entry kind, else the first node.
func entryNode(f *mvflow.VisualFlow) string {
	for i := range f.Nodes {
		if f.Nodes[i].Kind == mnode.KindOnFlowStart {
			return f.Nodes[i].ID
		}
	}
	if len(f.Nodes) > 0 {
		return f.Nodes[0].ID
	}
	return ""
}

// reachable breadth-first traverses execution edges from entry. An edge
// counts as an execution edge when either endpoint pin is execution-typed.
func reachable(f *mvflow.VisualFlow, entry string) []string {
	seen := map[string]bool{entry: true}
	queue := []string{entry}
	order := []string{entry}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range f.Edges {
			if e.Source != cur || seen[e.Target] {
				continue
			}
			if !isExecutionEdge(f, e.Source, e.SourceHandle, e.Target, e.TargetHandle) {
				continue
			}
			seen[e.Target] = true
			queue = append(queue, e.Target)
			order = append(order, e.Target)
		}
	}
	return order
}

func isExecutionEdge(f *mvflow.VisualFlow, srcID, srcPin, dstID, dstPin string) bool {
	if src := f.Node(srcID); src != nil {
		if p := src.Output(srcPin); p != nil && mpin.IsExecution(p.Type) {
			return true
		}
	}
	if dst := f.Node(dstID); dst != nil {
		if p := dst.Input(dstPin); p != nil && mpin.IsExecution(p.Type) {
			return true
		}
	}
	return false
}

func wiredInputs(f *mvflow.VisualFlow, n *mnode.Node) map[string]bool {
	wired := make(map[string]bool)
	for _, e := range f.Edges {
		if e.Target == n.ID {
			wired[e.TargetHandle] = true
		}
	}
	return wired
}

// requireField demands the pin be wired via an incoming data edge or carry
// a non-empty default.
func requireField(pinID string) Check {
	return func(n *mnode.Node, wired map[string]bool) []Issue {
		if wired[pinID] {
			return nil
		}
		if v, ok := n.PinDefaults[pinID]; ok && !emptyValue(v) {
			return nil
		}
		return []Issue{{
			NodeID:    n.ID,
			NodeLabel: n.Label,
			Message:   fmt.Sprintf("Missing required field: %s", pinID),
		}}
	}
}

// validExpression compiles the pin default when present; a wired pin is
// checked at run time by the engine instead.
func validExpression(pinID string) Check {
	return func(n *mnode.Node, wired map[string]bool) []Issue {
		if wired[pinID] {
			return nil
		}
		src, ok := n.PinDefaults[pinID].(string)
		if !ok || src == "" {
			return nil // absence is requireField's concern
		}
		if _, err := expr.Compile(src, expr.AllowUndefinedVariables()); err != nil {
			return []Issue{{
				NodeID:    n.ID,
				NodeLabel: n.Label,
				Message:   fmt.Sprintf("Invalid expression: %s", pinID),
			}}
		}
		return nil
	}
}

func emptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	}
	return false
}
