// Package graph holds the editable node/edge set and enforces structural
// invariants on every mutation. Rejected operations are silent no-ops: the
// model stays total, and callers wanting user feedback re-derive the reason
// via preflight or the connection compatibility check.
package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/flowdeck/flowdeck/pkg/flow/template"
	"github.com/flowdeck/flowdeck/pkg/model/medge"
	"github.com/flowdeck/flowdeck/pkg/model/mnode"
	"github.com/flowdeck/flowdeck/pkg/model/mpin"
	"github.com/flowdeck/flowdeck/pkg/model/mvflow"
)

// pasteOffset is the position increment applied per paste generation so
// pasted copies do not exactly overlap their source.
const pasteOffset = 24.0

type Graph struct {
	name        string
	description string
	interfaces  []string

	nodes []mnode.Node
	edges []medge.Edge

	// nextID seeds fresh node ids; seeded from the max numeric suffix
	// observed on load so new ids never collide with existing ones.
	nextID int

	selectedNodes map[string]bool
	selectedEdges map[string]bool

	clipboard []mnode.Node
	pasteGen  int
}

// New builds an editable graph from a (migrated) flow snapshot.
func New(f *mvflow.VisualFlow) *Graph {
	g := &Graph{
		name:          f.Name,
		description:   f.Description,
		interfaces:    append([]string(nil), f.Interfaces...),
		selectedNodes: make(map[string]bool),
		selectedEdges: make(map[string]bool),
	}
	for i := range f.Nodes {
		g.nodes = append(g.nodes, f.Nodes[i].Clone())
	}
	g.edges = append(g.edges, f.Edges...)
	g.nextID = maxNumericSuffix(g.nodes) + 1
	return g
}

func maxNumericSuffix(nodes []mnode.Node) int {
	maxSeen := 0
	for i := range nodes {
		id := nodes[i].ID
		cut := strings.LastIndexByte(id, '-')
		if cut < 0 {
			continue
		}
		if n, err := strconv.Atoi(id[cut+1:]); err == nil && n > maxSeen {
			maxSeen = n
		}
	}
	return maxSeen
}

func (g *Graph) allocID(kind mnode.NodeKind) string {
	id := fmt.Sprintf("%s-%d", kind, g.nextID)
	g.nextID++
	return id
}

func (g *Graph) node(id string) *mnode.Node {
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			return &g.nodes[i]
		}
	}
	return nil
}

// Nodes returns a snapshot copy of the node list.
func (g *Graph) Nodes() []mnode.Node {
	out := make([]mnode.Node, len(g.nodes))
	for i := range g.nodes {
		out[i] = g.nodes[i].Clone()
	}
	return out
}

// Edges returns a snapshot copy of the edge list.
func (g *Graph) Edges() []medge.Edge {
	return append([]medge.Edge(nil), g.edges...)
}

// AddNode instantiates a node from the canonical template at the given
// position. Returns nil for an unknown kind.
func (g *Graph) AddNode(kind mnode.NodeKind, pos mnode.Position) *mnode.Node {
	n, ok := template.Instantiate(kind)
	if !ok {
		return nil
	}
	n.ID = g.allocID(kind)
	n.Position = pos
	g.nodes = append(g.nodes, n)
	return g.node(n.ID)
}

// Connect validates and adds the candidate edge. Returns false (and changes
// nothing) when any structural rule fails: endpoints must exist, the source
// pin must be an output and the target pin an input, pin types must be
// compatible, and the target input must not already have an incoming edge.
func (g *Graph) Connect(e medge.Edge) bool {
	src := g.node(e.Source)
	dst := g.node(e.Target)
	if src == nil || dst == nil {
		return false
	}
	out := src.Output(e.SourceHandle)
	in := dst.Input(e.TargetHandle)
	if out == nil || in == nil {
		return false
	}
	if !mpin.Compatible(out.Type, in.Type) {
		return false
	}
	// Inputs accept at most one incoming edge; outputs fan out freely.
	for _, existing := range g.edges {
		if existing.Target == e.Target && existing.TargetHandle == e.TargetHandle {
			return false
		}
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("edge-%s-%s-%s-%s", e.Source, e.SourceHandle, e.Target, e.TargetHandle)
	}
	g.edges = append(g.edges, e)
	return true
}

// NodePatch is a partial update applied by UpdateNodeData. Nil fields are
// left untouched.
type NodePatch struct {
	Label       *string
	Position    *mnode.Position
	Inputs      *[]mpin.Pin
	Outputs     *[]mpin.Pin
	PinDefaults map[string]any
	Config      map[string]any
}

// UpdateNodeData merges the patch into the node. If the patch changes the
// set of pin ids, edges referencing now-missing pins are removed, and any
// selection pointing at a removed edge is cleared.
func (g *Graph) UpdateNodeData(id string, patch NodePatch) bool {
	n := g.node(id)
	if n == nil {
		return false
	}
	if patch.Label != nil {
		n.Label = *patch.Label
	}
	if patch.Position != nil {
		n.Position = *patch.Position
	}
	if patch.Inputs != nil {
		n.Inputs = append([]mpin.Pin(nil), (*patch.Inputs)...)
	}
	if patch.Outputs != nil {
		n.Outputs = append([]mpin.Pin(nil), (*patch.Outputs)...)
	}
	for k, v := range patch.PinDefaults {
		if n.PinDefaults == nil {
			n.PinDefaults = map[string]any{}
		}
		n.PinDefaults[k] = mnode.DeepCopyValue(v)
	}
	for k, v := range patch.Config {
		if n.Config == nil {
			n.Config = map[string]any{}
		}
		n.Config[k] = mnode.DeepCopyValue(v)
	}
	if patch.Inputs != nil || patch.Outputs != nil {
		g.pruneEdgesFor(n)
	}
	return true
}

func (g *Graph) pruneEdgesFor(n *mnode.Node) {
	kept := g.edges[:0]
	for _, e := range g.edges {
		dangling := (e.Source == n.ID && n.Output(e.SourceHandle) == nil) ||
			(e.Target == n.ID && n.Input(e.TargetHandle) == nil)
		if dangling {
			delete(g.selectedEdges, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
}

// DeleteNode removes the node and cascades deletion of all touching edges.
func (g *Graph) DeleteNode(id string) bool {
	idx := -1
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	g.nodes = append(g.nodes[:idx], g.nodes[idx+1:]...)
	delete(g.selectedNodes, id)

	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.TouchesNode(id) {
			delete(g.selectedEdges, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return true
}

func (g *Graph) DeleteEdge(id string) bool {
	for i, e := range g.edges {
		if e.ID == id {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			delete(g.selectedEdges, id)
			return true
		}
	}
	return false
}

// DisconnectPin removes every edge incident to the given pin.
func (g *Graph) DisconnectPin(nodeID, pinID string, isInput bool) int {
	removed := 0
	kept := g.edges[:0]
	for _, e := range g.edges {
		hit := (isInput && e.Target == nodeID && e.TargetHandle == pinID) ||
			(!isInput && e.Source == nodeID && e.SourceHandle == pinID)
		if hit {
			delete(g.selectedEdges, e.ID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return removed
}

// ComputeEntryNode returns the node with no incoming edge on the
// distinguished execution input pin. Ties are broken by lowest node id so
// the result is stable across loads; zero candidates yields "".
func (g *Graph) ComputeEntryNode() string {
	hasExecIn := make(map[string]bool)
	for _, e := range g.edges {
		if e.TargetHandle == medge.PinExecIn {
			hasExecIn[e.Target] = true
		}
	}
	candidates := make([]string, 0, len(g.nodes))
	for i := range g.nodes {
		if !hasExecIn[g.nodes[i].ID] {
			candidates = append(candidates, g.nodes[i].ID)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return candidates[0]
}

// Flow materializes the current state as a persistable VisualFlow with a
// freshly recomputed entry node.
func (g *Graph) Flow() mvflow.VisualFlow {
	f := mvflow.VisualFlow{
		Name:        g.name,
		Description: g.description,
		Interfaces:  append([]string(nil), g.interfaces...),
		Nodes:       g.Nodes(),
		Edges:       g.Edges(),
	}
	f.EntryNode = g.ComputeEntryNode()
	return f
}
