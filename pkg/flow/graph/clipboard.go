package graph

// Clipboard operations deep-clone node data so pasted nodes share no state
// with their source. Edges between copied nodes are intentionally not
// duplicated; the clipboard is nodes-only.

// Select marks a node as selected. Unknown ids are ignored.
func (g *Graph) Select(nodeID string) {
	if g.node(nodeID) != nil {
		g.selectedNodes[nodeID] = true
	}
}

// SelectEdge marks an edge as selected.
func (g *Graph) SelectEdge(edgeID string) {
	for _, e := range g.edges {
		if e.ID == edgeID {
			g.selectedEdges[edgeID] = true
			return
		}
	}
}

// ClearSelection drops all node and edge selection.
func (g *Graph) ClearSelection() {
	g.selectedNodes = make(map[string]bool)
	g.selectedEdges = make(map[string]bool)
}

// CopySelection snapshots the selected nodes into the clipboard and resets
// the paste generation. Returns the number of nodes copied.
func (g *Graph) CopySelection() int {
	g.clipboard = g.clipboard[:0]
	for i := range g.nodes {
		if g.selectedNodes[g.nodes[i].ID] {
			g.clipboard = append(g.clipboard, g.nodes[i].Clone())
		}
	}
	g.pasteGen = 0
	return len(g.clipboard)
}

// Paste inserts clones of the clipboard nodes with fresh ids, offset by one
// increment per paste generation. Returns the new node ids.
func (g *Graph) Paste() []string {
	if len(g.clipboard) == 0 {
		return nil
	}
	g.pasteGen++
	offset := pasteOffset * float64(g.pasteGen)

	ids := make([]string, 0, len(g.clipboard))
	for i := range g.clipboard {
		n := g.clipboard[i].Clone()
		n.ID = g.allocID(n.Kind)
		n.Position.X += offset
		n.Position.Y += offset
		g.nodes = append(g.nodes, n)
		ids = append(ids, n.ID)
	}
	return ids
}

// Duplicate is copy-then-paste of a single node in one step.
func (g *Graph) Duplicate(nodeID string) string {
	src := g.node(nodeID)
	if src == nil {
		return ""
	}
	n := src.Clone()
	n.ID = g.allocID(n.Kind)
	n.Position.X += pasteOffset
	n.Position.Y += pasteOffset
	g.nodes = append(g.nodes, n)
	return n.ID
}
