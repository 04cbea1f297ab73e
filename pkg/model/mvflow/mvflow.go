//nolint:revive // exported
package mvflow

import (
	"github.com/flowdeck/flowdeck/pkg/model/medge"
	"github.com/flowdeck/flowdeck/pkg/model/mnode"
)

// VisualFlow is the persisted unit: one editable graph document.
// EntryNode is derived, not authoritative; it is recomputed at save time as
// the node with no incoming execution edge (lowest node id wins on ties).
type VisualFlow struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Interfaces  []string      `json:"interfaces,omitempty"`
	Nodes       []mnode.Node  `json:"nodes"`
	Edges       []medge.Edge  `json:"edges"`
	EntryNode   string        `json:"entryNode,omitempty"`
}

// Node returns the node with the given id, or nil.
func (f *VisualFlow) Node(id string) *mnode.Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// PinConnected reports whether any edge touches the given pin on the given
// node, on either side.
func (f *VisualFlow) PinConnected(nodeID, pinID string) bool {
	for _, e := range f.Edges {
		if e.TouchesPin(nodeID, pinID) {
			return true
		}
	}
	return false
}
