//nolint:revive // exported
package medge

// Distinguished execution pin ids shared by every node kind that carries
// control flow. ComputeEntryNode and the preflight traversal key off these.
const (
	PinExecIn  = "exec-in"
	PinExecOut = "exec-out"
)

// Edge connects an output pin on the source node to an input pin on the
// target node. Handles are pin ids; an edge is valid only while both
// endpoint pins exist.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
	Animated     bool   `json:"animated,omitempty"`
}

// TouchesPin reports whether e is incident to the given pin on the given
// node, on either side.
func (e Edge) TouchesPin(nodeID, pinID string) bool {
	return (e.Source == nodeID && e.SourceHandle == pinID) ||
		(e.Target == nodeID && e.TargetHandle == pinID)
}

// TouchesNode reports whether e has nodeID as either endpoint.
func (e Edge) TouchesNode(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
