//nolint:revive // exported
package mrun

// EventType tags the ExecutionEvent union. Unknown tags are retained
// verbatim in the event log; consumers must not reject them.
type EventType = string

const (
	EventFlowStart     EventType = "flow_start"
	EventFlowComplete  EventType = "flow_complete"
	EventFlowError     EventType = "flow_error"
	EventFlowCancelled EventType = "flow_cancelled"
	EventTraceUpdate   EventType = "trace_update"
	EventNodeStart     EventType = "node_start"
	EventNodeComplete  EventType = "node_complete"
	EventNodeError     EventType = "node_error"
	EventUserPrompt    EventType = "user_prompt"
)

// ExecutionEvent is one entry of a run's append-only event sequence.
// Payload carries the tag-specific fields; its shape is owned by the remote
// engine and interpreted loosely on this side.
type ExecutionEvent struct {
	Type    EventType      `json:"type"`
	RunID   string         `json:"run_id,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// IsTrace reports whether the event belongs to the diagnostic trace log
// rather than the main execution log.
func (e ExecutionEvent) IsTrace() bool {
	return e.Type == EventTraceUpdate
}

// CompletionFailed interprets a flow_complete payload. Only an explicit
// success=false marks failure; an absent field defaults to success.
func (e ExecutionEvent) CompletionFailed() bool {
	if e.Type != EventFlowComplete {
		return false
	}
	v, ok := e.Payload["success"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && !b
}
