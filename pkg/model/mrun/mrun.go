//nolint:revive // exported
package mrun

import "time"

type RunStatus = string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusWaiting   RunStatus = "waiting"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// WaitReason subdivides RunStatusWaiting.
type WaitReason = string

const (
	WaitReasonUserPrompt WaitReason = "user_prompt"
	WaitReasonSubflow    WaitReason = "subflow"
)

// IsTerminal reports whether s is a one-way final status.
func IsTerminal(s RunStatus) bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

func StringRunStatus(s RunStatus) string {
	switch s {
	case RunStatusRunning:
		return "Running"
	case RunStatusWaiting:
		return "Waiting"
	case RunStatusPaused:
		return "Paused"
	case RunStatusCompleted:
		return "Completed"
	case RunStatusFailed:
		return "Failed"
	case RunStatusCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// RunSummary is the durable per-run record owned by the remote engine. The
// client never mutates it; it only replaces its snapshot with newer ones.
type RunSummary struct {
	RunID         string     `json:"run_id"`
	FlowID        string     `json:"flow_id,omitempty"`
	Status        RunStatus  `json:"status"`
	WaitReason    WaitReason `json:"wait_reason,omitempty"`
	Paused        bool       `json:"paused"`
	CurrentNode   string     `json:"current_node,omitempty"`
	Prompt        string     `json:"prompt,omitempty"`
	Choices       []string   `json:"choices,omitempty"`
	AllowFreeText bool       `json:"allow_free_text,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RunHistory is the ledger view of a single run: the summary plus the full
// append-only event sequence.
type RunHistory struct {
	Run    RunSummary       `json:"run"`
	Events []ExecutionEvent `json:"events"`
}
