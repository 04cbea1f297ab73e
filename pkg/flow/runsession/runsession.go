// Package runsession reconciles three sources of run truth (the live event
// stream, the durable run ledger, and user commands) into one coherent
// observable view. Every update goes through a single mutex-guarded reducer,
// and every ledger refresh replaces the snapshot wholesale, so interleaved
// producers cannot wedge the state.
package runsession

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/pkg/eventstream"
	"github.com/flowdeck/flowdeck/pkg/model/mrun"
)

// Mode is the connection axis of the observable state.
type Mode int8

const (
	ModeLive       Mode = 0
	ModeInspecting Mode = 1
)

func StringMode(m Mode) string {
	switch m {
	case ModeLive:
		return "Live"
	case ModeInspecting:
		return "Inspecting"
	}
	return "Unknown"
}

// DefaultPollInterval is the fixed ledger refresh cadence while inspecting a
// non-terminal run. The interval itself provides eventual consistency, so
// poll failures are swallowed rather than retried with backoff.
const DefaultPollInterval = 2 * time.Second

// Dispatcher sends commands to the remote execution engine. All commands
// are fire-and-forget from the session's perspective: effects show up only
// through the next event or poll.
type Dispatcher interface {
	Start(ctx context.Context, flowID string, input map[string]any) (string, error)
	Pause(ctx context.Context, runID string) error
	Resume(ctx context.Context, runID string) error
	Cancel(ctx context.Context, runID string) error
	AnswerPrompt(ctx context.Context, runID, text string) error
}

// Ledger reads durably persisted run state.
type Ledger interface {
	ListRuns(ctx context.Context, flowID string, limit int) ([]mrun.RunSummary, error)
	GetRunHistory(ctx context.Context, runID string) (mrun.RunHistory, error)
}

// View is an immutable snapshot of the session, safe to hand across
// goroutine boundaries.
type View struct {
	Mode   Mode
	Run    mrun.RunSummary
	Events []mrun.ExecutionEvent
	Traces []mrun.ExecutionEvent
}

type Session struct {
	mu     sync.Mutex
	mode   Mode
	run    mrun.RunSummary
	events []mrun.ExecutionEvent
	traces []mrun.ExecutionEvent

	stopPoll context.CancelFunc

	ledger     Ledger
	dispatcher Dispatcher
	interval   time.Duration
	logger     *slog.Logger

	updates *eventstream.Streamer[View]
}

type Option func(*Session)

func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.interval = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func New(ledger Ledger, dispatcher Dispatcher, opts ...Option) *Session {
	s := &Session{
		ledger:     ledger,
		dispatcher: dispatcher,
		interval:   DefaultPollInterval,
		logger:     slog.Default(),
		updates:    eventstream.New[View](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe delivers a View after every state change until ctx ends.
func (s *Session) Subscribe(ctx context.Context) <-chan View {
	return s.updates.Subscribe(ctx)
}

// Close stops any poller and shuts down the update stream.
func (s *Session) Close() {
	s.mu.Lock()
	if s.stopPoll != nil {
		s.stopPoll()
		s.stopPoll = nil
	}
	s.mu.Unlock()
	s.updates.Shutdown()
}

func (s *Session) viewLocked() View {
	return View{
		Mode:   s.mode,
		Run:    s.run,
		Events: append([]mrun.ExecutionEvent(nil), s.events...),
		Traces: append([]mrun.ExecutionEvent(nil), s.traces...),
	}
}

func (s *Session) publishLocked() {
	s.updates.Publish(s.viewLocked())
}

// ApplyEvent feeds one live streamed event through the reducer.
func (s *Session) ApplyEvent(ev mrun.ExecutionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// While inspecting, the view belongs to the ledger. Only a fresh
	// flow_start flips back to live; any other stray event is dropped.
	if s.mode == ModeInspecting && ev.Type != mrun.EventFlowStart {
		return
	}

	switch ev.Type {
	case mrun.EventFlowStart:
		// Switching back to live view takes priority over inspection:
		// reset the log and drop any historical run being viewed.
		if s.stopPoll != nil {
			s.stopPoll()
			s.stopPoll = nil
		}
		s.mode = ModeLive
		s.events = s.events[:0]
		s.traces = s.traces[:0]
		s.run = mrun.RunSummary{
			RunID:     ev.RunID,
			Status:    mrun.RunStatusRunning,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		s.events = append(s.events, ev)

	case mrun.EventTraceUpdate:
		// Traces are diagnostic, never execution outcome.
		s.traces = append(s.traces, ev)

	case mrun.EventFlowComplete:
		s.events = append(s.events, ev)
		if ev.CompletionFailed() {
			s.run.Status = mrun.RunStatusFailed
		} else {
			s.run.Status = mrun.RunStatusCompleted
		}
		s.run.UpdatedAt = time.Now().UTC()

	case mrun.EventFlowError:
		s.events = append(s.events, ev)
		s.run.Status = mrun.RunStatusFailed
		s.run.UpdatedAt = time.Now().UTC()

	case mrun.EventFlowCancelled:
		s.events = append(s.events, ev)
		s.run.Status = mrun.RunStatusCancelled
		s.run.UpdatedAt = time.Now().UTC()

	case mrun.EventUserPrompt:
		s.events = append(s.events, ev)
		s.run.Status = mrun.RunStatusWaiting
		s.run.WaitReason = mrun.WaitReasonUserPrompt
		// Assigned unconditionally: a plain prompt must not inherit the
		// choices of an earlier one in the same run.
		s.run.Prompt, _ = ev.Payload["prompt"].(string)
		s.run.Choices = promptChoices(ev.Payload["choices"])
		s.run.AllowFreeText, _ = ev.Payload["allow_free_text"].(bool)
		s.run.UpdatedAt = time.Now().UTC()

	default:
		// Node-level and unknown event types append verbatim.
		s.events = append(s.events, ev)
		if ev.NodeID != "" {
			s.run.CurrentNode = ev.NodeID
		}
	}
	s.publishLocked()
}

// promptChoices decodes the loosely typed choices list from an event
// payload, dropping non-string entries.
func promptChoices(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// applySnapshot replaces the run view wholesale with a ledger snapshot.
// Not a delta merge: this keeps the reducer idempotent when a poll result
// and a streamed event race. ctx is the poller's context; a snapshot whose
// poller was cancelled arrives too late and must not clobber a newer view.
func (s *Session) applySnapshot(ctx context.Context, h mrun.RunHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	s.mode = ModeInspecting
	s.run = h.Run
	s.events = s.events[:0]
	s.traces = s.traces[:0]
	for _, ev := range h.Events {
		if ev.IsTrace() {
			s.traces = append(s.traces, ev)
		} else {
			s.events = append(s.events, ev)
		}
	}
	s.publishLocked()
}

// Inspect opens the historical view on a run. The ledger is fetched
// immediately, then polled on the fixed interval until the run reaches a
// terminal status or ctx ends. A previous inspection's poller is stopped
// first; closing the view must never leak a background ticker.
func (s *Session) Inspect(ctx context.Context, runID string) {
	s.mu.Lock()
	if s.stopPoll != nil {
		s.stopPoll()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.stopPoll = cancel
	s.mu.Unlock()

	go s.pollLoop(pollCtx, runID)
}

// StopInspect halts polling without tearing the session down.
func (s *Session) StopInspect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopPoll != nil {
		s.stopPoll()
		s.stopPoll = nil
	}
}

func (s *Session) pollLoop(ctx context.Context, runID string) {
	if s.refresh(ctx, runID) {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.refresh(ctx, runID) {
				return
			}
		}
	}
}

// refresh fetches one ledger snapshot; true means polling is done. Fetch
// errors are treated as "try again next tick".
func (s *Session) refresh(ctx context.Context, runID string) bool {
	h, err := s.ledger.GetRunHistory(ctx, runID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		s.logger.Debug("run ledger poll failed", "run_id", runID, "error", err)
		return false
	}
	s.applySnapshot(ctx, h)
	return mrun.IsTerminal(h.Run.Status)
}

// Start dispatches a new run for the flow and returns its run id.
func (s *Session) Start(ctx context.Context, flowID string, input map[string]any) (string, error) {
	return s.dispatcher.Start(ctx, flowID, input)
}

// Pause, Resume, Cancel and Answer are fire-and-forget: errors are logged,
// and the authoritative effect arrives through the next event or poll.
func (s *Session) Pause(ctx context.Context, runID string) {
	if err := s.dispatcher.Pause(ctx, runID); err != nil {
		s.logger.Warn("pause command failed", "run_id", runID, "error", err)
	}
}

func (s *Session) Resume(ctx context.Context, runID string) {
	if err := s.dispatcher.Resume(ctx, runID); err != nil {
		s.logger.Warn("resume command failed", "run_id", runID, "error", err)
	}
}

func (s *Session) Cancel(ctx context.Context, runID string) {
	if err := s.dispatcher.Cancel(ctx, runID); err != nil {
		s.logger.Warn("cancel command failed", "run_id", runID, "error", err)
	}
}

func (s *Session) Answer(ctx context.Context, runID, text string) {
	if err := s.dispatcher.AnswerPrompt(ctx, runID, text); err != nil {
		s.logger.Warn("prompt answer failed", "run_id", runID, "error", err)
	}
}
