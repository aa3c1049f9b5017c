package models

import (
	"maps"
	"time"
)

// ExecutionMode selects between real and simulated side effects.
type ExecutionMode string

const (
	ModeLive ExecutionMode = "live"
	ModeTest ExecutionMode = "test" // Local-effect adapters simulate; outbound HTTP still fires
)

// RunStatus is the lifecycle state of a run. Running is the only
// non-terminal status; no transition ever leaves a terminal state.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCancelled
}

// StepOutcome is the result classification of one node execution.
type StepOutcome string

const (
	StepOutcomeSuccess StepOutcome = "success"
	StepOutcomeFailure StepOutcome = "failure"
	StepOutcomeSkipped StepOutcome = "skipped"
)

// Run is one execution instance of an automation. Steps are appended in
// walk order and never reordered; a run is immutable once terminal.
type Run struct {
	ID             string         `json:"id"`
	AutomationID   string         `json:"automation_id"`
	TenantID       string         `json:"tenant_id"`
	Mode           ExecutionMode  `json:"mode"`
	Status         RunStatus      `json:"status"`
	TriggerPayload map[string]any `json:"trigger_payload,omitempty"`
	Steps          []StepRecord   `json:"steps"`
	Error          string         `json:"error,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

// StepRecord is the append-only log entry for one node execution within a
// run. It is never mutated after being written.
type StepRecord struct {
	NodeID     string         `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Outcome    StepOutcome    `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
}

// RunContext is the mutable working set a walk accumulates. It lives only
// for the duration of one run and is exclusively owned by it; it can be
// reconstructed by replaying the run's step records.
type RunContext struct {
	data map[string]any
}

// NewRunContext seeds a context from the trigger payload.
func NewRunContext(triggerPayload map[string]any) *RunContext {
	data := make(map[string]any, len(triggerPayload))
	maps.Copy(data, triggerPayload)

	return &RunContext{data: data}
}

// Merge folds a node's output into the working set. Later writes win.
func (c *RunContext) Merge(output map[string]any) {
	maps.Copy(c.data, output)
}

// Snapshot returns a shallow copy of the working set for step records and
// adapter inputs.
func (c *RunContext) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(c.data))
	maps.Copy(snapshot, c.data)

	return snapshot
}

// Data returns the live working set. The walker is strictly sequential
// within one run, so no synchronization is needed.
func (c *RunContext) Data() map[string]any {
	return c.data
}
