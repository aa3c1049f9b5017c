// Package events defines the event types carried on the bus between the
// API, the worker, and observers.
package events

import (
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every autoflow event; consumers filter on the event_type
// metadata key.
const Topic = "autoflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunQueuedEvent        EventType = "run.queued"
	RunStartedEvent       EventType = "run.started"
	RunStepCompletedEvent EventType = "run.step.completed"
	RunFinishedEvent      EventType = "run.finished"
	RunFailedEvent        EventType = "run.failed"
	RunCancelledEvent     EventType = "run.cancelled"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	TenantID     string         `json:"tenant_id"`
	AutomationID string         `json:"automation_id"`
	WorkerID     string         `json:"worker_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, tenantID, automationID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		TenantID:     tenantID,
		AutomationID: automationID,
	}
}

// RunQueued asks a worker to execute a freshly created run. The run record
// already exists in running state when this event is published.
type RunQueued struct {
	BaseEvent

	RunID string               `json:"run_id"`
	Mode  models.ExecutionMode `json:"mode"`
}

func (e RunQueued) GetType() EventType {
	return RunQueuedEvent
}

type RunStarted struct {
	BaseEvent

	RunID string               `json:"run_id"`
	Mode  models.ExecutionMode `json:"mode"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunStepCompleted struct {
	BaseEvent

	RunID      string             `json:"run_id"`
	NodeID     string             `json:"node_id"`
	NodeType   string             `json:"node_type"`
	Outcome    models.StepOutcome `json:"outcome"`
	DurationMS int64              `json:"duration_ms"`
}

func (e RunStepCompleted) GetType() EventType {
	return RunStepCompletedEvent
}

type RunFinished struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Steps    int           `json:"steps"`
	Duration time.Duration `json:"duration"`
}

func (e RunFinished) GetType() EventType {
	return RunFinishedEvent
}

type RunFailed struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent

	RunID string `json:"run_id"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}
