// Package models defines the core domain models for automation graph execution.
package models

import "time"

// TriggerType identifies what kind of stimulus starts an automation.
type TriggerType string

const (
	TriggerTypeEvent    TriggerType = "event"    // Matched against tenant events (lead.created, ...)
	TriggerTypeSchedule TriggerType = "schedule" // Matched against schedule ticks (cron expression)
	TriggerTypeManual   TriggerType = "manual"   // Started explicitly by a user
	TriggerTypeAITool   TriggerType = "ai_tool"  // Started by the AI assistant as a tool call
)

// Automation is a named workflow owned by one tenant: a trigger plus a graph
// of nodes and edges. Graph edits never affect in-flight runs; the worker
// loads its own copy of the definition per run.
type Automation struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"      validate:"required"`
	Name           string         `json:"name"           validate:"required,min=3"`
	Description    string         `json:"description"`
	Enabled        bool           `json:"enabled"`
	TriggerType    TriggerType    `json:"trigger_type"   validate:"required,oneof=event schedule manual ai_tool"`
	TriggerConfig  map[string]any `json:"trigger_config,omitempty"`
	Nodes          []*Node        `json:"nodes"`
	Edges          []*Edge        `json:"edges"`
	ExecutionCount int64          `json:"execution_count"`
	LastExecutedAt *time.Time     `json:"last_executed_at,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"` // Soft delete while run history references it
}

// EventName returns the configured event name filter for event triggers.
func (a *Automation) EventName() string {
	name, _ := a.TriggerConfig["event_name"].(string)

	return name
}

// CronExpression returns the configured cron expression for schedule triggers.
func (a *Automation) CronExpression() string {
	expr, _ := a.TriggerConfig["cron"].(string)

	return expr
}
