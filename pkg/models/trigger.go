package models

import "time"

// TriggerRequest is the inbound stimulus the matcher filters automations
// against: a tenant event, a schedule tick, or an explicit manual/tool
// invocation.
type TriggerRequest struct {
	SourceType   TriggerType    `json:"source_type"   validate:"required,oneof=event schedule manual ai_tool"`
	TenantID     string         `json:"tenant_id"     validate:"required"`
	AutomationID string         `json:"automation_id,omitempty"` // Required for manual and ai_tool
	EventName    string         `json:"event_name,omitempty"`    // Required for event
	TickAt       time.Time      `json:"tick_at,omitempty"`       // Schedule tick time, zero means now
	Payload      map[string]any `json:"payload,omitempty"`
}
