// Package web provides the HTTP surface for automations, triggers and runs.
package web

import (
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
)

// NodeRequest is one node in an automation definition payload.
type NodeRequest struct {
	ID        string         `json:"id"         validate:"required"`
	Type      string         `json:"type"       validate:"required"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config"`
	Disabled  bool           `json:"disabled"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
}

// EdgeRequest is one edge in an automation definition payload.
type EdgeRequest struct {
	ID           string `json:"id"            validate:"required"`
	Source       string `json:"source"        validate:"required"`
	Target       string `json:"target"        validate:"required"`
	SourceHandle string `json:"source_handle"`
}

// SaveAutomationRequest is the request body for creating or replacing an
// automation definition.
type SaveAutomationRequest struct {
	TenantID      string         `json:"tenant_id"      validate:"required"`
	Name          string         `json:"name"           validate:"required,min=3"`
	Description   string         `json:"description"`
	Enabled       bool           `json:"enabled"`
	TriggerType   string         `json:"trigger_type"   validate:"required,oneof=event schedule manual ai_tool"`
	TriggerConfig map[string]any `json:"trigger_config"`
	Nodes         []NodeRequest  `json:"nodes"          validate:"dive"`
	Edges         []EdgeRequest  `json:"edges"          validate:"dive"`
}

// TriggerRequest is the request body for POST /triggers.
type TriggerRequest struct {
	SourceType   string         `json:"source_type"   validate:"required,oneof=event schedule manual ai_tool"`
	TenantID     string         `json:"tenant_id"     validate:"required"`
	AutomationID string         `json:"automation_id"`
	EventName    string         `json:"event_name"`
	TickAt       time.Time      `json:"tick_at"` // Schedule tick time, zero means now
	Payload      map[string]any `json:"payload"`
}

// TestRunRequest is the request body for POST /automations/:id/test.
type TestRunRequest struct {
	Payload map[string]any `json:"payload"`
}

// AutomationResponse wraps an automation with the validation warnings its
// last save produced.
type AutomationResponse struct {
	Automation *models.Automation `json:"automation"`
	Warnings   []string           `json:"warnings,omitempty"`
}

func (r SaveAutomationRequest) nodes() []*models.Node {
	nodes := make([]*models.Node, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		nodes = append(nodes, &models.Node{
			ID:        n.ID,
			Type:      n.Type,
			Name:      n.Name,
			Config:    n.Config,
			Disabled:  n.Disabled,
			PositionX: n.PositionX,
			PositionY: n.PositionY,
		})
	}

	return nodes
}

func (r SaveAutomationRequest) edges() []*models.Edge {
	edges := make([]*models.Edge, 0, len(r.Edges))
	for _, e := range r.Edges {
		edges = append(edges, &models.Edge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
		})
	}

	return edges
}
