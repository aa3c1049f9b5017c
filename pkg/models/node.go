package models

// Built-in node types. The set is closed: an automation referencing a type
// outside this list fails graph validation, it never crashes the walker.
const (
	NodeTypeTriggerEvent    = "trigger:event"
	NodeTypeTriggerSchedule = "trigger:schedule"
	NodeTypeTriggerManual   = "trigger:manual"
	NodeTypeTriggerAITool   = "trigger:ai_tool"

	NodeTypeCondition = "condition"

	NodeTypeCreateLead  = "action:create_lead"
	NodeTypeUpdateLead  = "action:update_lead"
	NodeTypeSendEmail   = "action:send_email"
	NodeTypeHTTPRequest = "action:http_request"
	NodeTypeTransform   = "action:transform"
	NodeTypeWait        = "action:wait"
	NodeTypeLog         = "action:log"
	NodeTypeNoop        = "action:noop"
)

// Edge source handles used by condition nodes to discriminate branches.
const (
	EdgeHandleTrue  = "true"
	EdgeHandleFalse = "false"
)

// Node is one step in an automation graph. IDs are only meaningful within
// the owning automation. Disabled nodes are retained in the graph and
// passed through during a walk.
type Node struct {
	ID        string         `json:"id"       validate:"required"`
	Type      string         `json:"type"     validate:"required"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config"`
	Disabled  bool           `json:"disabled"`
	PositionX int            `json:"position_x"` // Editor layout only, never interpreted
	PositionY int            `json:"position_y"`
}

// IsTrigger reports whether the node is the graph's entry point.
func (n *Node) IsTrigger() bool {
	switch n.Type {
	case NodeTypeTriggerEvent, NodeTypeTriggerSchedule, NodeTypeTriggerManual, NodeTypeTriggerAITool:
		return true
	}

	return false
}

// IsCondition reports whether the node branches via the condition evaluator.
func (n *Node) IsCondition() bool {
	return n.Type == NodeTypeCondition
}

// Edge is a directed connection between two nodes. SourceHandle selects
// among multiple outgoing paths ("true"/"false" on condition nodes) and is
// empty for plain action edges.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
}
