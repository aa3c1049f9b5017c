package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/autoflowhq/autoflow/pkg/condition"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
	"github.com/autoflowhq/autoflow/pkg/registry"
)

// ErrAutomationNotFound is returned when an automation is not found.
var ErrAutomationNotFound = persistence.ErrAutomationNotFound

// Automation implements automation definition management: CRUD, the
// enable/disable switch, and definition validation against the registered
// node types.
type Automation struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	logger      *slog.Logger
}

// NewAutomation creates a new automation service.
func NewAutomation(logger *slog.Logger, p persistence.Persistence, reg *registry.Registry) *Automation {
	return &Automation{
		persistence: p,
		registry:    reg,
		logger:      logger.With("module", "automation_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Automation) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// SaveAutomationRequest carries the writable fields of an automation
// definition.
type SaveAutomationRequest struct {
	TenantID      string             `validate:"required"`
	Name          string             `validate:"required"`
	Description   string
	Enabled       bool
	TriggerType   models.TriggerType `validate:"required"`
	TriggerConfig map[string]any
	Nodes         []*models.Node
	Edges         []*models.Edge
}

// List returns a tenant's automations, excluding deleted ones.
func (s *Automation) List(ctx context.Context, tenantID string) ([]*models.Automation, error) {
	if tenantID == "" {
		return nil, NewValidationError("List", "TENANT_REQUIRED", "tenant id is required", ErrTenantRequired)
	}

	automations, err := s.persistence.AutomationRepository().List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}

	return automations, nil
}

// Get returns an automation by id. Deleted automations report a conflict so
// callers can distinguish them from never-existed ids.
func (s *Automation) Get(ctx context.Context, id string) (*models.Automation, error) {
	automation, err := s.persistence.AutomationRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if automation.DeletedAt != nil {
		return nil, &ServiceError{Op: "Get", Code: "AUTOMATION_DELETED", Err: ErrAutomationDeleted}
	}

	return automation, nil
}

// Create validates and stores a new automation. The returned warnings are
// advisory (e.g. unreachable nodes) and do not block the save.
func (s *Automation) Create(ctx context.Context, req SaveAutomationRequest) (*models.Automation, []string, error) {
	automation := &models.Automation{
		TenantID:      req.TenantID,
		Name:          req.Name,
		Description:   req.Description,
		Enabled:       req.Enabled,
		TriggerType:   req.TriggerType,
		TriggerConfig: req.TriggerConfig,
		Nodes:         req.Nodes,
		Edges:         req.Edges,
	}

	warnings, err := s.Validate(automation)
	if err != nil {
		return nil, nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate automation ID: %w", err)
	}

	automation.ID = id.String()

	if err := s.persistence.AutomationRepository().Save(ctx, automation); err != nil {
		return nil, nil, fmt.Errorf("failed to save automation: %w", err)
	}

	s.logger.InfoContext(ctx, "Automation created",
		"automation_id", automation.ID,
		"tenant_id", automation.TenantID,
		"trigger_type", automation.TriggerType)

	return automation, warnings, nil
}

// Update validates and stores changes to an existing automation. Execution
// counters and timestamps carry over from the stored record.
func (s *Automation) Update(ctx context.Context, id string, req SaveAutomationRequest) (*models.Automation, []string, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.Enabled = req.Enabled
	existing.TriggerType = req.TriggerType
	existing.TriggerConfig = req.TriggerConfig
	existing.Nodes = req.Nodes
	existing.Edges = req.Edges

	warnings, err := s.Validate(existing)
	if err != nil {
		return nil, nil, err
	}

	if err := s.persistence.AutomationRepository().Save(ctx, existing); err != nil {
		return nil, nil, fmt.Errorf("failed to save automation: %w", err)
	}

	s.logger.InfoContext(ctx, "Automation updated", "automation_id", id)

	return existing, warnings, nil
}

// Delete soft-deletes an automation. Its run history stays readable.
func (s *Automation) Delete(ctx context.Context, id string) error {
	if err := s.persistence.AutomationRepository().SoftDelete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Automation deleted", "automation_id", id)

	return nil
}

// SetEnabled flips the automation's enabled switch. Enabling re-validates
// the definition so a broken automation cannot be switched on.
func (s *Automation) SetEnabled(ctx context.Context, id string, enabled bool) (*models.Automation, error) {
	automation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if enabled {
		if _, err := s.Validate(automation); err != nil {
			return nil, err
		}
	}

	automation.Enabled = enabled

	if err := s.persistence.AutomationRepository().Save(ctx, automation); err != nil {
		return nil, fmt.Errorf("failed to save automation: %w", err)
	}

	s.logger.InfoContext(ctx, "Automation toggled", "automation_id", id, "enabled", enabled)

	return automation, nil
}

// RecordExecution updates the automation's live execution counters after a
// run finished. Test runs never reach this path. Counter updates are best
// effort; a failure here must not fail the run that triggered it.
func (s *Automation) RecordExecution(ctx context.Context, id string, runErr string) {
	automation, err := s.persistence.AutomationRepository().GetByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load automation for counter update",
			"automation_id", id, "error", err)

		return
	}

	now := time.Now().UTC()
	automation.ExecutionCount++
	automation.LastExecutedAt = &now
	automation.LastError = runErr

	if err := s.persistence.AutomationRepository().Save(ctx, automation); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update execution counters",
			"automation_id", id, "error", err)
	}
}

// Validate checks an automation definition for structural problems. It
// returns an error for anything that would make runs fail on configuration
// (unknown node types, bad configs, broken edges) and warnings for shapes
// that are legal but probably unintended.
func (s *Automation) Validate(automation *models.Automation) ([]string, error) {
	const op = "Validate"

	if automation.Name == "" {
		return nil, NewValidationError(op, "NAME_REQUIRED", "automation name is required", ErrAutomationNameRequired)
	}

	if automation.TenantID == "" {
		return nil, NewValidationError(op, "TENANT_REQUIRED", "tenant id is required", ErrTenantRequired)
	}

	if err := s.validateTrigger(automation); err != nil {
		return nil, err
	}

	nodeIDs := make(map[string]bool, len(automation.Nodes))
	hasTrigger := false

	for _, node := range automation.Nodes {
		if nodeIDs[node.ID] {
			return nil, NewValidationError(op, "DUPLICATE_NODE_ID",
				fmt.Sprintf("duplicate node id %q", node.ID), ErrInvalidRequest)
		}

		nodeIDs[node.ID] = true

		if node.IsTrigger() {
			hasTrigger = true

			continue
		}

		// Condition nodes are dispatched by the engine itself, not through
		// the adapter registry.
		if node.IsCondition() {
			if _, err := condition.Parse(node.Config); err != nil {
				return nil, NewValidationError(op, "INVALID_NODE_CONFIG",
					fmt.Sprintf("node %q: %v", node.ID, err), ErrInvalidNodeConfig)
			}

			continue
		}

		if !s.registry.IsRegistered(node.Type) {
			return nil, NewValidationError(op, "UNKNOWN_NODE_TYPE",
				fmt.Sprintf("node %q has unknown type %q", node.ID, node.Type), ErrUnknownNodeType)
		}

		if _, err := s.registry.CreateAdapter(node.Type, node.Config); err != nil {
			return nil, NewValidationError(op, "INVALID_NODE_CONFIG",
				fmt.Sprintf("node %q: %v", node.ID, err), ErrInvalidNodeConfig)
		}
	}

	if len(automation.Nodes) > 0 && !hasTrigger {
		return nil, NewValidationError(op, "TRIGGER_NODE_REQUIRED",
			"automation must have a trigger node", ErrTriggerNodeRequired)
	}

	for _, edge := range automation.Edges {
		if !nodeIDs[edge.Source] || !nodeIDs[edge.Target] {
			return nil, NewValidationError(op, "INVALID_EDGE",
				fmt.Sprintf("edge %q references unknown nodes", edge.ID), ErrInvalidEdge)
		}
	}

	return s.collectWarnings(automation), nil
}

func (s *Automation) validateTrigger(automation *models.Automation) error {
	const op = "Validate"

	switch automation.TriggerType {
	case models.TriggerTypeEvent:
		if automation.EventName() == "" {
			return NewValidationError(op, "INVALID_TRIGGER_CONFIG",
				"event trigger requires event_name", ErrInvalidTriggerConfig)
		}
	case models.TriggerTypeSchedule:
		expression := automation.CronExpression()
		if expression == "" {
			return NewValidationError(op, "INVALID_TRIGGER_CONFIG",
				"schedule trigger requires a cron expression", ErrInvalidTriggerConfig)
		}

		if _, err := models.NewSchedule(automation.ID, expression); err != nil {
			return NewValidationError(op, "INVALID_TRIGGER_CONFIG",
				fmt.Sprintf("invalid cron expression %q: %v", expression, err), ErrInvalidTriggerConfig)
		}
	case models.TriggerTypeManual, models.TriggerTypeAITool:
	default:
		return NewValidationError(op, "INVALID_TRIGGER_TYPE",
			fmt.Sprintf("invalid trigger type %q", automation.TriggerType), ErrInvalidTriggerType)
	}

	return nil
}

// collectWarnings flags definition shapes that run fine but are probably
// editor mistakes: nodes nothing can reach, and condition nodes missing one
// of their branches.
func (s *Automation) collectWarnings(automation *models.Automation) []string {
	warnings := make([]string, 0)

	graph := models.NewGraph(automation)

	for _, id := range graph.Unreachable() {
		warnings = append(warnings, fmt.Sprintf("node %q is unreachable from the trigger", id))
	}

	for _, node := range automation.Nodes {
		if !node.IsCondition() || node.Disabled {
			continue
		}

		for _, handle := range []string{models.EdgeHandleTrue, models.EdgeHandleFalse} {
			if _, ok := graph.OutgoingByHandle(node.ID, handle); !ok {
				warnings = append(warnings, fmt.Sprintf("condition node %q has no %q branch; taking it will fail the run", node.ID, handle))
			}
		}
	}

	return warnings
}
