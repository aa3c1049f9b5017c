// Package lead provides the create_lead and update_lead adapters. Both are
// local-effect adapters: in test mode they simulate against the run
// context and never touch the tenant's lead store.
package lead

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/autoflowhq/autoflow/pkg/condition"
	"github.com/autoflowhq/autoflow/pkg/leads"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
	"github.com/google/uuid"
)

const defaultStage = "new"

// CreateAdapter creates a lead record from literal fields and values
// resolved out of the run context.
type CreateAdapter struct {
	store      leads.Store
	fields     map[string]any
	fieldPaths map[string]string
}

// NewCreateAdapter builds a CreateAdapter. Config keys: "fields" (literal
// lead attributes) and "field_paths" (attribute name to dotted context
// path; resolved at execution time).
func NewCreateAdapter(store leads.Store, config map[string]any) (*CreateAdapter, error) {
	adapter := &CreateAdapter{
		store:      store,
		fields:     map[string]any{},
		fieldPaths: map[string]string{},
	}

	if fields, ok := config["fields"].(map[string]any); ok {
		adapter.fields = fields
	}

	if paths, ok := config["field_paths"].(map[string]any); ok {
		for name, raw := range paths {
			path, ok := raw.(string)
			if !ok || path == "" {
				return nil, fmt.Errorf("field_paths entry %q is not a path", name)
			}

			adapter.fieldPaths[name] = path
		}
	}

	return adapter, nil
}

func (a *CreateAdapter) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "create_lead_adapter")

	resolved := make(map[string]any, len(a.fields)+len(a.fieldPaths))
	for name, value := range a.fields {
		resolved[name] = value
	}

	for name, path := range a.fieldPaths {
		if value := condition.Lookup(req.Context, path); condition.IsDefined(value) {
			resolved[name] = value
		}
	}

	now := time.Now().UTC()
	record := &leads.Lead{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		Stage:     defaultStage,
		Fields:    map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for name, value := range resolved {
		switch name {
		case "name":
			record.Name, _ = value.(string)
		case "email":
			record.Email, _ = value.(string)
		case "stage":
			if stage, ok := value.(string); ok && stage != "" {
				record.Stage = stage
			}
		default:
			record.Fields[name] = value
		}
	}

	if req.Mode == models.ModeTest {
		logger.InfoContext(ctx, "Simulating lead creation", "lead_id", record.ID)

		return map[string]any{
			"lead_id":   record.ID,
			"lead":      leadOutput(record),
			"simulated": true,
		}, nil
	}

	if err := a.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	logger.InfoContext(ctx, "Created lead", "lead_id", record.ID, "stage", record.Stage)

	return map[string]any{
		"lead_id": record.ID,
		"lead":    leadOutput(record),
	}, nil
}

func leadOutput(record *leads.Lead) map[string]any {
	out := map[string]any{
		"id":    record.ID,
		"name":  record.Name,
		"email": record.Email,
		"stage": record.Stage,
	}

	for name, value := range record.Fields {
		out[name] = value
	}

	return out
}
