package lead

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/autoflowhq/autoflow/pkg/condition"
	"github.com/autoflowhq/autoflow/pkg/leads"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
)

const defaultLeadIDPath = "lead.id"

// ErrMissingStage indicates an update_lead node without a target stage.
var ErrMissingStage = errors.New("missing required field 'stage'")

// UpdateAdapter moves a lead to a new stage. The lead id is resolved from
// the run context; when the working data carries no lead id the stage
// change applies to the run context only, so automations triggered by raw
// event payloads still branch on the updated stage.
type UpdateAdapter struct {
	store      leads.Store
	stage      string
	leadIDPath string
}

func NewUpdateAdapter(store leads.Store, config map[string]any) (*UpdateAdapter, error) {
	stage, _ := config["stage"].(string)
	if stage == "" {
		return nil, ErrMissingStage
	}

	leadIDPath, _ := config["lead_id_path"].(string)
	if leadIDPath == "" {
		leadIDPath = defaultLeadIDPath
	}

	return &UpdateAdapter{
		store:      store,
		stage:      stage,
		leadIDPath: leadIDPath,
	}, nil
}

func (a *UpdateAdapter) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "update_lead_adapter", "stage", a.stage)

	leadID := ""
	if value := condition.Lookup(req.Context, a.leadIDPath); condition.IsDefined(value) {
		leadID, _ = value.(string)
	}

	if leadID == "" {
		logger.InfoContext(ctx, "No lead id in context, applying stage to run context only")

		return map[string]any{"stage": a.stage}, nil
	}

	if req.Mode == models.ModeTest {
		logger.InfoContext(ctx, "Simulating lead stage update", "lead_id", leadID)

		return map[string]any{
			"lead_id":   leadID,
			"stage":     a.stage,
			"simulated": true,
		}, nil
	}

	updated, err := a.store.UpdateStage(ctx, req.TenantID, leadID, a.stage)
	if err != nil {
		return nil, fmt.Errorf("failed to update lead %s: %w", leadID, err)
	}

	logger.InfoContext(ctx, "Updated lead stage", "lead_id", leadID)

	return map[string]any{
		"lead_id": updated.ID,
		"stage":   updated.Stage,
		"lead":    leadOutput(updated),
	}, nil
}
