package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
)

// AutomationRepository handles automation-related database operations. The
// node and edge graphs are stored as JSONB documents on the automation row,
// so a definition is always read and written atomically.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

const automationColumns = `
		id
	  , tenant_id
	  , name
	  , description
	  , enabled
	  , trigger_type
	  , trigger_config
	  , nodes
	  , edges
	  , execution_count
	  , last_executed_at
	  , last_error
	  , created_at
	  , updated_at
	  , deleted_at
`

// List returns all automations for a tenant, excluding soft-deleted ones.
func (r *AutomationRepository) List(ctx context.Context, tenantID string) ([]*models.Automation, error) {
	query := `SELECT ` + automationColumns + `
		FROM automations
		WHERE deleted_at IS NULL AND ($1 = '' OR tenant_id = $1)
		ORDER BY created_at ASC`

	return r.queryAutomations(ctx, query, tenantID)
}

// ListEnabled returns enabled, non-deleted automations for a tenant. An empty
// tenant id lists across all tenants.
func (r *AutomationRepository) ListEnabled(ctx context.Context, tenantID string) ([]*models.Automation, error) {
	query := `SELECT ` + automationColumns + `
		FROM automations
		WHERE deleted_at IS NULL AND enabled AND ($1 = '' OR tenant_id = $1)
		ORDER BY created_at ASC`

	return r.queryAutomations(ctx, query, tenantID)
}

// GetByID returns an automation by its ID, including soft-deleted ones so run
// history can still resolve the definition.
func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	automation, err := r.scanAutomation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("GetByID", id, err)
	}

	return automation, nil
}

// Save upserts an automation.
func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	now := time.Now().UTC()

	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	if automation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewAutomationError("Save", "", fmt.Errorf("failed to generate automation ID: %w", err))
		}

		automation.ID = id.String()
	}

	triggerConfigJSON, err := json.Marshal(automation.TriggerConfig)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, fmt.Errorf("failed to marshal trigger config: %w", err))
	}

	nodesJSON, err := json.Marshal(automation.Nodes)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, fmt.Errorf("failed to marshal nodes: %w", err))
	}

	edgesJSON, err := json.Marshal(automation.Edges)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, fmt.Errorf("failed to marshal edges: %w", err))
	}

	query := `
		INSERT INTO automations (id, tenant_id, name, description, enabled, trigger_type,
			trigger_config, nodes, edges, execution_count, last_executed_at, last_error,
			created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			enabled = EXCLUDED.enabled,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			execution_count = EXCLUDED.execution_count,
			last_executed_at = EXCLUDED.last_executed_at,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID,
		automation.TenantID,
		automation.Name,
		automation.Description,
		automation.Enabled,
		automation.TriggerType,
		triggerConfigJSON,
		nodesJSON,
		edgesJSON,
		automation.ExecutionCount,
		automation.LastExecutedAt,
		automation.LastError,
		automation.CreatedAt,
		automation.UpdatedAt,
		automation.DeletedAt,
	)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	return nil
}

// SoftDelete marks an automation as deleted and disables it.
func (r *AutomationRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE automations SET deleted_at = NOW(), enabled = false, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return persistence.NewAutomationError("SoftDelete", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewAutomationError("SoftDelete", id, err)
	}

	if rowsAffected == 0 {
		// Already deleted or never existed. Distinguish so callers can 404.
		var exists bool

		err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM automations WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return persistence.NewAutomationError("SoftDelete", id, err)
		}

		if !exists {
			return persistence.NewAutomationError("SoftDelete", id, persistence.ErrAutomationNotFound)
		}
	}

	return nil
}

func (r *AutomationRepository) queryAutomations(ctx context.Context, query string, args ...any) ([]*models.Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := r.scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *AutomationRepository) scanAutomation(row rowScanner) (*models.Automation, error) {
	var (
		automation        models.Automation
		triggerConfigJSON []byte
		nodesJSON         []byte
		edgesJSON         []byte
		lastError         sql.NullString
	)

	err := row.Scan(
		&automation.ID,
		&automation.TenantID,
		&automation.Name,
		&automation.Description,
		&automation.Enabled,
		&automation.TriggerType,
		&triggerConfigJSON,
		&nodesJSON,
		&edgesJSON,
		&automation.ExecutionCount,
		&automation.LastExecutedAt,
		&lastError,
		&automation.CreatedAt,
		&automation.UpdatedAt,
		&automation.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	automation.LastError = lastError.String

	if len(triggerConfigJSON) > 0 {
		if err := json.Unmarshal(triggerConfigJSON, &automation.TriggerConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}

	if len(nodesJSON) > 0 {
		if err := json.Unmarshal(nodesJSON, &automation.Nodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}

	if len(edgesJSON) > 0 {
		if err := json.Unmarshal(edgesJSON, &automation.Edges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
		}
	}

	return &automation, nil
}
