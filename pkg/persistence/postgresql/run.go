package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
)

// RunRepository handles run-related database operations. Steps live in an
// append-only run_steps table keyed by (run_id, position).
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

// Create inserts a new run record.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(run.TriggerPayload)
	if err != nil {
		return persistence.NewRunError("Create", run.ID, fmt.Errorf("failed to marshal trigger payload: %w", err))
	}

	query := `
		INSERT INTO runs (id, automation_id, tenant_id, mode, status, trigger_payload, error_message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.AutomationID,
		run.TenantID,
		run.Mode,
		run.Status,
		payloadJSON,
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return persistence.NewRunError("Create", run.ID, err)
	}

	return nil
}

// GetByID returns a run with its full ordered step history.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT id, automation_id, tenant_id, mode, status, trigger_payload, error_message, started_at, finished_at
		FROM runs
		WHERE id = $1
	`

	var (
		run         models.Run
		payloadJSON []byte
		errMsg      sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.AutomationID,
		&run.TenantID,
		&run.Mode,
		&run.Status,
		&payloadJSON,
		&errMsg,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, err)
	}

	run.Error = errMsg.String

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &run.TriggerPayload); err != nil {
			return nil, persistence.NewRunError("GetByID", id, fmt.Errorf("failed to unmarshal trigger payload: %w", err))
		}
	}

	steps, err := r.loadSteps(ctx, id)
	if err != nil {
		return nil, persistence.NewRunError("GetByID", id, err)
	}

	run.Steps = steps

	return &run, nil
}

// AppendStep appends a step record to a running run. The insert is guarded by
// the run's status so terminal histories stay immutable.
func (r *RunRepository) AppendStep(ctx context.Context, runID string, step models.StepRecord) error {
	inputJSON, err := json.Marshal(step.Input)
	if err != nil {
		return persistence.NewRunError("AppendStep", runID, fmt.Errorf("failed to marshal step input: %w", err))
	}

	outputJSON, err := json.Marshal(step.Output)
	if err != nil {
		return persistence.NewRunError("AppendStep", runID, fmt.Errorf("failed to marshal step output: %w", err))
	}

	query := `
		INSERT INTO run_steps (run_id, position, node_id, node_type, input, output, outcome, error_message, started_at, duration_ms)
		SELECT r.id, COALESCE((SELECT MAX(position) FROM run_steps WHERE run_id = r.id), -1) + 1,
			$2, $3, $4, $5, $6, $7, $8, $9
		FROM runs r
		WHERE r.id = $1 AND r.status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query,
		runID,
		step.NodeID,
		step.NodeType,
		inputJSON,
		outputJSON,
		step.Outcome,
		step.Error,
		step.StartedAt,
		step.DurationMS,
	)
	if err != nil {
		return persistence.NewRunError("AppendStep", runID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRunError("AppendStep", runID, err)
	}

	if rowsAffected == 0 {
		var exists bool

		err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM runs WHERE id = $1)", runID).Scan(&exists)
		if err != nil {
			return persistence.NewRunError("AppendStep", runID, err)
		}

		if !exists {
			return persistence.NewRunError("AppendStep", runID, persistence.ErrRunNotFound)
		}

		return persistence.NewRunError("AppendStep", runID, persistence.ErrRunTerminal)
	}

	return nil
}

// Finalize moves a run to a terminal status. The update is conditional on the
// run still being in the running state, so duplicate completion signals report
// false instead of overwriting the first outcome.
func (r *RunRepository) Finalize(ctx context.Context, runID string, status models.RunStatus, errMsg string, finishedAt time.Time) (bool, error) {
	query := `
		UPDATE runs
		SET status = $2, error_message = $3, finished_at = $4
		WHERE id = $1 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query, runID, status, errMsg, finishedAt)
	if err != nil {
		return false, persistence.NewRunError("Finalize", runID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewRunError("Finalize", runID, err)
	}

	if rowsAffected == 0 {
		var exists bool

		err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM runs WHERE id = $1)", runID).Scan(&exists)
		if err != nil {
			return false, persistence.NewRunError("Finalize", runID, err)
		}

		if !exists {
			return false, persistence.NewRunError("Finalize", runID, persistence.ErrRunNotFound)
		}

		return false, nil
	}

	return true, nil
}

// ListByAutomation returns the most recent runs for an automation, newest
// first, without step history.
func (r *RunRepository) ListByAutomation(ctx context.Context, automationID string, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, automation_id, tenant_id, mode, status, trigger_payload, error_message, started_at, finished_at
		FROM runs
		WHERE automation_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, automationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	runs := make([]*models.Run, 0)

	for rows.Next() {
		var (
			run         models.Run
			payloadJSON []byte
			errMsg      sql.NullString
		)

		err := rows.Scan(
			&run.ID,
			&run.AutomationID,
			&run.TenantID,
			&run.Mode,
			&run.Status,
			&payloadJSON,
			&errMsg,
			&run.StartedAt,
			&run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.Error = errMsg.String

		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &run.TriggerPayload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal trigger payload: %w", err)
			}
		}

		runs = append(runs, &run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) loadSteps(ctx context.Context, runID string) ([]models.StepRecord, error) {
	query := `
		SELECT node_id, node_type, input, output, outcome, error_message, started_at, duration_ms
		FROM run_steps
		WHERE run_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run steps: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	steps := make([]models.StepRecord, 0)

	for rows.Next() {
		var (
			step       models.StepRecord
			inputJSON  []byte
			outputJSON []byte
			errMsg     sql.NullString
		)

		err := rows.Scan(
			&step.NodeID,
			&step.NodeType,
			&inputJSON,
			&outputJSON,
			&step.Outcome,
			&errMsg,
			&step.StartedAt,
			&step.DurationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}

		step.Error = errMsg.String

		if len(inputJSON) > 0 {
			if err := json.Unmarshal(inputJSON, &step.Input); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step input: %w", err)
			}
		}

		if len(outputJSON) > 0 {
			if err := json.Unmarshal(outputJSON, &step.Output); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step output: %w", err)
			}
		}

		steps = append(steps, step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating run steps: %w", err)
	}

	return steps, nil
}
