// Package recorder maintains the durable audit trail of automation runs.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
)

// Recorder writes run history through the run repository while keeping the
// in-memory run in sync with what was persisted. Step records are append-only
// and a run leaves the running status exactly once.
type Recorder struct {
	runs   persistence.RunRepository
	logger *slog.Logger
}

// NewRecorder creates a run recorder.
func NewRecorder(logger *slog.Logger, runs persistence.RunRepository) *Recorder {
	return &Recorder{
		runs:   runs,
		logger: logger.With("module", "recorder"),
	}
}

// Start persists a new run in the running status.
func (r *Recorder) Start(ctx context.Context, run *models.Run) error {
	run.Status = models.RunStatusRunning

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	if err := r.runs.Create(ctx, run); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Run started",
		"run_id", run.ID,
		"automation_id", run.AutomationID,
		"mode", run.Mode)

	return nil
}

// Append records a completed step. The in-memory run only picks up the step
// after the repository accepted it, so the two views cannot drift.
func (r *Recorder) Append(ctx context.Context, run *models.Run, step models.StepRecord) error {
	if err := r.runs.AppendStep(ctx, run.ID, step); err != nil {
		return err
	}

	run.Steps = append(run.Steps, step)

	r.logger.DebugContext(ctx, "Step recorded",
		"run_id", run.ID,
		"node_id", step.NodeID,
		"outcome", step.Outcome,
		"duration_ms", step.DurationMS)

	return nil
}

// Finalize moves the run to a terminal status. It reports false when the run
// was already finalized, which makes duplicate completion signals safe.
func (r *Recorder) Finalize(ctx context.Context, run *models.Run, status models.RunStatus, errMsg string) (bool, error) {
	finishedAt := time.Now().UTC()

	applied, err := r.runs.Finalize(ctx, run.ID, status, errMsg, finishedAt)
	if err != nil {
		return false, err
	}

	if !applied {
		r.logger.WarnContext(ctx, "Run already finalized, ignoring completion signal",
			"run_id", run.ID,
			"status", run.Status,
			"ignored_status", status)

		return false, nil
	}

	run.Status = status
	run.Error = errMsg
	run.FinishedAt = &finishedAt

	r.logger.InfoContext(ctx, "Run finalized",
		"run_id", run.ID,
		"status", status,
		"steps", len(run.Steps))

	return true, nil
}
