package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/autoflowhq/autoflow/pkg/engine"
	"github.com/autoflowhq/autoflow/pkg/eventbus"
	"github.com/autoflowhq/autoflow/pkg/events"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
	"github.com/autoflowhq/autoflow/pkg/recorder"
	"github.com/autoflowhq/autoflow/pkg/trigger"
)

// ErrRunNotFound is returned when a run is not found.
var ErrRunNotFound = persistence.ErrRunNotFound

// Run implements trigger ingestion and run queries. Live runs are queued on
// the event bus for workers; test runs execute inline so the caller gets the
// full step trace back.
type Run struct {
	persistence persistence.Persistence
	matcher     *trigger.Matcher
	engine      *engine.Engine
	recorder    *recorder.Recorder
	automations *Automation
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewRun creates a new run service.
func NewRun(
	logger *slog.Logger,
	p persistence.Persistence,
	matcher *trigger.Matcher,
	eng *engine.Engine,
	rec *recorder.Recorder,
	automations *Automation,
	publisher eventbus.EventPublisher,
) *Run {
	return &Run{
		persistence: p,
		matcher:     matcher,
		engine:      eng,
		recorder:    rec,
		automations: automations,
		publisher:   publisher,
		logger:      logger.With("module", "run_service"),
	}
}

// TriggerResult reports what a trigger request activated.
type TriggerResult struct {
	QueuedRunIDs []string             `json:"queued_run_ids"`
	MatchErrors  []trigger.MatchError `json:"match_errors,omitempty"`
}

// Trigger matches an incoming signal against enabled automations, creates a
// running run per match and queues it for the workers. Automations with
// broken trigger configuration are reported in the result, never allowed to
// block their tenant's healthy ones.
func (s *Run) Trigger(ctx context.Context, req models.TriggerRequest) (*TriggerResult, error) {
	candidates, err := s.candidates(ctx, req)
	if err != nil {
		return nil, err
	}

	matched, matchErrors := s.matcher.Match(req, candidates)

	for _, matchErr := range matchErrors {
		s.logger.WarnContext(ctx, "Automation excluded from trigger matching",
			"automation_id", matchErr.AutomationID,
			"reason", matchErr.Reason)
	}

	result := &TriggerResult{
		QueuedRunIDs: make([]string, 0, len(matched)),
		MatchErrors:  matchErrors,
	}

	for _, automation := range matched {
		run := &models.Run{
			ID:             uuid.New().String(),
			AutomationID:   automation.ID,
			TenantID:       automation.TenantID,
			Mode:           models.ModeLive,
			TriggerPayload: req.Payload,
		}

		if err := s.recorder.Start(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to create run for automation %s: %w", automation.ID, err)
		}

		event := events.RunQueued{
			BaseEvent: events.NewBaseEvent(events.RunQueuedEvent, run.TenantID, run.AutomationID),
			RunID:     run.ID,
			Mode:      run.Mode,
		}

		if err := s.publisher.Publish(ctx, automation.ID, event); err != nil {
			return nil, fmt.Errorf("failed to queue run %s: %w", run.ID, err)
		}

		result.QueuedRunIDs = append(result.QueuedRunIDs, run.ID)
	}

	return result, nil
}

// candidates resolves the automations a trigger request may activate. Manual
// and AI-tool triggers target one automation by id; event and schedule
// triggers fan out over the tenant's enabled automations.
func (s *Run) candidates(ctx context.Context, req models.TriggerRequest) ([]*models.Automation, error) {
	if req.SourceType == models.TriggerTypeManual || req.SourceType == models.TriggerTypeAITool {
		automation, err := s.automations.Get(ctx, req.AutomationID)
		if err != nil {
			return nil, err
		}

		if !automation.Enabled {
			return nil, &ServiceError{
				Op:      "Trigger",
				Code:    "AUTOMATION_DISABLED",
				Message: fmt.Sprintf("automation %s is disabled", automation.ID),
				Err:     ErrAutomationDisabled,
			}
		}

		return []*models.Automation{automation}, nil
	}

	return s.persistence.AutomationRepository().ListEnabled(ctx, req.TenantID)
}

// Test executes an automation inline in test mode and returns the finished
// run with its full step trace. Test runs work on disabled automations, do
// not touch execution counters, and local-effect nodes simulate.
func (s *Run) Test(ctx context.Context, automationID string, payload map[string]any) (*models.Run, error) {
	automation, err := s.automations.Get(ctx, automationID)
	if err != nil {
		return nil, err
	}

	run, err := s.engine.Run(ctx, automation, models.ModeTest, payload)
	if err != nil {
		return nil, fmt.Errorf("test run failed: %w", err)
	}

	return run, nil
}

// ExecuteQueued runs a previously queued live run to completion. Workers call
// this on RunQueued events. Execution counters update only here, so test runs
// never skew them.
func (s *Run) ExecuteQueued(ctx context.Context, runID string) (*models.Run, error) {
	run, err := s.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if run.Status.IsTerminal() {
		s.logger.WarnContext(ctx, "Queued run already finalized, skipping",
			"run_id", runID, "status", run.Status)

		return run, nil
	}

	automation, err := s.persistence.AutomationRepository().GetByID(ctx, run.AutomationID)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Execute(ctx, automation, run); err != nil {
		return nil, fmt.Errorf("failed to execute run %s: %w", runID, err)
	}

	if run.Mode == models.ModeLive {
		s.automations.RecordExecution(ctx, automation.ID, run.Error)
	}

	return run, nil
}

// Get returns a run with its step history.
func (s *Run) Get(ctx context.Context, runID string) (*models.Run, error) {
	return s.persistence.RunRepository().GetByID(ctx, runID)
}

// ListByAutomation returns recent runs for an automation, newest first.
func (s *Run) ListByAutomation(ctx context.Context, automationID string, limit int) ([]*models.Run, error) {
	if _, err := s.automations.Get(ctx, automationID); err != nil {
		return nil, err
	}

	return s.persistence.RunRepository().ListByAutomation(ctx, automationID, limit)
}
