package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/autoflowhq/autoflow/pkg/eventbus"
	"github.com/autoflowhq/autoflow/pkg/events"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
	"github.com/autoflowhq/autoflow/pkg/recorder"
	"github.com/autoflowhq/autoflow/pkg/trigger"
)

// Scheduler emits one tick per minute and queues a live run for every
// enabled schedule automation whose cron expression fires on that minute.
type Scheduler struct {
	id          string
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	matcher     *trigger.Matcher
	recorder    *recorder.Recorder
	logger      *slog.Logger
}

func NewScheduler(
	id string,
	p persistence.Persistence,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		id:          id,
		persistence: p,
		publisher:   publisher,
		matcher:     trigger.NewMatcher(logger),
		recorder:    recorder.NewRecorder(logger, p.RunRepository()),
		logger:      logger.With("module", "scheduler"),
	}
}

// Start runs the tick loop until the context is cancelled. Ticks align on
// minute boundaries in UTC.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.InfoContext(ctx, "Starting scheduler", "scheduler_id", s.id)

	for {
		next := time.Now().UTC().Truncate(time.Minute).Add(time.Minute)

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Scheduler context cancelled, stopping...")

			return
		case <-time.After(time.Until(next)):
			s.Tick(ctx, next)
		}
	}
}

// Tick matches one schedule tick against every tenant's enabled automations
// and queues a run per match. A broken cron expression is logged and skipped,
// it never blocks the other automations on the same tick.
func (s *Scheduler) Tick(ctx context.Context, tickAt time.Time) {
	candidates, err := s.persistence.AutomationRepository().ListEnabled(ctx, "")
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list enabled automations", "error", err)

		return
	}

	req := models.TriggerRequest{
		SourceType: models.TriggerTypeSchedule,
		TickAt:     tickAt,
	}

	matched, matchErrors := s.matcher.Match(req, candidates)

	for _, matchErr := range matchErrors {
		s.logger.WarnContext(ctx, "Automation excluded from schedule tick",
			"automation_id", matchErr.AutomationID,
			"reason", matchErr.Reason)
	}

	for _, automation := range matched {
		err := s.queueRun(ctx, automation, tickAt)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to queue scheduled run",
				"automation_id", automation.ID,
				"error", err)
		}
	}

	if len(matched) > 0 {
		s.logger.InfoContext(ctx, "Schedule tick processed",
			"tick_at", tickAt,
			"queued_runs", len(matched))
	}
}

func (s *Scheduler) queueRun(ctx context.Context, automation *models.Automation, tickAt time.Time) error {
	run := &models.Run{
		ID:           uuid.New().String(),
		AutomationID: automation.ID,
		TenantID:     automation.TenantID,
		Mode:         models.ModeLive,
		TriggerPayload: map[string]any{
			"tick_at": tickAt.Format(time.RFC3339),
		},
	}

	err := s.recorder.Start(ctx, run)
	if err != nil {
		return err
	}

	event := events.RunQueued{
		BaseEvent: events.NewBaseEvent(events.RunQueuedEvent, run.TenantID, run.AutomationID),
		RunID:     run.ID,
		Mode:      run.Mode,
	}
	event.WorkerID = s.id

	return s.publisher.Publish(ctx, automation.ID, event)
}
