package main

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoflowhq/autoflow/pkg/eventbus"
	"github.com/autoflowhq/autoflow/pkg/events"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
	"github.com/autoflowhq/autoflow/pkg/persistence/file"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *capturePublisher) queued() []*events.RunQueued {
	p.mu.Lock()
	defer p.mu.Unlock()

	queued := make([]*events.RunQueued, 0)

	for _, event := range p.events {
		if e, ok := event.(events.RunQueued); ok {
			queued = append(queued, &e)
		}
	}

	return queued
}

func scheduleAutomation(id, tenantID, cronExpr string) *models.Automation {
	return &models.Automation{
		ID:            id,
		TenantID:      tenantID,
		Name:          "Scheduled report " + id,
		Enabled:       true,
		TriggerType:   models.TriggerTypeSchedule,
		TriggerConfig: map[string]any{"cron": cronExpr},
		Nodes: []*models.Node{
			{ID: "trig", Type: models.NodeTypeTriggerSchedule},
		},
	}
}

func setupScheduler(t *testing.T) (*Scheduler, persistence.Persistence, *capturePublisher) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	publisher := &capturePublisher{}
	scheduler := NewScheduler("scheduler-test", p, publisher, slog.Default())

	return scheduler, p, publisher
}

func TestScheduler_Tick_QueuesDueAutomations(t *testing.T) {
	ctx := context.Background()
	scheduler, p, publisher := setupScheduler(t)

	repo := p.AutomationRepository()
	require.NoError(t, repo.Save(ctx, scheduleAutomation("daily-9am", "acme", "0 9 * * *")))
	require.NoError(t, repo.Save(ctx, scheduleAutomation("every-5m", "globex", "*/5 * * * *")))
	require.NoError(t, repo.Save(ctx, scheduleAutomation("midnight", "acme", "0 0 * * *")))

	tick := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	scheduler.Tick(ctx, tick)

	queued := publisher.queued()
	require.Len(t, queued, 2)

	automationIDs := []string{queued[0].AutomationID, queued[1].AutomationID}
	assert.Contains(t, automationIDs, "daily-9am")
	assert.Contains(t, automationIDs, "every-5m")

	// Every queued event points at a persisted running run
	for _, event := range queued {
		run, err := p.RunRepository().GetByID(ctx, event.RunID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusRunning, run.Status)
		assert.Equal(t, models.ModeLive, run.Mode)
		assert.Equal(t, event.AutomationID, run.AutomationID)
	}
}

func TestScheduler_Tick_SkipsDisabledAndBroken(t *testing.T) {
	ctx := context.Background()
	scheduler, p, publisher := setupScheduler(t)

	repo := p.AutomationRepository()

	disabled := scheduleAutomation("disabled", "acme", "0 9 * * *")
	disabled.Enabled = false
	require.NoError(t, repo.Save(ctx, disabled))

	broken := scheduleAutomation("broken-cron", "acme", "not a cron expression")
	require.NoError(t, repo.Save(ctx, broken))

	healthy := scheduleAutomation("healthy", "acme", "0 9 * * *")
	require.NoError(t, repo.Save(ctx, healthy))

	tick := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	scheduler.Tick(ctx, tick)

	queued := publisher.queued()
	require.Len(t, queued, 1)
	assert.Equal(t, "healthy", queued[0].AutomationID)
}

func TestScheduler_Tick_NothingDue(t *testing.T) {
	ctx := context.Background()
	scheduler, p, publisher := setupScheduler(t)

	repo := p.AutomationRepository()
	require.NoError(t, repo.Save(ctx, scheduleAutomation("daily-9am", "acme", "0 9 * * *")))

	tick := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	scheduler.Tick(ctx, tick)

	assert.Empty(t, publisher.queued())
}
