package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	leadadapter "github.com/autoflowhq/autoflow/pkg/adapters/lead"
	"github.com/autoflowhq/autoflow/pkg/adapters/noop"
	"github.com/autoflowhq/autoflow/pkg/engine"
	"github.com/autoflowhq/autoflow/pkg/eventbus"
	"github.com/autoflowhq/autoflow/pkg/events"
	"github.com/autoflowhq/autoflow/pkg/leads"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence/file"
	"github.com/autoflowhq/autoflow/pkg/recorder"
	"github.com/autoflowhq/autoflow/pkg/registry"
	"github.com/autoflowhq/autoflow/pkg/trigger"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	published []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func (p *capturePublisher) queued() []events.RunQueued {
	var out []events.RunQueued

	for _, event := range p.published {
		if queued, ok := event.(events.RunQueued); ok {
			out = append(out, queued)
		}
	}

	return out
}

type runEnv struct {
	runs        *Run
	automations *Automation
	store       *leads.MemoryStore
	publisher   *capturePublisher
}

func newRunEnv(t *testing.T) *runEnv {
	t.Helper()

	logger := slog.Default()
	p := file.NewPersistence(t.TempDir())
	store := leads.NewMemoryStore()

	reg := registry.NewRegistry(logger)
	reg.Register(noop.NewFactory())
	reg.Register(leadadapter.NewCreateFactory(store))
	reg.Register(leadadapter.NewUpdateFactory(store))

	rec := recorder.NewRecorder(logger, p.RunRepository())
	eng := engine.New(logger, rec, reg)
	automations := NewAutomation(logger, p, reg)
	publisher := &capturePublisher{}

	return &runEnv{
		runs:        NewRun(logger, p, trigger.NewMatcher(logger), eng, rec, automations, publisher),
		automations: automations,
		store:       store,
		publisher:   publisher,
	}
}

func (env *runEnv) createAutomation(t *testing.T, req SaveAutomationRequest) *models.Automation {
	t.Helper()

	automation, _, err := env.automations.Create(t.Context(), req)
	require.NoError(t, err)

	return automation
}

func TestRunService_EventTriggerQueuesRuns(t *testing.T) {
	env := newRunEnv(t)

	automation := env.createAutomation(t, validRequest())

	result, err := env.runs.Trigger(t.Context(), models.TriggerRequest{
		SourceType: models.TriggerTypeEvent,
		TenantID:   "tenant-a",
		EventName:  "lead.created",
		Payload:    map[string]any{"lead": map[string]any{"id": "l1"}},
	})
	require.NoError(t, err)
	require.Len(t, result.QueuedRunIDs, 1)

	queued := env.publisher.queued()
	require.Len(t, queued, 1)
	assert.Equal(t, result.QueuedRunIDs[0], queued[0].RunID)
	assert.Equal(t, models.ModeLive, queued[0].Mode)
	assert.Equal(t, automation.ID, queued[0].AutomationID)

	// The run exists in running state before any worker picks it up.
	run, err := env.runs.Get(t.Context(), result.QueuedRunIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
}

func TestRunService_TriggerIgnoresNonMatchingEvent(t *testing.T) {
	env := newRunEnv(t)

	env.createAutomation(t, validRequest())

	result, err := env.runs.Trigger(t.Context(), models.TriggerRequest{
		SourceType: models.TriggerTypeEvent,
		TenantID:   "tenant-a",
		EventName:  "deal.closed",
	})
	require.NoError(t, err)
	assert.Empty(t, result.QueuedRunIDs)
	assert.Empty(t, env.publisher.published)
}

func TestRunService_ManualTriggerOnDisabledAutomationConflicts(t *testing.T) {
	env := newRunEnv(t)

	req := validRequest()
	req.TriggerType = models.TriggerTypeManual
	req.Nodes[0].Type = models.NodeTypeTriggerManual
	req.Enabled = false
	automation := env.createAutomation(t, req)

	_, err := env.runs.Trigger(t.Context(), models.TriggerRequest{
		SourceType:   models.TriggerTypeManual,
		TenantID:     "tenant-a",
		AutomationID: automation.ID,
	})
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
}

func TestRunService_ExecuteQueuedRunsToCompletion(t *testing.T) {
	env := newRunEnv(t)

	automation := env.createAutomation(t, validRequest())
	require.NoError(t, env.store.Create(t.Context(), &leads.Lead{
		ID:       "l1",
		TenantID: "tenant-a",
		Stage:    "new",
	}))

	result, err := env.runs.Trigger(t.Context(), models.TriggerRequest{
		SourceType: models.TriggerTypeEvent,
		TenantID:   "tenant-a",
		EventName:  "lead.created",
		Payload:    map[string]any{"lead": map[string]any{"id": "l1"}},
	})
	require.NoError(t, err)
	require.Len(t, result.QueuedRunIDs, 1)

	run, err := env.runs.ExecuteQueued(t.Context(), result.QueuedRunIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)

	// Live mode applies the stage change to the real lead.
	lead, err := env.store.Get(t.Context(), "tenant-a", "l1")
	require.NoError(t, err)
	assert.Equal(t, "contacted", lead.Stage)

	// Live execution bumps the automation's counters.
	loaded, err := env.automations.Get(t.Context(), automation.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.ExecutionCount)

	// Re-delivering the queued event is a no-op.
	again, err := env.runs.ExecuteQueued(t.Context(), result.QueuedRunIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, again.Status)

	loaded, err = env.automations.Get(t.Context(), automation.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.ExecutionCount)
}

func TestRunService_TestModeRunsInlineWithoutCounters(t *testing.T) {
	env := newRunEnv(t)

	req := validRequest()
	req.Nodes = []*models.Node{
		{ID: "trigger", Type: models.NodeTypeTriggerEvent},
		{ID: "create", Type: models.NodeTypeCreateLead, Config: map[string]any{
			"fields": map[string]any{"name": "Ada"},
		}},
	}
	req.Edges = []*models.Edge{
		{ID: "e1", Source: "trigger", Target: "create"},
	}
	automation := env.createAutomation(t, req)

	run, err := env.runs.Test(t.Context(), automation.ID, map[string]any{"source": "dialog"})
	require.NoError(t, err)

	assert.Equal(t, models.ModeTest, run.Mode)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, true, run.Steps[0].Output["simulated"])

	// No lead written, no counters touched.
	assert.Equal(t, 0, env.store.Count())

	loaded, err := env.automations.Get(t.Context(), automation.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), loaded.ExecutionCount)
	assert.Nil(t, loaded.LastExecutedAt)
}

func TestRunService_TestModeWorksOnDisabledAutomation(t *testing.T) {
	env := newRunEnv(t)

	req := validRequest()
	req.Enabled = false
	automation := env.createAutomation(t, req)

	run, err := env.runs.Test(t.Context(), automation.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
}

func TestRunService_ListByAutomation(t *testing.T) {
	env := newRunEnv(t)

	automation := env.createAutomation(t, validRequest())

	for range 3 {
		result, err := env.runs.Trigger(t.Context(), models.TriggerRequest{
			SourceType: models.TriggerTypeEvent,
			TenantID:   "tenant-a",
			EventName:  "lead.created",
		})
		require.NoError(t, err)
		require.Len(t, result.QueuedRunIDs, 1)

		_, err = env.runs.ExecuteQueued(t.Context(), result.QueuedRunIDs[0])
		require.NoError(t, err)
	}

	runs, err := env.runs.ListByAutomation(t.Context(), automation.ID, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
