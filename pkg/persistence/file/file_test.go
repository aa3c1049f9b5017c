package file

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
)

func testAutomation(id, tenantID string) *models.Automation {
	return &models.Automation{
		ID:          id,
		TenantID:    tenantID,
		Name:        "Test Automation",
		Enabled:     true,
		TriggerType: models.TriggerTypeEvent,
		TriggerConfig: map[string]any{
			"event_name": "lead.created",
		},
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTriggerEvent},
			{ID: "log-1", Type: models.NodeTypeLog, Config: map[string]any{"message": "hi"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger-1", Target: "log-1"},
		},
	}
}

func TestNewPersistence(t *testing.T) {
	p := NewPersistence("/tmp/test")
	fp := p.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)

	p = NewPersistence("file:///tmp/test")
	fp = p.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_Close(t *testing.T) {
	p := NewPersistence(t.TempDir())
	err := p.Close(t.Context())
	assert.NoError(t, err)
}

func TestAutomationRepository_SaveAndGet(t *testing.T) {
	testDir := t.TempDir()
	p := NewPersistence(testDir)
	repo := p.AutomationRepository()

	automation := testAutomation("auto-1", "tenant-a")

	err := repo.Save(t.Context(), automation)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(testDir, "automations", "auto-1.json"))
	assert.False(t, automation.CreatedAt.IsZero())
	assert.False(t, automation.UpdatedAt.IsZero())

	loaded, err := repo.GetByID(t.Context(), "auto-1")
	require.NoError(t, err)
	assert.Equal(t, "auto-1", loaded.ID)
	assert.Equal(t, "tenant-a", loaded.TenantID)
	assert.Equal(t, "lead.created", loaded.TriggerConfig["event_name"])
	assert.Len(t, loaded.Nodes, 2)
	assert.Len(t, loaded.Edges, 1)
}

func TestAutomationRepository_SaveAssignsMissingID(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.AutomationRepository()

	first := testAutomation("", "tenant-a")
	second := testAutomation("", "tenant-a")

	require.NoError(t, repo.Save(t.Context(), first))
	require.NoError(t, repo.Save(t.Context(), second))

	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)

	// Both land as separate records.
	listed, err := repo.List(t.Context(), "tenant-a")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestAutomationRepository_GetByID_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.AutomationRepository().GetByID(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestAutomationRepository_List_FiltersTenant(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.AutomationRepository()

	require.NoError(t, repo.Save(t.Context(), testAutomation("a1", "tenant-a")))
	require.NoError(t, repo.Save(t.Context(), testAutomation("a2", "tenant-b")))

	automations, err := repo.List(t.Context(), "tenant-a")
	require.NoError(t, err)
	require.Len(t, automations, 1)
	assert.Equal(t, "a1", automations[0].ID)
}

func TestAutomationRepository_SoftDelete(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.AutomationRepository()

	require.NoError(t, repo.Save(t.Context(), testAutomation("a1", "tenant-a")))
	require.NoError(t, repo.SoftDelete(t.Context(), "a1"))

	// Deleted automations drop out of listings but stay readable by id.
	automations, err := repo.List(t.Context(), "tenant-a")
	require.NoError(t, err)
	assert.Empty(t, automations)

	loaded, err := repo.GetByID(t.Context(), "a1")
	require.NoError(t, err)
	assert.NotNil(t, loaded.DeletedAt)
	assert.False(t, loaded.Enabled)

	// Deleting again is a no-op.
	require.NoError(t, repo.SoftDelete(t.Context(), "a1"))
}

func TestAutomationRepository_ListEnabled(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.AutomationRepository()

	enabled := testAutomation("on", "tenant-a")
	disabled := testAutomation("off", "tenant-a")
	disabled.Enabled = false

	require.NoError(t, repo.Save(t.Context(), enabled))
	require.NoError(t, repo.Save(t.Context(), disabled))

	automations, err := repo.ListEnabled(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, automations, 1)
	assert.Equal(t, "on", automations[0].ID)
}

func TestRunRepository_CreateAndAppend(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.RunRepository()

	run := &models.Run{
		ID:           "run-1",
		AutomationID: "auto-1",
		TenantID:     "tenant-a",
		Mode:         models.ModeLive,
		Status:       models.RunStatusRunning,
	}

	require.NoError(t, repo.Create(t.Context(), run))
	assert.False(t, run.StartedAt.IsZero())

	step := models.StepRecord{
		NodeID:    "log-1",
		NodeType:  models.NodeTypeLog,
		Outcome:   models.StepOutcomeSuccess,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.AppendStep(t.Context(), "run-1", step))

	loaded, err := repo.GetByID(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, "log-1", loaded.Steps[0].NodeID)
}

func TestRunRepository_FinalizeIdempotent(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.RunRepository()

	run := &models.Run{ID: "run-1", AutomationID: "auto-1", Status: models.RunStatusRunning}
	require.NoError(t, repo.Create(t.Context(), run))

	finishedAt := time.Now().UTC()

	applied, err := repo.Finalize(t.Context(), "run-1", models.RunStatusSucceeded, "", finishedAt)
	require.NoError(t, err)
	assert.True(t, applied)

	// A second completion signal does not overwrite the terminal status.
	applied, err = repo.Finalize(t.Context(), "run-1", models.RunStatusFailed, "boom", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, applied)

	loaded, err := repo.GetByID(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, loaded.Status)
	assert.Empty(t, loaded.Error)
}

func TestRunRepository_AppendAfterFinalizeRejected(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.RunRepository()

	run := &models.Run{ID: "run-1", AutomationID: "auto-1", Status: models.RunStatusRunning}
	require.NoError(t, repo.Create(t.Context(), run))

	_, err := repo.Finalize(t.Context(), "run-1", models.RunStatusCancelled, "", time.Now().UTC())
	require.NoError(t, err)

	err = repo.AppendStep(t.Context(), "run-1", models.StepRecord{NodeID: "n1"})
	require.Error(t, err)
	assert.True(t, persistence.IsRunTerminal(err))
}

func TestRunRepository_ListByAutomation(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.RunRepository()

	older := &models.Run{ID: "run-old", AutomationID: "auto-1", Status: models.RunStatusRunning, StartedAt: time.Now().UTC().Add(-time.Hour)}
	newer := &models.Run{ID: "run-new", AutomationID: "auto-1", Status: models.RunStatusRunning, StartedAt: time.Now().UTC()}
	other := &models.Run{ID: "run-other", AutomationID: "auto-2", Status: models.RunStatusRunning}

	require.NoError(t, repo.Create(t.Context(), older))
	require.NoError(t, repo.Create(t.Context(), newer))
	require.NoError(t, repo.Create(t.Context(), other))

	runs, err := repo.ListByAutomation(t.Context(), "auto-1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)

	runs, err = repo.ListByAutomation(t.Context(), "auto-1", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
