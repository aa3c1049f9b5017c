package recorder

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence/file"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	return NewRecorder(slog.Default(), p.RunRepository())
}

func TestRecorder_StartSetsRunning(t *testing.T) {
	rec := newTestRecorder(t)

	run := &models.Run{ID: "run-1", AutomationID: "auto-1", Mode: models.ModeLive}
	require.NoError(t, rec.Start(t.Context(), run))

	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())
}

func TestRecorder_AppendKeepsMemoryInSync(t *testing.T) {
	rec := newTestRecorder(t)

	run := &models.Run{ID: "run-1", AutomationID: "auto-1"}
	require.NoError(t, rec.Start(t.Context(), run))

	step := models.StepRecord{
		NodeID:    "node-1",
		NodeType:  models.NodeTypeLog,
		Outcome:   models.StepOutcomeSuccess,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, rec.Append(t.Context(), run, step))

	require.Len(t, run.Steps, 1)
	assert.Equal(t, "node-1", run.Steps[0].NodeID)
}

func TestRecorder_FinalizeIdempotent(t *testing.T) {
	rec := newTestRecorder(t)

	run := &models.Run{ID: "run-1", AutomationID: "auto-1"}
	require.NoError(t, rec.Start(t.Context(), run))

	applied, err := rec.Finalize(t.Context(), run, models.RunStatusSucceeded, "")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	require.NotNil(t, run.FinishedAt)

	firstFinish := *run.FinishedAt

	// A second signal, even a contradictory one, does not change the outcome.
	applied, err = rec.Finalize(t.Context(), run, models.RunStatusFailed, "late failure")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	assert.Empty(t, run.Error)
	assert.Equal(t, firstFinish, *run.FinishedAt)
}

func TestRecorder_AppendAfterFinalizeFails(t *testing.T) {
	rec := newTestRecorder(t)

	run := &models.Run{ID: "run-1", AutomationID: "auto-1"}
	require.NoError(t, rec.Start(t.Context(), run))

	_, err := rec.Finalize(t.Context(), run, models.RunStatusCancelled, "")
	require.NoError(t, err)

	err = rec.Append(t.Context(), run, models.StepRecord{NodeID: "node-1"})
	require.Error(t, err)
	assert.Empty(t, run.Steps)
}
