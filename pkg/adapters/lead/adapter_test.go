package lead

import (
	"context"
	"log/slog"
	"testing"

	"github.com/autoflowhq/autoflow/pkg/leads"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(mode models.ExecutionMode, data map[string]any) protocol.ExecutionRequest {
	if data == nil {
		data = map[string]any{}
	}

	return protocol.ExecutionRequest{
		RunID:    "run-test",
		TenantID: "tenant-1",
		NodeID:   "node-1",
		Mode:     mode,
		Context:  data,
	}
}

func TestCreateAdapter_Live(t *testing.T) {
	store := leads.NewMemoryStore()

	adapter, err := NewCreateAdapter(store, map[string]any{
		"fields":      map[string]any{"name": "Ada Lovelace", "stage": "contacted"},
		"field_paths": map[string]any{"email": "form.email"},
	})
	require.NoError(t, err)

	data := map[string]any{"form": map[string]any{"email": "ada@example.com"}}

	output, err := adapter.Execute(context.Background(), request(models.ModeLive, data), slog.Default())
	require.NoError(t, err)

	leadID, _ := output["lead_id"].(string)
	require.NotEmpty(t, leadID)

	stored, err := store.Get(context.Background(), "tenant-1", leadID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", stored.Name)
	assert.Equal(t, "ada@example.com", stored.Email)
	assert.Equal(t, "contacted", stored.Stage)
}

func TestCreateAdapter_TestModeDoesNotPersist(t *testing.T) {
	store := leads.NewMemoryStore()

	adapter, err := NewCreateAdapter(store, map[string]any{
		"fields": map[string]any{"name": "Test Lead"},
	})
	require.NoError(t, err)

	output, err := adapter.Execute(context.Background(), request(models.ModeTest, nil), slog.Default())
	require.NoError(t, err)

	assert.Equal(t, true, output["simulated"])
	assert.Zero(t, store.Count())
}

func TestUpdateAdapter_RequiresStage(t *testing.T) {
	_, err := NewUpdateAdapter(leads.NewMemoryStore(), map[string]any{})
	assert.ErrorIs(t, err, ErrMissingStage)
}

func TestUpdateAdapter_Live(t *testing.T) {
	store := leads.NewMemoryStore()

	require.NoError(t, store.Create(context.Background(), &leads.Lead{
		ID:       "l-1",
		TenantID: "tenant-1",
		Stage:    "new",
	}))

	adapter, err := NewUpdateAdapter(store, map[string]any{"stage": "contacted"})
	require.NoError(t, err)

	data := map[string]any{"lead": map[string]any{"id": "l-1", "stage": "new"}}

	output, err := adapter.Execute(context.Background(), request(models.ModeLive, data), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "contacted", output["stage"])

	stored, err := store.Get(context.Background(), "tenant-1", "l-1")
	require.NoError(t, err)
	assert.Equal(t, "contacted", stored.Stage)
}

func TestUpdateAdapter_NoLeadIDAppliesToContextOnly(t *testing.T) {
	store := leads.NewMemoryStore()

	adapter, err := NewUpdateAdapter(store, map[string]any{"stage": "contacted"})
	require.NoError(t, err)

	data := map[string]any{"lead": map[string]any{"stage": "new"}}

	output, err := adapter.Execute(context.Background(), request(models.ModeLive, data), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "contacted", output["stage"])
	assert.Zero(t, store.Count())
}

func TestUpdateAdapter_TestModeDoesNotPersist(t *testing.T) {
	store := leads.NewMemoryStore()

	require.NoError(t, store.Create(context.Background(), &leads.Lead{
		ID:       "l-1",
		TenantID: "tenant-1",
		Stage:    "new",
	}))

	adapter, err := NewUpdateAdapter(store, map[string]any{"stage": "won"})
	require.NoError(t, err)

	data := map[string]any{"lead": map[string]any{"id": "l-1"}}

	output, err := adapter.Execute(context.Background(), request(models.ModeTest, data), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, true, output["simulated"])

	stored, err := store.Get(context.Background(), "tenant-1", "l-1")
	require.NoError(t, err)
	assert.Equal(t, "new", stored.Stage)
}
