package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
)

// AutomationRepository handles automation-related file operations.
type AutomationRepository struct {
	root string // File system root for storing automations
	mu   sync.Mutex
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(root string) *AutomationRepository {
	return &AutomationRepository{root: root}
}

func (ar *AutomationRepository) dir() string {
	return path.Join(ar.root, "automations")
}

// List returns all automations for a tenant, excluding soft-deleted ones,
// sorted by creation time.
func (ar *AutomationRepository) List(ctx context.Context, tenantID string) ([]*models.Automation, error) {
	all, err := ar.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	automations := make([]*models.Automation, 0, len(all))

	for _, automation := range all {
		if automation.DeletedAt != nil {
			continue
		}

		if tenantID != "" && automation.TenantID != tenantID {
			continue
		}

		automations = append(automations, automation)
	}

	sort.Slice(automations, func(i, j int) bool {
		return automations[i].CreatedAt.Before(automations[j].CreatedAt)
	})

	return automations, nil
}

// ListEnabled returns enabled, non-deleted automations for a tenant. An empty
// tenant id lists across all tenants, which is what the trigger matcher needs.
func (ar *AutomationRepository) ListEnabled(ctx context.Context, tenantID string) ([]*models.Automation, error) {
	all, err := ar.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.Automation, 0, len(all))

	for _, automation := range all {
		if automation.Enabled {
			enabled = append(enabled, automation)
		}
	}

	return enabled, nil
}

// GetByID retrieves an automation by its ID from the file system. Soft-deleted
// automations are still returned so run history can resolve them.
func (ar *AutomationRepository) GetByID(_ context.Context, id string) (*models.Automation, error) {
	filePath := filepath.Clean(path.Join(ar.dir(), id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("GetByID", id, err)
	}

	var automation models.Automation

	err = json.Unmarshal(body, &automation)
	if err != nil {
		return nil, persistence.NewAutomationError("GetByID", id, fmt.Errorf("failed to unmarshal: %w", err))
	}

	return &automation, nil
}

// Save writes an automation to the file system, creating it if needed.
func (ar *AutomationRepository) Save(_ context.Context, automation *models.Automation) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	err := os.MkdirAll(ar.dir(), 0750)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, fmt.Errorf("failed to create automations directory: %w", err))
	}

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

	data, err := json.MarshalIndent(automation, "", "  ")
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, fmt.Errorf("failed to marshal: %w", err))
	}

	filePath := path.Join(ar.dir(), automation.ID+".json")

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	return nil
}

// SoftDelete marks an automation as deleted without removing the file, so
// existing run history keeps pointing at a readable definition.
func (ar *AutomationRepository) SoftDelete(ctx context.Context, id string) error {
	automation, err := ar.GetByID(ctx, id)
	if err != nil {
		return persistence.NewAutomationError("SoftDelete", id, persistence.ErrAutomationNotFound)
	}

	if automation.DeletedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	automation.DeletedAt = &now
	automation.Enabled = false

	return ar.Save(ctx, automation)
}

func (ar *AutomationRepository) loadAll(ctx context.Context) ([]*models.Automation, error) {
	root := os.DirFS(ar.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list automation files: %w", err)
	}

	automations := make([]*models.Automation, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5] // Remove .json extension

		automation, err := ar.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		automations = append(automations, automation)
	}

	return automations, nil
}
