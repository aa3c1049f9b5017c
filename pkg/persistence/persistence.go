// Package persistence provides the storage abstraction for automation
// definitions and run history.
package persistence

import (
	"context"
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
)

type Persistence interface {
	AutomationRepository() AutomationRepository
	RunRepository() RunRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// AutomationRepository stores automation definitions. Soft-deleted
// automations stay readable by id so run history keeps resolving, but
// never appear in listings.
type AutomationRepository interface {
	List(ctx context.Context, tenantID string) ([]*models.Automation, error)
	ListEnabled(ctx context.Context, tenantID string) ([]*models.Automation, error)
	GetByID(ctx context.Context, id string) (*models.Automation, error)
	Save(ctx context.Context, automation *models.Automation) error
	SoftDelete(ctx context.Context, id string) error
}

// RunRepository stores run history. Steps are append-only; Finalize is the
// only transition out of running and reports whether it applied, so
// duplicate completion signals stay idempotent.
type RunRepository interface {
	Create(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id string) (*models.Run, error)
	AppendStep(ctx context.Context, runID string, step models.StepRecord) error
	Finalize(ctx context.Context, runID string, status models.RunStatus, errMsg string, finishedAt time.Time) (bool, error)
	ListByAutomation(ctx context.Context, automationID string, limit int) ([]*models.Run, error)
}
