// Package leads provides the tenant lead store the local-effect adapters
// act on. Leads are the CRM records automations create and mutate in live
// mode and must leave untouched in test mode.
package leads

import (
	"context"
	"errors"
	"time"
)

// ErrLeadNotFound indicates a lead id that does not exist for the tenant.
var ErrLeadNotFound = errors.New("lead not found")

// Lead is one CRM lead record.
type Lead struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Stage     string         `json:"stage"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store abstracts lead persistence so adapters stay testable without a
// running Redis.
type Store interface {
	Create(ctx context.Context, lead *Lead) error
	Get(ctx context.Context, tenantID, leadID string) (*Lead, error)
	UpdateStage(ctx context.Context, tenantID, leadID, stage string) (*Lead, error)
}
