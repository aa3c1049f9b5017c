// Package protocol defines the contracts between the run engine and the
// node adapters that implement each action type's effect.
package protocol

import (
	"context"
	"log/slog"
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
)

// ExecutionRequest carries everything an adapter needs for one dispatch.
// Context is a snapshot of the run's working set; adapters never mutate it,
// they return output for the walker to merge.
type ExecutionRequest struct {
	RunID    string
	TenantID string
	NodeID   string
	Mode     models.ExecutionMode
	Context  map[string]any
}

// Adapter is the type-specific implementation of a node's effect. Execute
// must honor ctx cancellation and return within the declared timeout; a
// non-nil error reports a failure outcome. In test mode adapters whose
// effect is local to the tenant's own data must simulate instead of
// mutating; adapters calling third-party HTTP endpoints perform the call
// in both modes, because the engine cannot know whether the external
// system is idempotent.
type Adapter interface {
	Execute(ctx context.Context, req ExecutionRequest, logger *slog.Logger) (map[string]any, error)
}

// AdapterFactory creates adapter instances from a node's configuration and
// describes the node type to the registry.
type AdapterFactory interface {
	// Create builds an adapter for one node. Configuration errors surface
	// here, before any run dispatches the node.
	Create(config map[string]any) (Adapter, error)

	// ID returns the node type this factory serves (e.g. "action:http_request").
	ID() string

	// Timeout returns the per-dispatch bound for this node type.
	Timeout() time.Duration

	// Schema returns the JSON schema the node's configuration must satisfy.
	Schema() map[string]any
}
