// Package registry maps node types to adapter factories and validates node
// configurations against each factory's schema.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/autoflowhq/autoflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// ErrAdapterNotRegistered indicates a node type outside the closed set.
// The caller treats it as a configuration error, never a crash.
var ErrAdapterNotRegistered = fmt.Errorf("adapter not registered")

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.AdapterFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[string]protocol.AdapterFactory),
	}
}

func (r *Registry) Register(factory protocol.AdapterFactory) {
	r.factories[factory.ID()] = factory
}

// Factory returns the factory for a node type.
func (r *Registry) Factory(nodeType string) (protocol.AdapterFactory, error) {
	factory, ok := r.factories[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotRegistered, nodeType)
	}

	return factory, nil
}

// CreateAdapter validates the node's configuration against the factory
// schema and builds the adapter.
func (r *Registry) CreateAdapter(nodeType string, config map[string]any) (protocol.Adapter, error) {
	factory, err := r.Factory(nodeType)
	if err != nil {
		return nil, err
	}

	if err := r.validateConfig(factory, config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %q: %w", nodeType, err)
	}

	return factory.Create(config)
}

// IsRegistered reports whether a node type is in the closed set.
func (r *Registry) IsRegistered(nodeType string) bool {
	_, ok := r.factories[nodeType]

	return ok
}

// Types returns all registered node types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for nodeType := range r.factories {
		types = append(types, nodeType)
	}

	return types
}

func (r *Registry) validateConfig(factory protocol.AdapterFactory, config map[string]any) error {
	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	if config == nil {
		config = map[string]any{}
	}

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(configJSON),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		first := result.Errors()[0]

		return fmt.Errorf("config does not match schema: %s", first.String())
	}

	return nil
}
