// Package transform provides the pure data-transform adapter: it projects
// values out of the run context into new keys, with no I/O. Given the same
// context it always produces the same output.
package transform

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/autoflowhq/autoflow/pkg/condition"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
)

var ErrNoMappings = errors.New("transform requires 'mappings' or 'values'")

type Adapter struct {
	mappings map[string]string
	values   map[string]any
}

// NewAdapter builds a transform from "mappings" (output key to dotted
// context path) and "values" (output key to literal).
func NewAdapter(config map[string]any) (*Adapter, error) {
	adapter := &Adapter{
		mappings: map[string]string{},
		values:   map[string]any{},
	}

	if raw, ok := config["mappings"].(map[string]any); ok {
		for key, value := range raw {
			if path, ok := value.(string); ok && path != "" {
				adapter.mappings[key] = path
			}
		}
	}

	if raw, ok := config["values"].(map[string]any); ok {
		adapter.values = raw
	}

	if len(adapter.mappings) == 0 && len(adapter.values) == 0 {
		return nil, ErrNoMappings
	}

	return adapter, nil
}

func (a *Adapter) Execute(_ context.Context, req protocol.ExecutionRequest, _ *slog.Logger) (map[string]any, error) {
	output := make(map[string]any, len(a.mappings)+len(a.values))

	for key, value := range a.values {
		output[key] = value
	}

	for key, path := range a.mappings {
		if value := condition.Lookup(req.Context, path); condition.IsDefined(value) {
			output[key] = value
		}
	}

	return output, nil
}

type Factory struct{}

func NewFactory() protocol.AdapterFactory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.Adapter, error) {
	return NewAdapter(config)
}

func (f *Factory) ID() string {
	return models.NodeTypeTransform
}

func (f *Factory) Timeout() time.Duration {
	return 5 * time.Second
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mappings": map[string]any{
				"type":        "object",
				"description": "Output key to dotted context path",
			},
			"values": map[string]any{
				"type":        "object",
				"description": "Output key to literal value",
			},
		},
	}
}
