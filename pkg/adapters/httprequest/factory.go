package httprequest

import (
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() protocol.AdapterFactory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.Adapter, error) {
	return NewAdapter(config)
}

func (f *Factory) ID() string {
	return models.NodeTypeHTTPRequest
}

func (f *Factory) Timeout() time.Duration {
	// Upper bound for the whole dispatch including retries; the per-request
	// timeout inside the adapter is tighter.
	return 2 * time.Minute
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Endpoint to call, including scheme",
			},
			"method": map[string]any{
				"type": "string",
				"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Caller-supplied headers passed through verbatim",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Raw request body, usually JSON",
			},
			"timeout_seconds": map[string]any{
				"type":    "number",
				"minimum": 1,
				"maximum": 120,
			},
			"retry": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"attempts":      map[string]any{"type": "number", "minimum": 1, "maximum": 5},
					"delay_seconds": map[string]any{"type": "number", "minimum": 0, "maximum": 60},
				},
			},
		},
		"required": []string{"url"},
	}
}
