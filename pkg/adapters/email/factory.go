package email

import (
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
)

type Factory struct {
	sender Sender
}

func NewFactory(sender Sender) protocol.AdapterFactory {
	return &Factory{sender: sender}
}

func (f *Factory) Create(config map[string]any) (protocol.Adapter, error) {
	return NewAdapter(f.sender, config)
}

func (f *Factory) ID() string {
	return models.NodeTypeSendEmail
}

func (f *Factory) Timeout() time.Duration {
	return 15 * time.Second
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to":      map[string]any{"type": "string", "description": "Literal recipient address"},
			"to_path": map[string]any{"type": "string", "description": "Dotted context path to the recipient"},
			"subject": map[string]any{"type": "string"},
			"body":    map[string]any{"type": "string"},
		},
	}
}
