package lead

import (
	"time"

	"github.com/autoflowhq/autoflow/pkg/leads"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
)

type CreateFactory struct {
	store leads.Store
}

func NewCreateFactory(store leads.Store) protocol.AdapterFactory {
	return &CreateFactory{store: store}
}

func (f *CreateFactory) Create(config map[string]any) (protocol.Adapter, error) {
	return NewCreateAdapter(f.store, config)
}

func (f *CreateFactory) ID() string {
	return models.NodeTypeCreateLead
}

func (f *CreateFactory) Timeout() time.Duration {
	return 10 * time.Second
}

func (f *CreateFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fields": map[string]any{
				"type":        "object",
				"description": "Literal lead attributes (name, email, stage, custom fields)",
			},
			"field_paths": map[string]any{
				"type":        "object",
				"description": "Lead attribute to dotted context path, resolved at execution time",
			},
		},
	}
}

type UpdateFactory struct {
	store leads.Store
}

func NewUpdateFactory(store leads.Store) protocol.AdapterFactory {
	return &UpdateFactory{store: store}
}

func (f *UpdateFactory) Create(config map[string]any) (protocol.Adapter, error) {
	return NewUpdateAdapter(f.store, config)
}

func (f *UpdateFactory) ID() string {
	return models.NodeTypeUpdateLead
}

func (f *UpdateFactory) Timeout() time.Duration {
	return 10 * time.Second
}

func (f *UpdateFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stage": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Stage to move the lead to",
			},
			"lead_id_path": map[string]any{
				"type":        "string",
				"description": "Dotted context path to the lead id (default lead.id)",
			},
		},
		"required": []string{"stage"},
	}
}
