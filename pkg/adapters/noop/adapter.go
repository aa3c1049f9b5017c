// Package noop provides the no-op adapter, used as a placeholder branch
// target in user-authored graphs.
package noop

import (
	"context"
	"log/slog"
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
)

type Adapter struct{}

func (a *Adapter) Execute(_ context.Context, _ protocol.ExecutionRequest, _ *slog.Logger) (map[string]any, error) {
	return map[string]any{}, nil
}

type Factory struct{}

func NewFactory() protocol.AdapterFactory {
	return &Factory{}
}

func (f *Factory) Create(_ map[string]any) (protocol.Adapter, error) {
	return &Adapter{}, nil
}

func (f *Factory) ID() string {
	return models.NodeTypeNoop
}

func (f *Factory) Timeout() time.Duration {
	return time.Second
}

func (f *Factory) Schema() map[string]any {
	return nil
}
