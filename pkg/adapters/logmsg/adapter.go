// Package logmsg provides the log adapter, a no-side-effect action that
// writes a message into the service log and the step record.
package logmsg

import (
	"context"
	"log/slog"
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
)

type Adapter struct {
	message string
	level   string
}

func NewAdapter(config map[string]any) (*Adapter, error) {
	message, _ := config["message"].(string)

	level, _ := config["level"].(string)
	if level == "" {
		level = "info"
	}

	return &Adapter{message: message, level: level}, nil
}

func (a *Adapter) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "log_adapter", "run_id", req.RunID, "node_id", req.NodeID)

	switch a.level {
	case "debug":
		logger.DebugContext(ctx, a.message)
	case "warn":
		logger.WarnContext(ctx, a.message)
	case "error":
		logger.ErrorContext(ctx, a.message)
	default:
		logger.InfoContext(ctx, a.message)
	}

	return map[string]any{"logged": a.message}, nil
}

type Factory struct{}

func NewFactory() protocol.AdapterFactory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.Adapter, error) {
	return NewAdapter(config)
}

func (f *Factory) ID() string {
	return models.NodeTypeLog
}

func (f *Factory) Timeout() time.Duration {
	return 5 * time.Second
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
			"level": map[string]any{
				"type": "string",
				"enum": []string{"debug", "info", "warn", "error"},
			},
		},
	}
}
