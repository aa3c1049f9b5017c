// Package wait provides the delay adapter. The delay suspends only the
// owning run's goroutine; other runs keep executing. Test mode skips the
// delay and reports it as simulated.
package wait

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
)

const maxDelaySeconds = 240

var ErrInvalidDuration = errors.New("wait requires 'duration_seconds' between 0 and 240")

type Adapter struct {
	delay time.Duration
}

func NewAdapter(config map[string]any) (*Adapter, error) {
	seconds, ok := config["duration_seconds"].(float64)
	if !ok || seconds < 0 || seconds > maxDelaySeconds {
		return nil, ErrInvalidDuration
	}

	return &Adapter{delay: time.Duration(seconds * float64(time.Second))}, nil
}

func (a *Adapter) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (map[string]any, error) {
	if req.Mode == models.ModeTest {
		logger.InfoContext(ctx, "Simulating wait", "delay", a.delay)

		return map[string]any{
			"waited_ms": a.delay.Milliseconds(),
			"simulated": true,
		}, nil
	}

	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return map[string]any{"waited_ms": a.delay.Milliseconds()}, nil
}

type Factory struct{}

func NewFactory() protocol.AdapterFactory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.Adapter, error) {
	return NewAdapter(config)
}

func (f *Factory) ID() string {
	return models.NodeTypeWait
}

func (f *Factory) Timeout() time.Duration {
	// Must exceed the maximum configurable delay.
	return (maxDelaySeconds + 30) * time.Second
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_seconds": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": maxDelaySeconds,
			},
		},
		"required": []string{"duration_seconds"},
	}
}
