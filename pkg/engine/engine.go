// Package engine walks automation graphs and executes their nodes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/autoflowhq/autoflow/pkg/condition"
	"github.com/autoflowhq/autoflow/pkg/eventbus"
	"github.com/autoflowhq/autoflow/pkg/events"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
	"github.com/autoflowhq/autoflow/pkg/recorder"
	"github.com/autoflowhq/autoflow/pkg/registry"
)

// DefaultStepBudget bounds how many nodes a single run may execute. Graphs
// are not validated to be acyclic, so the budget is what turns an edge cycle
// into a failed run instead of an infinite walk.
const DefaultStepBudget = 200

// Engine executes automation runs. Within one run the walk is strictly
// sequential: one node at a time, each seeing the outputs of all previous
// nodes through the run context.
type Engine struct {
	logger      *slog.Logger
	registry    *registry.Registry
	recorder    *recorder.Recorder
	publisher   eventbus.EventPublisher
	stepBudget  int
	workerID    string
	cancelProbe CancelProbe
}

// Option configures an Engine.
type Option func(*Engine)

// CancelProbe reports whether a run should stop before the next node
// dispatch, e.g. because its automation was disabled mid-run.
type CancelProbe func(ctx context.Context, run *models.Run) bool

// WithCancelProbe installs a check consulted between node dispatches.
func WithCancelProbe(probe CancelProbe) Option {
	return func(e *Engine) {
		e.cancelProbe = probe
	}
}

// WithStepBudget overrides the default per-run step budget.
func WithStepBudget(budget int) Option {
	return func(e *Engine) {
		if budget > 0 {
			e.stepBudget = budget
		}
	}
}

// WithEventBus makes the engine publish run lifecycle events.
func WithEventBus(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithWorkerID stamps published events with the executing worker's id.
func WithWorkerID(workerID string) Option {
	return func(e *Engine) {
		e.workerID = workerID
	}
}

// New creates an engine.
func New(logger *slog.Logger, rec *recorder.Recorder, reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		logger:     logger.With("module", "engine"),
		registry:   reg,
		recorder:   rec,
		stepBudget: DefaultStepBudget,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run creates, executes and finalizes a run for the automation in one call.
// The returned run is always non-nil once the record was created; its status
// tells the caller how the walk ended.
func (e *Engine) Run(ctx context.Context, automation *models.Automation, mode models.ExecutionMode, triggerPayload map[string]any) (*models.Run, error) {
	run := &models.Run{
		ID:             uuid.New().String(),
		AutomationID:   automation.ID,
		TenantID:       automation.TenantID,
		Mode:           mode,
		TriggerPayload: triggerPayload,
	}

	if err := e.recorder.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	if err := e.Execute(ctx, automation, run); err != nil {
		return run, err
	}

	return run, nil
}

// Execute walks the automation graph for an already persisted running run.
// The walk outcome lands on the run record; the returned error reports
// infrastructure problems only, never node failures.
func (e *Engine) Execute(ctx context.Context, automation *models.Automation, run *models.Run) error {
	started := time.Now()

	e.publish(ctx, run, events.RunStarted{
		BaseEvent: e.baseEvent(events.RunStartedEvent, run),
		RunID:     run.ID,
		Mode:      run.Mode,
	})

	graph := models.NewGraph(automation)

	trigger := graph.TriggerNode()
	if trigger == nil {
		return e.fail(ctx, run, started, "automation has no trigger node")
	}

	runCtx := models.NewRunContext(run.TriggerPayload)

	edge, ok := graph.FirstOutgoing(trigger.ID)
	if !ok {
		// A trigger with nothing wired to it is a legal, empty automation.
		return e.succeed(ctx, run, started)
	}

	nodeID := edge.Target

	for steps := 0; ; {
		if err := ctx.Err(); err != nil {
			return e.cancel(ctx, run, started)
		}

		if e.cancelProbe != nil && e.cancelProbe(ctx, run) {
			return e.cancel(ctx, run, started)
		}

		node, ok := graph.NodeByID(nodeID)
		if !ok {
			return e.fail(ctx, run, started, fmt.Sprintf("edge points at unknown node %q", nodeID))
		}

		steps++
		if steps > e.stepBudget {
			return e.fail(ctx, run, started, fmt.Sprintf("step budget of %d exceeded, graph likely contains a cycle", e.stepBudget))
		}

		var (
			next    string
			hasNext bool
			err     error
		)

		switch {
		case node.Disabled:
			next, hasNext, err = e.skipNode(ctx, graph, run, runCtx, node)
		case node.IsCondition():
			next, hasNext, err = e.evaluateCondition(ctx, graph, run, runCtx, node)
		default:
			next, hasNext, err = e.dispatchNode(ctx, graph, run, runCtx, node)
		}

		if err != nil {
			var nodeErr *nodeFailure
			if errors.As(err, &nodeErr) {
				if nodeErr.cancelled {
					return e.cancel(ctx, run, started)
				}

				return e.fail(ctx, run, started, nodeErr.message)
			}

			return err
		}

		if !hasNext {
			return e.succeed(ctx, run, started)
		}

		nodeID = next
	}
}

// nodeFailure distinguishes a run-level failure (recorded on the run) from
// an infrastructure error (returned to the caller).
type nodeFailure struct {
	message   string
	cancelled bool
}

func (f *nodeFailure) Error() string {
	return f.message
}

// skipNode records a skipped step for a disabled node and passes control to
// its first outgoing edge, regardless of handles.
func (e *Engine) skipNode(ctx context.Context, graph *models.Graph, run *models.Run, runCtx *models.RunContext, node *models.Node) (string, bool, error) {
	step := models.StepRecord{
		NodeID:    node.ID,
		NodeType:  node.Type,
		Input:     runCtx.Snapshot(),
		Outcome:   models.StepOutcomeSkipped,
		StartedAt: time.Now().UTC(),
	}

	if err := e.recorder.Append(ctx, run, step); err != nil {
		return "", false, err
	}

	e.publishStep(ctx, run, step)

	edge, ok := graph.FirstOutgoing(node.ID)
	if !ok {
		return "", false, nil
	}

	return edge.Target, true, nil
}

// evaluateCondition parses and evaluates a condition node, then follows the
// branch matching the boolean result. A missing branch edge is a
// configuration error that fails the run.
func (e *Engine) evaluateCondition(ctx context.Context, graph *models.Graph, run *models.Run, runCtx *models.RunContext, node *models.Node) (string, bool, error) {
	stepStart := time.Now().UTC()

	group, err := condition.Parse(node.Config)
	if err != nil {
		step := models.StepRecord{
			NodeID:    node.ID,
			NodeType:  node.Type,
			Input:     runCtx.Snapshot(),
			Outcome:   models.StepOutcomeFailure,
			Error:     err.Error(),
			StartedAt: stepStart,
		}

		if appendErr := e.recorder.Append(ctx, run, step); appendErr != nil {
			return "", false, appendErr
		}

		e.publishStep(ctx, run, step)

		return "", false, &nodeFailure{message: fmt.Sprintf("condition node %s: %v", node.ID, err)}
	}

	result := group.Evaluate(runCtx.Data())

	handle := models.EdgeHandleFalse
	if result {
		handle = models.EdgeHandleTrue
	}

	step := models.StepRecord{
		NodeID:     node.ID,
		NodeType:   node.Type,
		Input:      runCtx.Snapshot(),
		Output:     map[string]any{"result": result},
		Outcome:    models.StepOutcomeSuccess,
		StartedAt:  stepStart,
		DurationMS: time.Since(stepStart).Milliseconds(),
	}

	if err := e.recorder.Append(ctx, run, step); err != nil {
		return "", false, err
	}

	e.publishStep(ctx, run, step)

	edge, ok := graph.OutgoingByHandle(node.ID, handle)
	if !ok {
		return "", false, &nodeFailure{message: fmt.Sprintf("condition node %s has no %q branch", node.ID, handle)}
	}

	return edge.Target, true, nil
}

// dispatchNode executes an action node through its adapter under the node
// type's timeout. The adapter's output is recorded even when it also
// returns an error, so partial results like an HTTP status stay visible.
func (e *Engine) dispatchNode(ctx context.Context, graph *models.Graph, run *models.Run, runCtx *models.RunContext, node *models.Node) (string, bool, error) {
	stepStart := time.Now().UTC()
	input := runCtx.Snapshot()

	adapter, factory, err := e.createAdapter(node)
	if err != nil {
		step := models.StepRecord{
			NodeID:    node.ID,
			NodeType:  node.Type,
			Input:     input,
			Outcome:   models.StepOutcomeFailure,
			Error:     err.Error(),
			StartedAt: stepStart,
		}

		if appendErr := e.recorder.Append(ctx, run, step); appendErr != nil {
			return "", false, appendErr
		}

		e.publishStep(ctx, run, step)

		return "", false, &nodeFailure{message: fmt.Sprintf("node %s: %v", node.ID, err)}
	}

	execCtx, cancel := context.WithTimeout(ctx, factory.Timeout())
	defer cancel()

	req := protocol.ExecutionRequest{
		RunID:    run.ID,
		TenantID: run.TenantID,
		NodeID:   node.ID,
		Mode:     run.Mode,
		Context:  input,
	}

	output, execErr := adapter.Execute(execCtx, req, e.logger.With("run_id", run.ID, "node_id", node.ID))

	step := models.StepRecord{
		NodeID:     node.ID,
		NodeType:   node.Type,
		Input:      input,
		Output:     output,
		Outcome:    models.StepOutcomeSuccess,
		StartedAt:  stepStart,
		DurationMS: time.Since(stepStart).Milliseconds(),
	}

	if execErr != nil {
		step.Outcome = models.StepOutcomeFailure
		step.Error = execErr.Error()
	}

	// Record the step even when the walk's context was cancelled mid-dispatch.
	if err := e.recorder.Append(context.WithoutCancel(ctx), run, step); err != nil {
		return "", false, err
	}

	e.publishStep(ctx, run, step)

	if execErr != nil {
		// Cancellation of the run's own context is not a node failure.
		if ctx.Err() != nil {
			return "", false, &nodeFailure{cancelled: true}
		}

		return "", false, &nodeFailure{message: fmt.Sprintf("node %s: %v", node.ID, execErr)}
	}

	if output != nil {
		runCtx.Merge(output)
	}

	edge, ok := graph.FirstOutgoing(node.ID)
	if !ok {
		return "", false, nil
	}

	return edge.Target, true, nil
}

func (e *Engine) createAdapter(node *models.Node) (protocol.Adapter, protocol.AdapterFactory, error) {
	factory, err := e.registry.Factory(node.Type)
	if err != nil {
		return nil, nil, err
	}

	adapter, err := e.registry.CreateAdapter(node.Type, node.Config)
	if err != nil {
		return nil, nil, err
	}

	return adapter, factory, nil
}

func (e *Engine) succeed(ctx context.Context, run *models.Run, started time.Time) error {
	if _, err := e.recorder.Finalize(ctx, run, models.RunStatusSucceeded, ""); err != nil {
		return err
	}

	e.publish(ctx, run, events.RunFinished{
		BaseEvent: e.baseEvent(events.RunFinishedEvent, run),
		RunID:     run.ID,
		Steps:     len(run.Steps),
		Duration:  time.Since(started),
	})

	return nil
}

func (e *Engine) fail(ctx context.Context, run *models.Run, started time.Time, message string) error {
	if _, err := e.recorder.Finalize(ctx, run, models.RunStatusFailed, message); err != nil {
		return err
	}

	e.publish(ctx, run, events.RunFailed{
		BaseEvent: e.baseEvent(events.RunFailedEvent, run),
		RunID:     run.ID,
		Error:     message,
		Duration:  time.Since(started),
	})

	return nil
}

func (e *Engine) cancel(ctx context.Context, run *models.Run, _ time.Time) error {
	// The walk's own context is gone, so finalize with a fresh one.
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := e.recorder.Finalize(finalizeCtx, run, models.RunStatusCancelled, "run cancelled"); err != nil {
		return err
	}

	e.publish(finalizeCtx, run, events.RunCancelled{
		BaseEvent: e.baseEvent(events.RunCancelledEvent, run),
		RunID:     run.ID,
	})

	return nil
}

func (e *Engine) publishStep(ctx context.Context, run *models.Run, step models.StepRecord) {
	e.publish(ctx, run, events.RunStepCompleted{
		BaseEvent:  e.baseEvent(events.RunStepCompletedEvent, run),
		RunID:      run.ID,
		NodeID:     step.NodeID,
		NodeType:   step.NodeType,
		Outcome:    step.Outcome,
		DurationMS: step.DurationMS,
	})
}

func (e *Engine) publish(ctx context.Context, run *models.Run, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, run.AutomationID, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish run event",
			"run_id", run.ID,
			"event_type", event.GetType(),
			"error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, run *models.Run) events.BaseEvent {
	base := events.NewBaseEvent(eventType, run.TenantID, run.AutomationID)
	base.WorkerID = e.workerID

	return base
}
