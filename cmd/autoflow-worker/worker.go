package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/autoflowhq/autoflow/pkg/engine"
	"github.com/autoflowhq/autoflow/pkg/eventbus"
	"github.com/autoflowhq/autoflow/pkg/events"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/otelhelper"
	"github.com/autoflowhq/autoflow/pkg/persistence"
	"github.com/autoflowhq/autoflow/pkg/receivers/queue"
	"github.com/autoflowhq/autoflow/pkg/recorder"
	"github.com/autoflowhq/autoflow/pkg/registry"
	"github.com/autoflowhq/autoflow/pkg/services"
	"github.com/autoflowhq/autoflow/pkg/trigger"
)

type WorkerManager struct {
	id              string
	logger          *slog.Logger
	persistence     persistence.Persistence
	registry        *registry.Registry
	eventBus        eventbus.EventBus
	eventsQueueAddr string
	eventsQueue     string

	runService *services.Run
	tracer     trace.Tracer
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	registry *registry.Registry,
	eventsQueueAddr string,
	eventsQueue string,
) *WorkerManager {
	return &WorkerManager{
		id:              id,
		logger:          logger.With("module", "autoflow-worker", "worker_id", id),
		persistence:     persistence,
		registry:        registry,
		eventBus:        eventBus,
		eventsQueueAddr: eventsQueueAddr,
		eventsQueue:     eventsQueue,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	tracer, err := otelhelper.NewTracer(ctx, "autoflow-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled, failed to initialize tracer", "error", err)

		tracer = noop.NewTracerProvider().Tracer("autoflow-worker")
	}

	w.tracer = tracer

	rec := recorder.NewRecorder(w.logger, w.persistence.RunRepository())
	eng := engine.New(w.logger, rec, w.registry,
		engine.WithEventBus(w.eventBus),
		engine.WithWorkerID(w.id),
		engine.WithCancelProbe(w.automationDisabled),
	)
	automationService := services.NewAutomation(w.logger, w.persistence, w.registry)
	w.runService = services.NewRun(
		w.logger,
		w.persistence,
		trigger.NewMatcher(w.logger),
		eng,
		rec,
		automationService,
		w.eventBus,
	)

	w.eventBus.Handle(events.RunQueuedEvent, w.handleRunQueued)

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	var receiver *queue.Receiver

	if w.eventsQueueAddr != "" {
		receiver, err = queue.NewReceiver(map[string]any{
			"queue": w.eventsQueue,
			"connection": map[string]any{
				"addr": w.eventsQueueAddr,
			},
		}, w.logger)
		if err != nil {
			return err
		}

		err = receiver.Start(ctx, w.dispatchDomainEvent)
		if err != nil {
			return err
		}
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	if receiver != nil {
		err := receiver.Stop(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to stop queue receiver", "error", err)
		}
	}

	return nil
}

func (w *WorkerManager) handleRunQueued(ctx context.Context, event any) error {
	queuedEvent, ok := event.(*events.RunQueued)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for RunQueued")

		return nil
	}

	logger := w.logger.With(
		"automation_id", queuedEvent.AutomationID,
		"run_id", queuedEvent.RunID,
		"event_id", queuedEvent.ID,
	)
	logger.InfoContext(ctx, "Processing queued run")

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.run execute",
		attribute.String(otelhelper.AutomationIDKey, queuedEvent.AutomationID),
		attribute.String(otelhelper.TenantIDKey, queuedEvent.TenantID),
		attribute.String(otelhelper.RunIDKey, queuedEvent.RunID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	run, err := w.runService.ExecuteQueued(ctx, queuedEvent.RunID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to execute run", "error", err)
		otelhelper.SetError(span, err)

		return err
	}

	logger.InfoContext(ctx, "Run completed", "status", run.Status, "steps", len(run.Steps))

	return nil
}

// automationDisabled lets the engine stop a live run between node dispatches
// when its automation was disabled or deleted mid-run.
func (w *WorkerManager) automationDisabled(ctx context.Context, run *models.Run) bool {
	if run.Mode != models.ModeLive {
		return false
	}

	automation, err := w.persistence.AutomationRepository().GetByID(ctx, run.AutomationID)
	if err != nil {
		return false
	}

	return !automation.Enabled || automation.DeletedAt != nil
}

// dispatchDomainEvent feeds an incoming CRM event into trigger matching.
// A request that activates nothing is not an error.
func (w *WorkerManager) dispatchDomainEvent(ctx context.Context, req models.TriggerRequest) error {
	result, err := w.runService.Trigger(ctx, req)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Domain event dispatched",
		"tenant_id", req.TenantID,
		"event_name", req.EventName,
		"queued_runs", len(result.QueuedRunIDs),
		"match_errors", len(result.MatchErrors),
	)

	return nil
}
