// Package queue consumes CRM domain events from a Redis list and turns
// them into trigger requests.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/autoflowhq/autoflow/pkg/models"
)

const DefaultQueue = "autoflow:events"

// DispatchFunc receives the trigger request decoded from a queue message.
type DispatchFunc func(ctx context.Context, req models.TriggerRequest) error

// inboundEvent is the wire shape producers push onto the list.
type inboundEvent struct {
	TenantID  string         `json:"tenant_id"`
	EventName string         `json:"event_name"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Receiver struct {
	Connection map[string]string
	Queue      string

	client   redis.UniversalClient
	dispatch DispatchFunc
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewReceiver(config map[string]any, logger *slog.Logger) (*Receiver, error) {
	queue, _ := config["queue"].(string)
	if queue == "" {
		queue = DefaultQueue
	}

	connectionConfig, _ := config["connection"].(map[string]any)

	connection := make(map[string]string)
	for k, v := range connectionConfig {
		if str, ok := v.(string); ok {
			connection[k] = str
		}
	}

	receiver := &Receiver{
		Connection: connection,
		Queue:      queue,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_receiver",
			"queue", queue,
		),
	}

	err := receiver.Validate()
	if err != nil {
		return nil, err
	}

	return receiver, nil
}

func (r *Receiver) Validate() error {
	if r.Queue == "" {
		return errors.New("queue receiver queue name is required")
	}

	return nil
}

func (r *Receiver) Start(ctx context.Context, dispatch DispatchFunc) error {
	r.logger.InfoContext(ctx, "Starting queue receiver")
	r.dispatch = dispatch

	err := r.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *Receiver) initializeClient(ctx context.Context) error {
	addr := r.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	password := r.Connection["password"]
	db := 0

	if dbStr := r.Connection["db"]; dbStr != "" {
		var err error
		if db, err = r.parseDB(dbStr); err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
	}

	r.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return nil
}

func (r *Receiver) parseDB(dbStr string) (int, error) {
	var db int

	_, err := fmt.Sscanf(dbStr, "%d", &db)

	return db, err
}

func (r *Receiver) consume(ctx context.Context) {
	defer r.wg.Done()

	r.logger.InfoContext(ctx, "Starting queue consumer", "queue", r.Queue)

	for {
		select {
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := r.processMessage(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (r *Receiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, 1*time.Second, r.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	req, err := DecodeMessage(message)
	if err != nil {
		// A bad message must not stall the consumer. Drop it and move on.
		r.logger.WarnContext(ctx, "Dropping malformed queue message", "error", err, "message", message)

		return nil
	}

	r.logger.InfoContext(ctx, "Received domain event",
		"tenant_id", req.TenantID, "event_name", req.EventName)

	go func() {
		err := r.dispatch(ctx, req)
		if err != nil {
			r.logger.ErrorContext(ctx, "Error dispatching trigger request", "error", err)
		}
	}()

	return nil
}

// DecodeMessage parses a raw queue message into an event trigger request.
func DecodeMessage(message string) (models.TriggerRequest, error) {
	var event inboundEvent
	if err := json.Unmarshal([]byte(message), &event); err != nil {
		return models.TriggerRequest{}, fmt.Errorf("invalid event message: %w", err)
	}

	if event.TenantID == "" {
		return models.TriggerRequest{}, errors.New("event message missing tenant_id")
	}

	if event.EventName == "" {
		return models.TriggerRequest{}, errors.New("event message missing event_name")
	}

	return models.TriggerRequest{
		SourceType: models.TriggerTypeEvent,
		TenantID:   event.TenantID,
		EventName:  event.EventName,
		Payload:    event.Payload,
	}, nil
}

func (r *Receiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping queue receiver")

	close(r.stopCh)
	r.wg.Wait()

	if r.client != nil {
		err := r.client.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
