package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps leads as JSON values keyed per tenant.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func leadKey(tenantID, leadID string) string {
	return "autoflow:leads:" + tenantID + ":" + leadID
}

func (s *RedisStore) Create(ctx context.Context, lead *Lead) error {
	payload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	err = s.client.Set(ctx, leadKey(lead.TenantID, lead.ID), payload, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to store lead %s: %w", lead.ID, err)
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, tenantID, leadID string) (*Lead, error) {
	payload, err := s.client.Get(ctx, leadKey(tenantID, leadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrLeadNotFound
		}

		return nil, fmt.Errorf("failed to fetch lead %s: %w", leadID, err)
	}

	var lead Lead
	if err := json.Unmarshal(payload, &lead); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead %s: %w", leadID, err)
	}

	return &lead, nil
}

func (s *RedisStore) UpdateStage(ctx context.Context, tenantID, leadID, stage string) (*Lead, error) {
	lead, err := s.Get(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}

	lead.Stage = stage
	lead.UpdatedAt = time.Now().UTC()

	if err := s.Create(ctx, lead); err != nil {
		return nil, err
	}

	return lead, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
