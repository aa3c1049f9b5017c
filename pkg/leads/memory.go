package leads

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leads: make(map[string]*Lead)}
}

func (s *MemoryStore) Create(_ context.Context, lead *Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *lead
	s.leads[leadKey(lead.TenantID, lead.ID)] = &copied

	return nil
}

func (s *MemoryStore) Get(_ context.Context, tenantID, leadID string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[leadKey(tenantID, leadID)]
	if !ok {
		return nil, ErrLeadNotFound
	}

	copied := *lead

	return &copied, nil
}

func (s *MemoryStore) UpdateStage(_ context.Context, tenantID, leadID, stage string) (*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[leadKey(tenantID, leadID)]
	if !ok {
		return nil, ErrLeadNotFound
	}

	lead.Stage = stage
	lead.UpdatedAt = time.Now().UTC()
	copied := *lead

	return &copied, nil
}

// Count reports how many leads the store holds, for test assertions.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.leads)
}
