package credstore

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore implements Store in process memory. Intended for tests and
// single-process development setups; nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]string),
	}
}

func memoryKey(service, userID string) string {
	return service + "\x00" + userID
}

// Upsert stores or replaces the payload for (service, userID).
func (s *MemoryStore) Upsert(ctx context.Context, service, userID string, payload map[string]string) error {
	if service == "" || userID == "" {
		return newStoreError("upsert", service, "service and user id are required", nil)
	}

	copied := make(map[string]string, len(payload))
	maps.Copy(copied, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[memoryKey(service, userID)] = copied
	return nil
}

// Get returns the payload for (service, userID).
func (s *MemoryStore) Get(ctx context.Context, service, userID string) (map[string]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.records[memoryKey(service, userID)]
	if !ok {
		return nil, false, nil
	}

	copied := make(map[string]string, len(payload))
	maps.Copy(copied, payload)
	return copied, true, nil
}

// Delete removes the record for (service, userID). Idempotent.
func (s *MemoryStore) Delete(ctx context.Context, service, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, memoryKey(service, userID))
	return nil
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)
