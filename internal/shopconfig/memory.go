package shopconfig

import (
	"context"
	"sync"
)

// MemoryStore keeps configurations in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Configuration
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Configuration{}}
}

// Find implements Store.
func (m *MemoryStore) Find(_ context.Context, shop string) (Configuration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.records[shop]
	if !ok {
		return Configuration{}, ErrNotFound
	}
	return cfg, nil
}

// Insert implements Store.
func (m *MemoryStore) Insert(_ context.Context, cfg Configuration) (Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[cfg.Shop]; exists {
		return Configuration{}, ErrDuplicateShop
	}
	m.records[cfg.Shop] = cfg
	return cfg, nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, cfg Configuration) (Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[cfg.Shop]
	if !ok {
		return Configuration{}, ErrNotFound
	}
	existing.UnitOfMeasurement = cfg.UnitOfMeasurement
	existing.UnitPrice = cfg.UnitPrice
	existing.UpdatedAt = cfg.UpdatedAt
	m.records[cfg.Shop] = existing
	return existing, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
