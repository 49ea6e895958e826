package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/heimdall-sdk/internal/observability"
)

const backendMemory = "memory"

// MemoryStore is an in-process Store backed by otter (S3-FIFO). It is useful
// when several clients in one process share SDK keys, and as a bounded,
// expiring stand-in for an external cache in tests.
type MemoryStore struct {
	store otter.Cache[string, string]
}

// NewMemoryStore initializes the in-memory store with strict limits.
// capacity: Max number of entries (Hard Cap to prevent OOM).
// ttl: Time-To-Live of entries.
func NewMemoryStore(capacity int, ttl time.Duration) (*MemoryStore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("memory store capacity must be positive, got %d", capacity)
	}

	c, err := otter.MustBuilder[string, string](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build memory store: %w", err)
	}

	return &MemoryStore{store: c}, nil
}

// Get returns the entry stored under key, or "" when absent or expired.
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.store.Get(key)
	if !ok {
		observability.CacheMisses.WithLabelValues(backendMemory).Inc()
		return "", nil
	}
	observability.CacheHits.WithLabelValues(backendMemory).Inc()
	return v, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.store.Set(key, value)
	observability.CacheItems.Set(float64(m.store.Size()))
	return nil
}

// Close shuts down the background cleanup goroutines of the store.
func (m *MemoryStore) Close() {
	m.store.Close()
}
