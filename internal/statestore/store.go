// Package statestore keeps small JSON documents (alert watermarks, export
// checkpoints) in a keyed store.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a key has no document.
var ErrNotFound = errors.New("state not found")

// Store reads and writes JSON documents by key.
// Writes are plain overwrites; there is no compare-and-swap.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) error
	PutJSON(ctx context.Context, key string, v any) error
}

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// GetJSON decodes the document stored at key into dst.
func (m *MemoryStore) GetJSON(_ context.Context, key string, dst any) error {
	m.mu.Lock()
	raw, ok := m.docs[key]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and stores it at key.
func (m *MemoryStore) PutJSON(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.docs[key] = raw
	m.mu.Unlock()
	return nil
}

// Raw returns the stored bytes for key.
func (m *MemoryStore) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[key]
	return raw, ok
}
