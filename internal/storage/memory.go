package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory ObjectStore for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	signed  int
}

// Ensure MemoryStore implements ObjectStore interface.
var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Upload keeps data in memory under path.
func (m *MemoryStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[path] = buf
	return path, nil
}

// SignedURL returns a fake URL that changes on every call, mirroring how a
// real backend issues a fresh signature each time.
func (m *MemoryStore) SignedURL(ctx context.Context, storedPath string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[storedPath]; !ok {
		return "", fmt.Errorf("object %s not found", storedPath)
	}
	m.signed++
	return fmt.Sprintf("https://store.local/%s?sig=%d&ttl=%d", storedPath, m.signed, int64(ttl.Seconds())), nil
}

// Object returns the stored bytes for assertions in tests.
func (m *MemoryStore) Object(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	return data, ok
}
