// Package docstore keeps each collection as one JSON array under a key in a
// blob backend. Every write is a read-modify-write of the whole array,
// serialized per process by the Store's mutex.
package docstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNotExist is returned by a Blob when the key has never been written.
var ErrNotExist = errors.New("docstore: key does not exist")

// Blob is the byte-level backend under a Store.
type Blob interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryBlob is a thread-safe in-memory Blob for tests and demos.
type MemoryBlob struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{data: make(map[string][]byte)}
}

func (m *MemoryBlob) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryBlob) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBlob) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
