package storage

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors for the storage package.
var (
	ErrDeckNotFound    = errors.New("storage: deck not found")
	ErrCardNotFound    = errors.New("storage: card not found")
	ErrCorruptData     = errors.New("storage: stored decks are corrupt")
	ErrVersionConflict = errors.New("storage: version conflict")
	ErrNoValidCards    = errors.New("storage: no valid cards")
)

// Backend is a durable key-value store with a version token per key.
//
// Get returns (nil, 0, nil) for an absent key. Put writes data only if the
// stored version still equals expected (0 meaning "absent") and returns the
// new version; otherwise it returns ErrVersionConflict.
type Backend interface {
	Get(ctx context.Context, key string) (data []byte, version int64, err error)
	Put(ctx context.Context, key string, data []byte, expected int64) (int64, error)
	Close() error
}

type memoryEntry struct {
	data    []byte
	version int64
}

// MemoryBackend keeps values in process memory. It is safe for concurrent use.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, 0, nil
	}
	return append([]byte(nil), e.data...), e.version, nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, data []byte, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key].version != expected {
		return 0, ErrVersionConflict
	}
	next := expected + 1
	m.entries[key] = memoryEntry{data: append([]byte(nil), data...), version: next}
	return next, nil
}

func (m *MemoryBackend) Close() error { return nil }
