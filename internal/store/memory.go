package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/wormhole/internal/shortener"
)

// MemoryStore is an in-memory implementation of shortener.Repository.
// Expired records stay in the map until they are overwritten or deleted.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*shortener.Record
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory URL store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*shortener.Record),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, code shortener.Code) (*shortener.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.live(code.String())
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return rec.Clone(), nil
}

func (m *MemoryStore) Exists(_ context.Context, code shortener.Code) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.live(code.String())

	return ok, nil
}

func (m *MemoryStore) Put(_ context.Context, code shortener.Code, rec *shortener.Record, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(code.String()); ok && !overwrite {
		return shortener.ErrAliasConflict
	}

	stored := rec.Clone()
	stored.Code = code
	m.records[code.String()] = stored

	return nil
}

func (m *MemoryStore) Delete(_ context.Context, code shortener.Code) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.live(code.String())
	delete(m.records, code.String())

	return ok, nil
}

// Len counts stored records, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}

// live must be called with mu held.
func (m *MemoryStore) live(key string) (*shortener.Record, bool) {
	rec, ok := m.records[key]
	if !ok || rec.Expired(m.now()) {
		return nil, false
	}

	return rec, true
}

var _ shortener.Repository = (*MemoryStore)(nil)
