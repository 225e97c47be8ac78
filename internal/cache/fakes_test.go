package cache_test

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/wormhole/internal/cache"
	"github.com/serroba/wormhole/internal/shortener"
)

// memStore is a map-backed tier with switchable failures.
type memStore struct {
	mu      sync.Mutex
	items   map[string]cache.Entry
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	delErr  error
	gets    int
	sets    int
	deletes int
	closed  bool
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]cache.Entry), ttls: make(map[string]time.Duration)}
}

func (m *memStore) Get(_ context.Context, key string) (cache.Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++

	if m.getErr != nil {
		return cache.Entry{}, false, m.getErr
	}

	e, ok := m.items[key]

	return e, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, e cache.Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sets++

	if m.setErr != nil {
		return m.setErr
	}

	m.items[key] = e
	m.ttls[key] = ttl

	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes++

	if m.delErr != nil {
		return m.delErr
	}

	delete(m.items, key)
	delete(m.ttls, key)

	return nil
}

func (m *memStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.items[key]

	return ok
}

func (m *memStore) setFailures(get, set, del error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getErr, m.setErr, m.delErr = get, set, del
}

func record(code, url string) *shortener.Record {
	return &shortener.Record{
		Code:        shortener.TrustedCode(code, shortener.KindGenerated),
		OriginalURL: url,
		CreatedAt:   time.Now(),
	}
}
