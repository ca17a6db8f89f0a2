package store

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-memory Store. Entries never expire; the cache is only
// ever refreshed by overwrites. Keys written since the last Dirty call are
// tracked so a Snapshotter can flush only what changed.
type Memory struct {
	items *gocache.Cache

	mu    sync.Mutex
	dirty map[string]struct{}
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		items: gocache.New(gocache.NoExpiration, 0),
		dirty: make(map[string]struct{}),
	}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// Put implements Store. The value is stored as given; callers must not
// mutate it afterwards.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.items.Set(key, value, gocache.NoExpiration)
	m.mu.Lock()
	m.dirty[key] = struct{}{}
	m.mu.Unlock()
	return nil
}

// load sets a value without marking it dirty. Used when restoring.
func (m *Memory) load(key string, value []byte) {
	m.items.Set(key, value, gocache.NoExpiration)
}

// Dirty returns the keys written since the previous call and resets the set.
func (m *Memory) Dirty() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	m.dirty = make(map[string]struct{})
	return keys
}

// markDirty re-queues keys whose flush failed.
func (m *Memory) markDirty(keys []string) {
	m.mu.Lock()
	for _, k := range keys {
		m.dirty[k] = struct{}{}
	}
	m.mu.Unlock()
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	return m.items.ItemCount()
}
