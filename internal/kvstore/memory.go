package kvstore

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 100000

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	elem      *list.Element
}

// Memory is a thread-safe TTL store with LRU eviction.
type Memory struct {
	mu sync.Mutex

	maxEntries int
	lru        *list.List // front = least recently used
	data       map[string]*memoryEntry
	now        func() time.Time
}

// NewMemory creates an in-process store holding at most maxEntries keys.
// maxEntries <= 0 selects the default.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		maxEntries: maxEntries,
		lru:        list.New(),
		data:       map[string]*memoryEntry{},
		now:        time.Now,
	}
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	v := append([]byte(nil), value...)

	m.mu.Lock()
	defer m.mu.Unlock()

	expires := m.now().Add(ttl)
	if e := m.data[key]; e != nil {
		e.value = v
		e.expiresAt = expires
		m.lru.MoveToBack(e.elem)
		return nil
	}

	e := &memoryEntry{value: v, expiresAt: expires}
	e.elem = m.lru.PushBack(key)
	m.data[key] = e

	for len(m.data) > m.maxEntries {
		front := m.lru.Front()
		if front == nil {
			break
		}
		m.removeLocked(front.Value.(string))
	}
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.liveLocked(key)
	if err != nil {
		return nil, err
	}
	m.lru.MoveToBack(e.elem)
	return append([]byte(nil), e.value...), nil
}

// GetDel implements Store.
func (m *Memory) GetDel(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.liveLocked(key)
	if err != nil {
		return nil, err
	}
	m.removeLocked(key)
	return e.value, nil
}

// Del implements Store.
func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	return nil
}

// Ping implements Store.
func (m *Memory) Ping(context.Context) error { return nil }

// Len returns the number of stored keys, including expired ones not yet purged.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// liveLocked returns the entry for key, dropping it if it has expired.
func (m *Memory) liveLocked(key string) (*memoryEntry, error) {
	e := m.data[key]
	if e == nil {
		return nil, ErrNotFound
	}
	if !e.expiresAt.After(m.now()) {
		m.removeLocked(key)
		return nil, ErrNotFound
	}
	return e, nil
}

func (m *Memory) removeLocked(key string) {
	if e := m.data[key]; e != nil {
		m.lru.Remove(e.elem)
		delete(m.data, key)
	}
}
