package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memEntry struct {
	key      string
	data     []byte
	expireAt time.Time
}

// MemoryCache is a size-bounded LRU. Expired entries are dropped when they
// are touched or reach the cold end of the list.
type MemoryCache struct {
	mu         sync.Mutex
	size       int
	defaultTTL time.Duration
	order      *list.List // front is most recently used
	items      map[string]*list.Element
	now        func() time.Time
}

// NewMemoryCache holds at most size entries (1000 when size <= 0).
// defaultTTL applies to Set calls without a ttl; 24h when zero.
func NewMemoryCache(size int, defaultTTL time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &MemoryCache{
		size:       size,
		defaultTTL: defaultTTL,
		order:      list.New(),
		items:      make(map[string]*list.Element, size),
		now:        time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := m.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	m.store(key, data, ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if el, ok := m.items[k]; ok {
			m.remove(el)
		}
	}
	return nil
}

func (m *MemoryCache) Close() error { return nil }

// Len counts live and not yet collected expired entries.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *MemoryCache) lookup(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memEntry)
	if !m.now().Before(e.expireAt) {
		m.remove(el)
		return nil, false
	}
	m.order.MoveToFront(el)
	return e.data, true
}

func (m *MemoryCache) store(key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	expireAt := m.now().Add(ttl)
	if el, ok := m.items[key]; ok {
		e := el.Value.(*memEntry)
		e.data, e.expireAt = data, expireAt
		m.order.MoveToFront(el)
		return
	}
	for m.order.Len() >= m.size {
		m.remove(m.order.Back())
	}
	m.items[key] = m.order.PushFront(&memEntry{key: key, data: data, expireAt: expireAt})
}

func (m *MemoryCache) remove(el *list.Element) {
	m.order.Remove(el)
	delete(m.items, el.Value.(*memEntry).key)
}
