package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
// Las operaciones compuestas (GetDel, SetNX, Incr) se serializan con un mutex
// propio porque go-cache no las expone atómicas.
type memoryClient struct {
	prefix string
	c      *gocache.Cache

	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewMemory crea un cliente en memoria. Útil para desarrollo y tests.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *memoryClient) key(k string) string {
	if m.prefix == "" {
		return k
	}
	return m.prefix + ":" + k
}

func ttlOrNever(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (m *memoryClient) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(m.key(key))
	m.mu.Lock()
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return asBytes(v), nil
}

func (m *memoryClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(m.key(key), value, ttlOrNever(ttl))
	return nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	m.c.Delete(m.key(key))
	return nil
}

func (m *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.c.Get(m.key(key))
	return ok, nil
}

func (m *memoryClient) GetDel(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(m.key(key))
	if !ok {
		m.misses++
		return nil, ErrNotFound
	}
	m.c.Delete(m.key(key))
	m.hits++
	return asBytes(v), nil
}

// asBytes normaliza los valores guardados: Set escribe []byte pero Incr
// guarda int64, y Get tiene que devolver lo mismo que devolvería Redis
// (los dígitos como bytes).
func asBytes(v any) []byte {
	switch t := v.(type) {
	case []byte:
		return t
	case int64:
		return []byte(strconv.FormatInt(t, 10))
	default:
		return nil
	}
}

func (m *memoryClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.c.Add(m.key(key), value, ttlOrNever(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *memoryClient) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(key)
	if err := m.c.Add(k, int64(1), ttlOrNever(ttl)); err == nil {
		return 1, nil
	}
	n, err := m.c.IncrementInt64(k, 1)
	if err != nil {
		// la key expiró entre el Add y el Increment: arrancar de nuevo
		m.c.Set(k, int64(1), ttlOrNever(ttl))
		return 1, nil
	}
	return n, nil
}

func (m *memoryClient) Ping(ctx context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}

func (m *memoryClient) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Driver: "memory",
		Keys:   int64(m.c.ItemCount()),
		Hits:   m.hits,
		Misses: m.misses,
	}, nil
}
