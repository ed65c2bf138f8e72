// Package listcache is a time-bounded cache for list-type API responses.
package listcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/verte-zerg/ledgeradmin/internal/log"
)

// UsersKey caches the full user list.
const UsersKey = "admin_users_cache"

// ErrNegativeTTL is returned by New for a TTL below zero.
var ErrNegativeTTL = errors.New("cache ttl must be >= 0")

// Backend persists one payload per key with its fetch time.
type Backend interface {
	LoadEntry(ctx context.Context, key string) ([]byte, time.Time, bool, error)
	SaveEntry(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error
	DeleteEntry(ctx context.Context, key string) error
}

// Clock returns the current time.
type Clock func() time.Time

// Cache stores whole collections of T keyed by name.
// An entry older than the TTL reads as absent and is evicted.
type Cache[T any] struct {
	mu      sync.Mutex
	backend Backend
	ttl     time.Duration
	now     Clock
	log     *log.Logger
}

type options struct {
	now Clock
	log *log.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.now = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// New returns a cache over backend with the given TTL.
func New[T any](backend Backend, ttl time.Duration, opts ...Option) (*Cache[T], error) {
	if ttl < 0 {
		return nil, ErrNegativeTTL
	}
	o := options{now: time.Now, log: log.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		backend: backend,
		ttl:     ttl,
		now:     o.now,
		log:     o.log.WithComponent(log.ComponentCache),
	}, nil
}

// TTL returns the configured time-to-live.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns the items for key if now - fetchedAt <= TTL.
// Stale or undecodable entries are evicted and reported absent.
func (c *Cache[T]) Get(ctx context.Context, key string) ([]T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, fetchedAt, ok, err := c.backend.LoadEntry(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	if age := c.now().Sub(fetchedAt); age > c.ttl {
		c.log.DebugContext(ctx, "evicting stale entry", log.FieldKey, key, "age_ms", age.Milliseconds())
		if err := c.backend.DeleteEntry(ctx, key); err != nil {
			return nil, false, fmt.Errorf("cache evict %s: %w", key, err)
		}
		return nil, false, nil
	}
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		c.log.WarnContext(ctx, "dropping undecodable entry", log.FieldKey, key, log.FieldError, err)
		if derr := c.backend.DeleteEntry(ctx, key); derr != nil {
			return nil, false, fmt.Errorf("cache evict %s: %w", key, derr)
		}
		return nil, false, nil
	}
	return items, true, nil
}

// Put stores items under key with the current time, replacing any prior entry.
func (c *Cache[T]) Put(ctx context.Context, key string, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(ctx, key, items)
}

func (c *Cache[T]) put(ctx context.Context, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.backend.SaveEntry(ctx, key, payload, c.now()); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	c.log.DebugContext(ctx, "stored entry", log.FieldKey, key, log.FieldCount, len(items))
	return nil
}

// Invalidate removes the entry for key.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backend.DeleteEntry(ctx, key); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", key, err)
	}
	return nil
}

// Patch keeps the items for which keep returns true, stores them under key
// and returns them. It is used after a delete so the in-memory copy and the
// cache stay in step without a re-fetch.
func (c *Cache[T]) Patch(ctx context.Context, key string, items []T, keep func(T) bool) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.put(ctx, key, out); err != nil {
		return out, err
	}
	return out, nil
}

// MemoryBackend is an in-process Backend.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload   []byte
	fetchedAt time.Time
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: map[string]memoryEntry{}}
}

// LoadEntry implements Backend.
func (m *MemoryBackend) LoadEntry(_ context.Context, key string) ([]byte, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return e.payload, e.fetchedAt, true, nil
}

// SaveEntry implements Backend.
func (m *MemoryBackend) SaveEntry(_ context.Context, key string, payload []byte, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{payload: append([]byte(nil), payload...), fetchedAt: fetchedAt}
	return nil
}

// DeleteEntry implements Backend.
func (m *MemoryBackend) DeleteEntry(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
