package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/flowkit/types"
)

// KeyFunc derives the cache key for an invocation from the input and the
// workflow Context.
type KeyFunc func(input any, wc *Context) (string, error)

// Store is the backing store of a CachePrimitive. Entries past their TTL are
// treated as absent regardless of physical removal timing.
//
// Store errors must never break the wrapped call: the cache degrades to
// pass-through when the store is unavailable.
type Store interface {
	// Get returns the live value for key. found is false for missing or
	// expired entries.
	Get(ctx context.Context, key string) (value any, found bool, err error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// memoryEntry is exclusively owned by the store; values are never aliased
// back out mutably.
type memoryEntry struct {
	value     any
	expiresAt time.Time
}

// MemoryStore is an in-process Store with lazy TTL eviction and an optional
// capacity bound. When the bound is exceeded the oldest-inserted entry is
// evicted first.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	order    []string
	capacity int
}

// NewMemoryStore creates an in-memory store. capacity <= 0 means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]memoryEntry),
		capacity: capacity,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}

	// FIFO eviction: oldest-inserted goes first.
	for s.capacity > 0 && len(s.entries) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	return nil
}

// Len returns the number of physically stored entries, expired included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// CachePrimitive memoizes results of the wrapped primitive by a derived key
// with TTL expiry. A live entry is returned without invoking the wrapped
// primitive; otherwise the wrapped primitive runs and its result is stored.
// Concurrent misses for the same key are collapsed into one invocation.
type CachePrimitive struct {
	name     string
	inner    Primitive
	keyFn    KeyFunc
	store    Store
	ttl      time.Duration
	group    singleflight.Group
	observer *Observer
	logger   *zap.Logger
}

// CacheOption configures a CachePrimitive.
type CacheOption func(*CachePrimitive)

// WithCacheStore replaces the default in-memory store.
func WithCacheStore(store Store) CacheOption {
	return func(p *CachePrimitive) {
		if store != nil {
			p.store = store
		}
	}
}

// WithCacheObserver attaches an event observer.
func WithCacheObserver(obs *Observer) CacheOption {
	return func(p *CachePrimitive) { p.observer = obs }
}

// WithCacheLogger attaches a logger.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(p *CachePrimitive) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewCache wraps inner with a memoizing cache.
func NewCache(name string, inner Primitive, keyFn KeyFunc, ttl time.Duration, opts ...CacheOption) *CachePrimitive {
	p := &CachePrimitive{
		name:   name,
		inner:  inner,
		keyFn:  keyFn,
		store:  NewMemoryStore(0),
		ttl:    ttl,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *CachePrimitive) Name() string { return p.name }

func (p *CachePrimitive) Execute(ctx context.Context, input any) (any, error) {
	ctx, wc := EnsureContext(ctx)

	key, err := p.keyFn(input, wc)
	if err != nil {
		return nil, types.NewPermanent(types.ErrInvalidRequest, "cache key derivation failed").WithCause(err)
	}

	// The lookup lives inside the flight so concurrent misses for one key
	// collapse into a single invocation of the wrapped primitive.
	out, err, _ := p.group.Do(key, func() (any, error) {
		value, found, err := p.store.Get(ctx, key)
		if err != nil {
			// A store outage must not break the wrapped call: treat as a
			// miss and pass through.
			p.logger.Warn("cache store unavailable, passing through",
				zap.String("primitive", p.name),
				zap.String("key", key),
				zap.Error(err))
			p.observer.cacheMiss(p.name, key)
			return safeExecute(ctx, p.inner, input)
		}
		if found {
			p.observer.cacheHit(p.name, key)
			p.logger.Debug("cache hit",
				zap.String("primitive", p.name),
				zap.String("correlation_id", wc.CorrelationID()),
				zap.String("key", key))
			return value, nil
		}

		p.observer.cacheMiss(p.name, key)
		out, err := safeExecute(ctx, p.inner, input)
		if err != nil {
			return nil, err
		}
		if setErr := p.store.Set(ctx, key, out, p.ttl); setErr != nil {
			p.logger.Warn("cache store set failed",
				zap.String("primitive", p.name),
				zap.String("key", key),
				zap.Error(setErr))
		}
		return out, nil
	})
	return out, err
}
