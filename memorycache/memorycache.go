// Package memorycache implements the registry's "memory" cache kind
// (spec §4.4's createMemory): a named, lifetime-bounded cache with no
// loaders, no de-duplication, and no cluster coherence. It is a thin,
// typed shell around memstore.Store so the registry can track it
// alongside quantum.Cache instances through the same Instance interface.
package memorycache

import (
	"context"
	"time"

	"github.com/fedimesh/qkvc/memstore"
	"github.com/fedimesh/qkvc/qerrors"
)

// Cache is a generic, process-local, TTL'd key/value table. Unlike
// quantum.Cache it never talks to the event bus: callers who need
// cluster coherence use quantum.Cache instead (spec §4.6's rationale for
// follow-stats applies equally to any other memory-only cache).
type Cache[V any] struct {
	name     string
	lifetime time.Duration
	store    *memstore.Store[V]
	disposed bool
}

// New constructs a named memory cache with the given default entry
// lifetime.
func New[V any](name string, lifetime time.Duration) *Cache[V] {
	return &Cache[V]{
		name:     name,
		lifetime: lifetime,
		store:    memstore.New[V](),
	}
}

// Name returns the cache's registry name.
func (c *Cache[V]) Name() string { return c.name }

// Get returns the stored value, or ErrKeyNotFound if absent/expired.
func (c *Cache[V]) Get(key string) (V, error) {
	var zero V
	if c.disposed {
		return zero, qerrors.ErrDisposed
	}
	v, ok := c.store.Get(key)
	if !ok {
		return zero, qerrors.ErrKeyNotFound
	}
	return v, nil
}

// GetMaybe returns the stored value and whether it was present; it never
// fails for absence.
func (c *Cache[V]) GetMaybe(key string) (V, bool, error) {
	var zero V
	if c.disposed {
		return zero, false, qerrors.ErrDisposed
	}
	v, ok := c.store.Get(key)
	return v, ok, nil
}

// Has reports presence without returning the value.
func (c *Cache[V]) Has(key string) bool {
	return !c.disposed && c.store.Has(key)
}

// Set installs value under key with the cache's default lifetime.
func (c *Cache[V]) Set(key string, value V) error {
	if c.disposed {
		return qerrors.ErrDisposed
	}
	c.store.Set(key, value, time.Now().Add(c.lifetime))
	return nil
}

// SetWithTTL installs value under key with an explicit lifetime,
// overriding the cache's default for this entry only.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) error {
	if c.disposed {
		return qerrors.ErrDisposed
	}
	c.store.Set(key, value, time.Now().Add(ttl))
	return nil
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) error {
	if c.disposed {
		return qerrors.ErrDisposed
	}
	c.store.Delete(key)
	return nil
}

// GC evicts every expired entry and returns how many were removed.
func (c *Cache[V]) GC() (int, error) {
	if c.disposed {
		return 0, qerrors.ErrDisposed
	}
	return c.store.GC(), nil
}

// Clear wipes this cache's memory. No events, matching the registry's
// clear() contract (spec §4.4: "clears local memory of every cache, no
// events").
func (c *Cache[V]) Clear() error {
	c.store.Clear()
	return nil
}

// Dispose marks the cache unusable and purges its memory. Idempotent.
func (c *Cache[V]) Dispose(_ context.Context) error {
	c.disposed = true
	c.store.Clear()
	return nil
}
