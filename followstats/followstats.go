// Package followstats implements component F: a memory-only cache of
// per-user follow counts, independent of QKVC's cluster coherence (spec
// §4.6). Its value is derivable from authoritative state that IS
// coherent (the follow relation tables), so an independent per-process
// TTL is an acceptable approximation — there is no quantumCacheUpdated
// broadcast for this cache, and no peer ever needs one.
package followstats

import (
	"time"

	"github.com/fedimesh/qkvc/memorycache"
	"github.com/fedimesh/qkvc/registry"
)

// Stats holds one user's computed follow counts, bucketed by whether
// the other side of the relation is local or remote.
type Stats struct {
	LocalFollowing  int
	LocalFollowers  int
	RemoteFollowing int
	RemoteFollowers int
}

// Cache wraps a memorycache.Cache[Stats], giving the follow-stats
// concern its own named type and registry entry distinct from the
// domain cache bundle it's consumed by.
type Cache struct {
	store *memorycache.Cache[Stats]
}

// New registers a follow-stats cache under name with the given lifetime.
func New(r *registry.Registry, name string, lifetime time.Duration) (*Cache, error) {
	store, err := registry.CreateMemory[Stats](r, name, lifetime)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// Get returns the cached stats for userID, or ErrKeyNotFound if absent
// or expired.
func (c *Cache) Get(userID string) (Stats, error) {
	return c.store.Get(userID)
}

// Set installs newly-computed stats for userID under the cache's
// default lifetime.
func (c *Cache) Set(userID string, stats Stats) error {
	return c.store.Set(userID, stats)
}

// Delete evicts userID's cached stats, invoked by the follow/unfollow
// handlers (spec §4.5.3) since a changed relation invalidates the
// derived counts.
func (c *Cache) Delete(userID string) error {
	return c.store.Delete(userID)
}
