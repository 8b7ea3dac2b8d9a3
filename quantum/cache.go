// Package quantum implements component C of the cache core: the Quantum
// Key-Value Cache (QKVC). It layers a de-duplicating, concurrency-bounded
// loader pipeline and a cluster coherence protocol on top of
// memstore.Store, the same layering the teacher uses for its cache
// abstractions (a plain memory table at the bottom, invalidation-aware
// behavior wired on top via the event bus).
package quantum

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"go.uber.org/zap"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/logging"
	"github.com/fedimesh/qkvc/memstore"
	"github.com/fedimesh/qkvc/qerrors"
)

// FetchFunc loads a single key. found=false,err=nil means the entity
// genuinely does not exist (the Go replacement for the original's
// entity-not-found exception); err!=nil means the loader itself failed
// (e.g. a database error) and becomes *FetchFailed*.
type FetchFunc[V any] func(ctx context.Context, key string) (value V, found bool, err error)

// BulkFetchFunc loads many keys at once. The returned map holds only the
// keys that were found; absent keys are simply not present in it.
type BulkFetchFunc[V any] func(ctx context.Context, keys []string) (map[string]V, error)

// KV is one resolved key/value pair, returned by the bulk read paths.
type KV[V any] struct {
	Key   string
	Value V
}

// Options configures a Cache at construction (spec §4.4's createQuantum).
type Options[V any] struct {
	// Name must be unique across the registry; it is also the
	// discriminator on quantumCacheUpdated/quantumCacheReset envelopes.
	Name string
	// Lifetime is the default entry TTL used by Set/Fetch/Refresh.
	Lifetime time.Duration

	// Fetch is the single-required loader backing Fetch/Refresh. Required.
	Fetch FetchFunc[V]
	// FetchMaybe is the single-optional loader. If nil, FetchMaybe falls
	// back to Fetch and absorbs KeyNotFound as absence (spec §4.3.2).
	FetchMaybe FetchFunc[V]
	// FetchBulk is the bulk loader used by FetchMany's back-pressure path.
	// If nil, FetchMany falls back to one FetchMaybe call per key.
	FetchBulk BulkFetchFunc[V]

	// OnChanged is invoked with the set of keys a coherence update
	// invalidated (locally or from a peer), after they are deleted from
	// memory (spec §4.3.4).
	OnChanged func(ctx context.Context, keys []string)
	// OnReset is invoked after a local or peer-originated full reset.
	OnReset func(ctx context.Context)

	// Equal, if set, lets Set skip emitting a coherence event when the
	// new value is indistinguishable from the prior one (spec §4.3.1:
	// "if the stored reference is identical to prior, skip emission").
	// Go has no generic reference-identity comparison that is safe for
	// every V (slices and maps panic on ==), so this is opt-in: without
	// it, every Set is treated as a change. That is always spec-conformant
	// — coherence events are idempotent deletes on the receiving side —
	// just not maximally quiet.
	Equal func(a, b V) bool

	// FetchConcurrency, FetchMaybeConcurrency, BulkConcurrency, and
	// GlobalConcurrency bound in-flight loader invocations per spec
	// §4.3.3. Zero means "use the default".
	FetchConcurrency      int64
	FetchMaybeConcurrency int64
	BulkConcurrency       int64
	GlobalConcurrency     int64

	// LoaderLimiter, if set, additionally throttles loader invocation
	// rate (not just concurrency) across all tiers of this cache.
	LoaderLimiter *rate.Limiter

	Log *zap.SugaredLogger
}

const (
	defaultFetchConcurrency      = 4
	defaultFetchMaybeConcurrency = 4
	defaultBulkConcurrency       = 2
	defaultGlobalConcurrency     = 4
)

type cacheState int

const (
	stateActive cacheState = iota
	stateDisposing
	stateDisposed
)

// Cache is the Quantum Key-Value Cache: a memstore.Store fronted by a
// de-duplicating, concurrency-bounded loader pipeline, with cluster-wide
// invalidation wired through a bus.Bus (spec §4.3).
type Cache[V any] struct {
	name     string
	lifetime time.Duration
	store    *memstore.Store[V]
	bus      *bus.Bus

	fetchFn      FetchFunc[V]
	fetchMaybeFn FetchFunc[V]
	bulkFn       BulkFetchFunc[V]
	onChanged    func(ctx context.Context, keys []string)
	onReset      func(ctx context.Context)
	equal        func(a, b V) bool

	globalSem     *semaphore.Weighted
	fetchSem      *semaphore.Weighted
	fetchMaybeSem *semaphore.Weighted
	bulkSem       *semaphore.Weighted
	limiter       *rate.Limiter

	mu               sync.Mutex
	state            cacheState
	activeFetch      map[string]*future[V]
	activeFetchMaybe map[string]*future[V]
	activeBulk       map[string]*bulkGroup[V]

	disposeCtx    context.Context
	disposeCancel context.CancelFunc
	wg            sync.WaitGroup

	updatedSub bus.Subscription
	resetSub   bus.Subscription

	log *zap.SugaredLogger
}

// New constructs a Cache named opts.Name, wired to b for coherence. The
// registry (component D) is the normal caller; it is responsible for
// enforcing name uniqueness across the process.
func New[V any](b *bus.Bus, opts Options[V]) *Cache[V] {
	log := opts.Log
	if log == nil {
		log = logging.Named("quantum").With(logging.FieldCacheName, opts.Name)
	}

	weight := func(v, def int64) int64 {
		if v <= 0 {
			return def
		}
		return v
	}

	disposeCtx, disposeCancel := context.WithCancel(context.Background())

	c := &Cache[V]{
		name:             opts.Name,
		lifetime:         opts.Lifetime,
		store:            memstore.New[V](),
		bus:              b,
		fetchFn:          opts.Fetch,
		fetchMaybeFn:     opts.FetchMaybe,
		bulkFn:           opts.FetchBulk,
		onChanged:        opts.OnChanged,
		onReset:          opts.OnReset,
		equal:            opts.Equal,
		globalSem:        semaphore.NewWeighted(weight(opts.GlobalConcurrency, defaultGlobalConcurrency)),
		fetchSem:         semaphore.NewWeighted(weight(opts.FetchConcurrency, defaultFetchConcurrency)),
		fetchMaybeSem:    semaphore.NewWeighted(weight(opts.FetchMaybeConcurrency, defaultFetchMaybeConcurrency)),
		bulkSem:          semaphore.NewWeighted(weight(opts.BulkConcurrency, defaultBulkConcurrency)),
		limiter:          opts.LoaderLimiter,
		activeFetch:      make(map[string]*future[V]),
		activeFetchMaybe: make(map[string]*future[V]),
		activeBulk:       make(map[string]*bulkGroup[V]),
		disposeCtx:       disposeCtx,
		disposeCancel:    disposeCancel,
		log:              log,
	}

	c.updatedSub = b.On(bus.TopicQuantumCacheUpdated, c.handleRemoteUpdated, bus.HandlerOptions{IgnoreLocal: true})
	c.resetSub = b.On(bus.TopicQuantumCacheReset, c.handleRemoteReset, bus.HandlerOptions{IgnoreLocal: true})

	return c
}

// Name returns the cache's registry name.
func (c *Cache[V]) Name() string { return c.name }

func (c *Cache[V]) checkActive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkActiveLocked()
}

func (c *Cache[V]) checkActiveLocked() error {
	switch c.state {
	case stateDisposing:
		return qerrors.ErrDisposing
	case stateDisposed:
		return qerrors.ErrDisposed
	default:
		return nil
	}
}

// admit checks the cache is active and registers the caller with c.wg in
// the same critical section Dispose uses to flip state to disposing. That
// shared lock is what makes Dispose's wg.Wait() actually wait for every
// call that was admitted while active: a call either completes its
// state-check-and-register before Dispose's state flip (and Dispose's
// Wait sees it), or strictly after (and sees Disposing/Disposed instead
// of registering at all). Checking state and calling wg.Add separately
// would leave a window where a call passes the check, Dispose observes
// an empty WaitGroup and proceeds to purge memory, and the call then
// mutates the store after it was supposedly already cleared.
func (c *Cache[V]) admit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkActiveLocked(); err != nil {
		return err
	}
	c.wg.Add(1)
	return nil
}

// Get is a memory-only read; it fails with KeyNotFound if key is absent
// or expired.
func (c *Cache[V]) Get(key string) (V, error) {
	var zero V
	if err := c.checkActive(); err != nil {
		return zero, err
	}
	v, ok := c.store.Get(key)
	if !ok {
		return zero, qerrors.ErrKeyNotFound
	}
	return v, nil
}

// GetMaybe is a memory-only read that never fails for absence.
func (c *Cache[V]) GetMaybe(key string) (V, bool, error) {
	var zero V
	if err := c.checkActive(); err != nil {
		return zero, false, err
	}
	v, ok := c.store.Get(key)
	return v, ok, nil
}

// GetMany is a memory-only bulk read.
func (c *Cache[V]) GetMany(keys []string) ([]KV[V], error) {
	if err := c.checkActive(); err != nil {
		return nil, err
	}
	var out []KV[V]
	for _, k := range keys {
		if v, ok := c.store.Get(k); ok {
			out = append(out, KV[V]{Key: k, Value: v})
		}
	}
	return out, nil
}

// Has is a memory-only presence check.
func (c *Cache[V]) Has(key string) bool {
	if c.checkActive() != nil {
		return false
	}
	return c.store.Has(key)
}

// Entries returns a snapshot of every live resident key/value pair, for
// callers that need to scan this process's own working set (e.g. the
// domain bundle's affected-lists computation, spec §4.5.3). It never
// triggers a loader and reflects only this process's memory.
func (c *Cache[V]) Entries() map[string]V {
	if c.checkActive() != nil {
		return nil
	}
	return c.store.Entries()
}

// Set installs value under key, expiring after the cache's lifetime, and
// emits a coherence update unless Options.Equal says the value is
// unchanged (spec §4.3.1, §4.3.4).
func (c *Cache[V]) Set(ctx context.Context, key string, value V) error {
	if err := c.admit(); err != nil {
		return err
	}
	defer c.wg.Done()

	changed := true
	if c.equal != nil {
		if old, ok := c.store.Get(key); ok && c.equal(old, value) {
			changed = false
		}
	}
	c.store.Set(key, value, time.Now().Add(c.lifetime))
	if !changed {
		return nil
	}
	return c.emitUpdated(ctx, []string{key})
}

// SetMany installs entries and emits one coherence update naming every
// key that actually changed (skipping the call entirely if none did).
func (c *Cache[V]) SetMany(ctx context.Context, entries map[string]V) error {
	if err := c.admit(); err != nil {
		return err
	}
	defer c.wg.Done()

	var changedKeys []string
	expiresAt := time.Now().Add(c.lifetime)
	for k, v := range entries {
		changed := true
		if c.equal != nil {
			if old, ok := c.store.Get(k); ok && c.equal(old, v) {
				changed = false
			}
		}
		c.store.Set(k, v, expiresAt)
		if changed {
			changedKeys = append(changedKeys, k)
		}
	}
	if len(changedKeys) == 0 {
		return nil
	}
	return c.emitUpdated(ctx, changedKeys)
}

// Add installs value under key with no coherence event and no onChanged
// call: it records authoritative data the caller just created (e.g.
// immediately after a database insert), which no peer could possibly have
// cached yet (spec §4.3.1).
func (c *Cache[V]) Add(key string, value V) error {
	if err := c.admit(); err != nil {
		return err
	}
	defer c.wg.Done()

	c.store.Set(key, value, time.Now().Add(c.lifetime))
	return nil
}

// AddMany is the bulk form of Add.
func (c *Cache[V]) AddMany(entries map[string]V) error {
	if err := c.admit(); err != nil {
		return err
	}
	defer c.wg.Done()

	expiresAt := time.Now().Add(c.lifetime)
	for k, v := range entries {
		c.store.Set(k, v, expiresAt)
	}
	return nil
}

// Delete evicts key locally and emits a coherence update.
func (c *Cache[V]) Delete(ctx context.Context, key string) error {
	if err := c.admit(); err != nil {
		return err
	}
	defer c.wg.Done()

	c.store.Delete(key)
	return c.emitUpdated(ctx, []string{key})
}

// DeleteMany evicts keys locally and emits one coherence update.
func (c *Cache[V]) DeleteMany(ctx context.Context, keys []string) error {
	if err := c.admit(); err != nil {
		return err
	}
	defer c.wg.Done()

	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		c.store.Delete(k)
	}
	return c.emitUpdated(ctx, keys)
}

// Clear wipes local memory without emitting any event.
func (c *Cache[V]) Clear() error {
	if err := c.admit(); err != nil {
		return err
	}
	defer c.wg.Done()

	c.store.Clear()
	return nil
}

// Reset wipes local memory, emits quantumCacheReset, and invokes OnReset.
func (c *Cache[V]) Reset(ctx context.Context) error {
	if err := c.admit(); err != nil {
		return err
	}
	defer c.wg.Done()

	c.store.Clear()
	if err := c.bus.Emit(ctx, bus.TopicQuantumCacheReset, bus.QuantumCacheReset{Name: c.name}, true); err != nil {
		return err
	}
	if c.onReset != nil {
		c.onReset(ctx)
	}
	return nil
}

// GC evicts expired entries and reports how many were removed.
func (c *Cache[V]) GC() (int, error) {
	if err := c.admit(); err != nil {
		return 0, err
	}
	defer c.wg.Done()

	return c.store.GC(), nil
}

// Dispose enters the disposing state (new calls fail with Disposing),
// cancels every in-flight loader's context, detaches from the bus, waits
// for all in-flight fetch futures to settle, purges memory, and
// transitions to disposed (new calls fail with Disposed). It is
// idempotent: calling it again is a no-op.
func (c *Cache[V]) Dispose(context.Context) error {
	c.mu.Lock()
	if c.state != stateActive {
		c.mu.Unlock()
		return nil
	}
	c.state = stateDisposing
	c.mu.Unlock()

	c.disposeCancel()
	c.bus.Off(c.updatedSub)
	c.bus.Off(c.resetSub)

	c.wg.Wait()

	c.mu.Lock()
	c.store.Clear()
	c.state = stateDisposed
	c.mu.Unlock()

	return nil
}
