package quantum

import (
	"context"
	"sync"
	"time"

	"github.com/fedimesh/qkvc/logging"
	"github.com/fedimesh/qkvc/qerrors"
)

// future is one in-flight loader invocation shared by every caller that
// joins it while it is active (spec §4.3.2). Exactly one goroutine drives
// the loader and calls finish; every other caller only waits.
type future[V any] struct {
	done  chan struct{}
	once  sync.Once
	value V
	found bool
	err   error
}

func newFuture[V any]() *future[V] { return &future[V]{done: make(chan struct{})} }

func (f *future[V]) finish(value V, found bool, err error) {
	f.once.Do(func() {
		f.value, f.found, f.err = value, found, err
		close(f.done)
	})
}

func (f *future[V]) wait(ctx context.Context) (V, bool, error) {
	select {
	case <-f.done:
		return f.value, f.found, f.err
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	}
}

// joinAbsorbingNotFound waits on a fetch-tier future the way fetchMaybe
// (or fetchMany) sees it: KeyNotFound becomes plain absence, not an error.
func joinAbsorbingNotFound[V any](ctx context.Context, f *future[V]) (V, bool, error) {
	v, found, err := f.wait(ctx)
	if qerrors.Is(err, qerrors.ErrKeyNotFound) {
		var zero V
		return zero, false, nil
	}
	return v, found, err
}

// bulkGroup is one in-flight bulk loader call shared by every key it was
// started for.
type bulkGroup[V any] struct {
	done   chan struct{}
	once   sync.Once
	values map[string]V
	err    error
}

func newBulkGroup[V any]() *bulkGroup[V] { return &bulkGroup[V]{done: make(chan struct{})} }

func (g *bulkGroup[V]) finish(values map[string]V, err error) {
	g.once.Do(func() {
		g.values, g.err = values, err
		close(g.done)
	})
}

func (g *bulkGroup[V]) wait(ctx context.Context, key string) (V, bool, error) {
	var zero V
	select {
	case <-g.done:
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
	if g.err != nil {
		return zero, false, g.err
	}
	v, ok := g.values[key]
	return v, ok, nil
}

// Fetch returns the memory value for key, else runs the single-required
// loader, installing the result before returning it (spec §4.3.1). It
// joins an already in-flight fetch of the same key instead of invoking
// the loader twice.
func (c *Cache[V]) Fetch(ctx context.Context, key string) (V, error) {
	var zero V
	c.mu.Lock()
	if err := c.checkActiveLocked(); err != nil {
		c.mu.Unlock()
		return zero, err
	}
	if v, ok := c.store.Get(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	if f, ok := c.activeFetch[key]; ok {
		c.mu.Unlock()
		v, _, err := f.wait(ctx)
		return v, err
	}
	f := newFuture[V]()
	c.activeFetch[key] = f
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	value, found, err := c.runSingleLoader(ctx, c.fetchSem, c.fetchFn, key)
	finalErr := c.finishFetchFuture(key, f, value, found, err)
	if finalErr != nil {
		return zero, finalErr
	}
	return value, nil
}

// finishFetchFuture translates a fetch-tier loader outcome, stores the
// value on success, settles f, and removes its active-fetch table entry.
func (c *Cache[V]) finishFetchFuture(key string, f *future[V], value V, found bool, err error) error {
	var finalErr error
	switch {
	case err != nil:
		if qerrors.Is(err, qerrors.ErrAborted) {
			finalErr = err
		} else {
			finalErr = qerrors.NewFetchFailed(err)
		}
	case !found:
		finalErr = qerrors.ErrKeyNotFound
	default:
		c.store.Set(key, value, time.Now().Add(c.lifetime))
	}
	f.finish(value, found, finalErr)
	c.removeActiveFetch(key, f)
	return finalErr
}

func (c *Cache[V]) removeActiveFetch(key string, f *future[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.activeFetch[key]; ok && cur == f {
		delete(c.activeFetch, key)
	} else if c.state == stateActive {
		c.log.Errorw("active fetch table no longer references settling future", logging.FieldCacheKey, key)
	}
}

// FetchMaybe returns the memory value, else runs the single-optional
// loader (falling back to the required loader, absorbing KeyNotFound, if
// none is configured). It never fails for absence.
func (c *Cache[V]) FetchMaybe(ctx context.Context, key string) (V, bool, error) {
	var zero V
	c.mu.Lock()
	if err := c.checkActiveLocked(); err != nil {
		c.mu.Unlock()
		return zero, false, err
	}
	if v, ok := c.store.Get(key); ok {
		c.mu.Unlock()
		return v, true, nil
	}
	if f, ok := c.activeFetchMaybe[key]; ok {
		c.mu.Unlock()
		return f.wait(ctx)
	}
	if f, ok := c.activeFetch[key]; ok {
		c.mu.Unlock()
		return joinAbsorbingNotFound(ctx, f)
	}

	if c.fetchMaybeFn != nil {
		f := newFuture[V]()
		c.activeFetchMaybe[key] = f
		c.wg.Add(1)
		c.mu.Unlock()
		defer c.wg.Done()

		value, found, err := c.runSingleLoader(ctx, c.fetchMaybeSem, c.fetchMaybeFn, key)
		finalErr := c.finishFetchMaybeFuture(key, f, value, found, err)
		if finalErr != nil {
			return zero, false, finalErr
		}
		return value, found, nil
	}

	// No fetchMaybe loader configured: fall back to a new fetch future,
	// but this caller's view absorbs KeyNotFound as absence.
	f := newFuture[V]()
	c.activeFetch[key] = f
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	value, found, err := c.runSingleLoader(ctx, c.fetchSem, c.fetchFn, key)
	finalErr := c.finishFetchFuture(key, f, value, found, err)
	if qerrors.Is(finalErr, qerrors.ErrKeyNotFound) {
		return zero, false, nil
	}
	if finalErr != nil {
		return zero, false, finalErr
	}
	return value, true, nil
}

func (c *Cache[V]) finishFetchMaybeFuture(key string, f *future[V], value V, found bool, err error) error {
	var finalErr error
	switch {
	case err != nil:
		if qerrors.Is(err, qerrors.ErrAborted) {
			finalErr = err
		} else {
			finalErr = qerrors.NewFetchFailed(err)
		}
	case found:
		c.store.Set(key, value, time.Now().Add(c.lifetime))
	}
	f.finish(value, found, finalErr)
	c.removeActiveFetchMaybe(key, f)
	return finalErr
}

func (c *Cache[V]) removeActiveFetchMaybe(key string, f *future[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.activeFetchMaybe[key]; ok && cur == f {
		delete(c.activeFetchMaybe, key)
	} else if c.state == stateActive {
		c.log.Errorw("active fetchMaybe table no longer references settling future", logging.FieldCacheKey, key)
	}
}

// FetchMany resolves every key from memory, an in-flight fetch of any
// tier, or a new fetch. Keys with no in-flight fetch are grouped into one
// bulk loader call when a bulk loader is configured and more than one key
// remains (spec §5's back-pressure rule); otherwise each gets its own
// FetchMaybe call. Keys the loaders report absent are silently excluded
// from the result; loader failures are aggregated into one FetchFailed.
func (c *Cache[V]) FetchMany(ctx context.Context, keys []string) ([]KV[V], error) {
	if err := c.checkActive(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	type outcome struct {
		key   string
		value V
		found bool
		err   error
	}
	var wg sync.WaitGroup
	outcomes := make(chan outcome, len(keys))

	c.mu.Lock()
	if err := c.checkActiveLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	var remaining []string
	for _, k := range keys {
		if v, ok := c.store.Get(k); ok {
			outcomes <- outcome{key: k, value: v, found: true}
			continue
		}
		if f, ok := c.activeFetchMaybe[k]; ok {
			wg.Add(1)
			go func(k string, f *future[V]) {
				defer wg.Done()
				v, found, err := f.wait(ctx)
				outcomes <- outcome{k, v, found, err}
			}(k, f)
			continue
		}
		if f, ok := c.activeFetch[k]; ok {
			wg.Add(1)
			go func(k string, f *future[V]) {
				defer wg.Done()
				v, found, err := joinAbsorbingNotFound(ctx, f)
				outcomes <- outcome{k, v, found, err}
			}(k, f)
			continue
		}
		if g, ok := c.activeBulk[k]; ok {
			wg.Add(1)
			go func(k string, g *bulkGroup[V]) {
				defer wg.Done()
				v, found, err := g.wait(ctx, k)
				outcomes <- outcome{k, v, found, err}
			}(k, g)
			continue
		}
		remaining = append(remaining, k)
	}

	if len(remaining) > 1 && c.bulkFn != nil {
		group := newBulkGroup[V]()
		for _, k := range remaining {
			c.activeBulk[k] = group
		}
		c.wg.Add(1)
		c.mu.Unlock()

		go c.runBulkGroup(ctx, group, remaining)

		for _, k := range remaining {
			wg.Add(1)
			go func(k string) {
				defer wg.Done()
				v, found, err := group.wait(ctx, k)
				outcomes <- outcome{k, v, found, err}
			}(k)
		}
	} else {
		c.mu.Unlock()
		for _, k := range remaining {
			wg.Add(1)
			go func(k string) {
				defer wg.Done()
				v, found, err := c.FetchMaybe(ctx, k)
				outcomes <- outcome{k, v, found, err}
			}(k)
		}
	}

	wg.Wait()
	close(outcomes)

	var results []KV[V]
	var errs []error
	for o := range outcomes {
		if o.err != nil {
			errs = append(errs, o.err)
			continue
		}
		if o.found {
			results = append(results, KV[V]{Key: o.key, Value: o.value})
		}
	}
	if err := qerrors.Aggregate(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Cache[V]) runBulkGroup(ctx context.Context, group *bulkGroup[V], keys []string) {
	defer c.wg.Done()

	values, err := c.runBulkLoader(ctx, keys)
	var finalErr error
	if err != nil {
		if qerrors.Is(err, qerrors.ErrAborted) {
			finalErr = err
		} else {
			finalErr = qerrors.NewFetchFailed(err)
		}
	} else {
		expiresAt := time.Now().Add(c.lifetime)
		for k, v := range values {
			c.store.Set(k, v, expiresAt)
		}
	}
	group.finish(values, finalErr)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if cur, ok := c.activeBulk[k]; ok && cur == group {
			delete(c.activeBulk, k)
		} else if c.state == stateActive {
			c.log.Errorw("active bulk table no longer references settling group", logging.FieldCacheKey, k)
		}
	}
}

// Refresh bypasses memory and the de-duplication tables, always invoking
// the single-required loader, then installs or evicts the key and emits
// a coherence update (spec §4.3.1).
func (c *Cache[V]) Refresh(ctx context.Context, key string) (V, error) {
	var zero V
	if err := c.admit(); err != nil {
		return zero, err
	}
	defer c.wg.Done()

	value, found, err := c.runSingleLoader(ctx, c.fetchSem, c.fetchFn, key)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrAborted) {
			return zero, err
		}
		return zero, qerrors.NewFetchFailed(err)
	}
	if !found {
		c.store.Delete(key)
		if emitErr := c.emitUpdated(ctx, []string{key}); emitErr != nil {
			return zero, emitErr
		}
		return zero, qerrors.ErrKeyNotFound
	}
	c.store.Set(key, value, time.Now().Add(c.lifetime))
	if emitErr := c.emitUpdated(ctx, []string{key}); emitErr != nil {
		return zero, emitErr
	}
	return value, nil
}

// RefreshMaybe is Refresh's never-fails-for-absence counterpart, using
// the single-optional loader (falling back to the required loader if
// none is configured).
func (c *Cache[V]) RefreshMaybe(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if err := c.admit(); err != nil {
		return zero, false, err
	}
	defer c.wg.Done()

	loaderFn := c.fetchMaybeFn
	sem := c.fetchMaybeSem
	if loaderFn == nil {
		loaderFn = c.fetchFn
		sem = c.fetchSem
	}

	value, found, err := c.runSingleLoader(ctx, sem, loaderFn, key)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrAborted) {
			return zero, false, err
		}
		return zero, false, qerrors.NewFetchFailed(err)
	}
	if !found {
		c.store.Delete(key)
		if emitErr := c.emitUpdated(ctx, []string{key}); emitErr != nil {
			return zero, false, emitErr
		}
		return zero, false, nil
	}
	c.store.Set(key, value, time.Now().Add(c.lifetime))
	if emitErr := c.emitUpdated(ctx, []string{key}); emitErr != nil {
		return zero, false, emitErr
	}
	return value, true, nil
}

// RefreshMany prefers one bulk loader call over N individual refreshes
// when more than one key is requested and a bulk loader is configured,
// mirroring FetchMany's back-pressure rule.
func (c *Cache[V]) RefreshMany(ctx context.Context, keys []string) ([]KV[V], error) {
	if err := c.checkActive(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	if c.bulkFn != nil && len(keys) > 1 {
		if err := c.admit(); err != nil {
			return nil, err
		}
		defer c.wg.Done()

		values, err := c.runBulkLoader(ctx, keys)
		if err != nil {
			if qerrors.Is(err, qerrors.ErrAborted) {
				return nil, err
			}
			return nil, qerrors.NewFetchFailed(err)
		}

		expiresAt := time.Now().Add(c.lifetime)
		var out []KV[V]
		for _, k := range keys {
			if v, ok := values[k]; ok {
				c.store.Set(k, v, expiresAt)
				out = append(out, KV[V]{Key: k, Value: v})
			} else {
				c.store.Delete(k)
			}
		}
		if err := c.emitUpdated(ctx, keys); err != nil {
			return nil, err
		}
		return out, nil
	}

	var mu sync.Mutex
	var out []KV[V]
	var errs []error
	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			v, found, err := c.RefreshMaybe(ctx, k)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if found {
				out = append(out, KV[V]{Key: k, Value: v})
			}
		}(k)
	}
	wg.Wait()
	if err := qerrors.Aggregate(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
