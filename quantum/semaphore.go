package quantum

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/fedimesh/qkvc/qerrors"
)

// runSingleLoader executes call under the cache's global+tier concurrency
// limiters, in the ordering required by spec §4.3.3: globalConc.acquire →
// tierConc.acquire → invoke loader with disposeSignal → tierConc.release →
// globalConc.release.
//
// If disposeCtx fires before call returns, runSingleLoader returns
// ErrAborted immediately without waiting for call — the loader may keep
// running, but its eventual result is discarded by this cache (spec
// §4.3.3's racing-promise rule). The semaphore permits it holds are still
// released once it actually finishes, by a detached goroutine.
func (c *Cache[V]) runSingleLoader(ctx context.Context, tierSem *semaphore.Weighted, call FetchFunc[V], key string) (V, bool, error) {
	var zero V

	acquireCtx, cancelAcquire := mergeContext(ctx, c.disposeCtx)
	defer cancelAcquire()

	if err := c.globalSem.Acquire(acquireCtx, 1); err != nil {
		return zero, false, c.translateWaitErr(ctx, err)
	}
	if err := tierSem.Acquire(acquireCtx, 1); err != nil {
		c.globalSem.Release(1)
		return zero, false, c.translateWaitErr(ctx, err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(acquireCtx); err != nil {
			tierSem.Release(1)
			c.globalSem.Release(1)
			return zero, false, c.translateWaitErr(ctx, err)
		}
	}

	loaderCtx, cancelLoader := mergeContext(context.Background(), c.disposeCtx)
	loaderCtx = withLoaderInfo(loaderCtx, LoaderInfo{Cache: c.name, Key: key})
	type result struct {
		value V
		found bool
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		v, f, err := call(loaderCtx, key)
		resultCh <- result{v, f, err}
	}()

	release := func() {
		tierSem.Release(1)
		c.globalSem.Release(1)
		cancelLoader()
	}

	select {
	case res := <-resultCh:
		release()
		return res.value, res.found, res.err
	case <-c.disposeCtx.Done():
		go func() {
			<-resultCh
			release()
		}()
		return zero, false, qerrors.ErrAborted
	case <-ctx.Done():
		go func() {
			<-resultCh
			release()
		}()
		return zero, false, ctx.Err()
	}
}

// runBulkLoader is runSingleLoader's bulk-tier counterpart.
func (c *Cache[V]) runBulkLoader(ctx context.Context, keys []string) (map[string]V, error) {
	acquireCtx, cancelAcquire := mergeContext(ctx, c.disposeCtx)
	defer cancelAcquire()

	if err := c.globalSem.Acquire(acquireCtx, 1); err != nil {
		return nil, c.translateWaitErr(ctx, err)
	}
	if err := c.bulkSem.Acquire(acquireCtx, 1); err != nil {
		c.globalSem.Release(1)
		return nil, c.translateWaitErr(ctx, err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(acquireCtx); err != nil {
			c.bulkSem.Release(1)
			c.globalSem.Release(1)
			return nil, c.translateWaitErr(ctx, err)
		}
	}

	loaderCtx, cancelLoader := mergeContext(context.Background(), c.disposeCtx)
	loaderCtx = withLoaderInfo(loaderCtx, LoaderInfo{Cache: c.name})
	type result struct {
		values map[string]V
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		values, err := c.bulkFn(loaderCtx, keys)
		resultCh <- result{values, err}
	}()

	release := func() {
		c.bulkSem.Release(1)
		c.globalSem.Release(1)
		cancelLoader()
	}

	select {
	case res := <-resultCh:
		release()
		return res.values, res.err
	case <-c.disposeCtx.Done():
		go func() {
			<-resultCh
			release()
		}()
		return nil, qerrors.ErrAborted
	case <-ctx.Done():
		go func() {
			<-resultCh
			release()
		}()
		return nil, ctx.Err()
	}
}

func (c *Cache[V]) translateWaitErr(callerCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if c.disposeCtx.Err() != nil {
		return qerrors.ErrAborted
	}
	if callerCtx.Err() != nil {
		return callerCtx.Err()
	}
	return err
}
