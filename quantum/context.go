package quantum

import "context"

// LoaderInfo identifies the cache and key a loader invocation is running
// for. It is injected into the context passed to FetchFunc/BulkFetchFunc
// so a loader (or logging around it) can introspect which cache called
// it without threading that information through every loader signature.
type LoaderInfo struct {
	Cache string
	Key   string
}

type loaderInfoKey struct{}

// withLoaderInfo attaches info to ctx, retrievable via LoaderInfoFromContext.
func withLoaderInfo(ctx context.Context, info LoaderInfo) context.Context {
	return context.WithValue(ctx, loaderInfoKey{}, info)
}

// LoaderInfoFromContext returns the LoaderInfo a loader was invoked with,
// and whether one was present.
func LoaderInfoFromContext(ctx context.Context) (LoaderInfo, bool) {
	info, ok := ctx.Value(loaderInfoKey{}).(LoaderInfo)
	return info, ok
}

// mergeContext returns a context that is done when either parent or extra
// is done, and a cancel func that releases the background goroutine. This
// is how a single loader invocation honors both the caller's own
// cancellation and the cache's disposeSignal (spec §4.3.3) without the two
// having any other relationship.
func mergeContext(parent, extra context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-extra.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
