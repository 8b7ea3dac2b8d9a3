package quantum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/bus/localtransport"
	"github.com/fedimesh/qkvc/qerrors"
)

func newTestCache(t *testing.T, opts Options[string]) *Cache[string] {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "test"
	}
	if opts.Lifetime == 0 {
		opts.Lifetime = time.Minute
	}
	b := bus.New(localtransport.Standalone(), nil)
	return New[string](b, opts)
}

func TestGetFailsKeyNotFoundWhenAbsent(t *testing.T) {
	c := newTestCache(t, Options[string]{})
	_, err := c.Get("missing")
	assert.True(t, qerrors.Is(err, qerrors.ErrKeyNotFound))
}

func TestSetThenGetRoundTrip(t *testing.T) {
	c := newTestCache(t, Options[string]{})
	require.NoError(t, c.Set(context.Background(), "k", "v"))
	v, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestGetMaybeNeverFailsForAbsence(t *testing.T) {
	c := newTestCache(t, Options[string]{})
	_, found, err := c.GetMaybe("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAddDoesNotEmitCoherenceToPeer(t *testing.T) {
	hub := localtransport.NewHub()
	b1 := bus.New(hub.NewPeer(), nil)
	b2 := bus.New(hub.NewPeer(), nil)

	c1 := New[string](b1, Options[string]{Name: "shared", Lifetime: time.Minute})
	c2 := New[string](b2, Options[string]{Name: "shared", Lifetime: time.Minute})
	require.NoError(t, c2.Set(context.Background(), "k", "peer-value"))

	require.NoError(t, c1.Add("k", "mine"))

	// Give any (unwanted) coherence message time to arrive before asserting
	// the peer's copy survived untouched.
	time.Sleep(50 * time.Millisecond)
	v, err := c2.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "peer-value", v)
}

func TestSetEmitsCoherenceToPeer(t *testing.T) {
	hub := localtransport.NewHub()
	b1 := bus.New(hub.NewPeer(), nil)
	b2 := bus.New(hub.NewPeer(), nil)

	c1 := New[string](b1, Options[string]{Name: "shared", Lifetime: time.Minute})
	c2 := New[string](b2, Options[string]{Name: "shared", Lifetime: time.Minute})

	require.NoError(t, c2.Set(context.Background(), "k", "stale"))
	_, err := c2.Get("k")
	require.NoError(t, err)

	require.NoError(t, c1.Set(context.Background(), "k", "fresh"))

	assert.Eventually(t, func() bool {
		_, err := c2.Get("k")
		return qerrors.Is(err, qerrors.ErrKeyNotFound)
	}, time.Second, time.Millisecond)
}

func TestResetEmitsQuantumCacheReset(t *testing.T) {
	hub := localtransport.NewHub()
	b1 := bus.New(hub.NewPeer(), nil)
	b2 := bus.New(hub.NewPeer(), nil)

	c1 := New[string](b1, Options[string]{Name: "shared", Lifetime: time.Minute})
	c2 := New[string](b2, Options[string]{Name: "shared", Lifetime: time.Minute})

	require.NoError(t, c2.Set(context.Background(), "k", "v"))
	require.NoError(t, c1.Reset(context.Background()))

	assert.Eventually(t, func() bool {
		_, err := c2.Get("k")
		return qerrors.Is(err, qerrors.ErrKeyNotFound)
	}, time.Second, time.Millisecond)
}

func TestDeleteManyRemovesAllKeys(t *testing.T) {
	c := newTestCache(t, Options[string]{})
	require.NoError(t, c.SetMany(context.Background(), map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, c.DeleteMany(context.Background(), []string{"a", "b"}))
	assert.False(t, c.Has("a"))
	assert.False(t, c.Has("b"))
}

func TestSetManySkipsEmissionWhenNothingChanged(t *testing.T) {
	c := newTestCache(t, Options[string]{Equal: func(a, b string) bool { return a == b }})
	require.NoError(t, c.SetMany(context.Background(), map[string]string{"a": "1"}))
	// Re-setting the identical value must not error or panic even though
	// no coherence event is emitted.
	require.NoError(t, c.SetMany(context.Background(), map[string]string{"a": "1"}))
	v, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestGCEvictsExpiredEntries(t *testing.T) {
	c := newTestCache(t, Options[string]{Lifetime: time.Millisecond})
	require.NoError(t, c.Set(context.Background(), "k", "v"))
	time.Sleep(5 * time.Millisecond)
	n, err := c.GC()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDisposeIsIdempotent(t *testing.T) {
	c := newTestCache(t, Options[string]{})
	require.NoError(t, c.Dispose(context.Background()))
	require.NoError(t, c.Dispose(context.Background()))
	_, err := c.Get("anything")
	assert.True(t, qerrors.Is(err, qerrors.ErrDisposed))
}

func TestMethodsFailAfterDispose(t *testing.T) {
	c := newTestCache(t, Options[string]{})
	require.NoError(t, c.Dispose(context.Background()))

	assert.True(t, qerrors.Is(c.Set(context.Background(), "k", "v"), qerrors.ErrDisposed))
	_, _, err := c.GetMaybe("k")
	assert.True(t, qerrors.Is(err, qerrors.ErrDisposed))
}

func TestDisposePurgesMemory(t *testing.T) {
	c := newTestCache(t, Options[string]{})
	require.NoError(t, c.Set(context.Background(), "k", "v"))
	require.NoError(t, c.Dispose(context.Background()))
	assert.Equal(t, 0, c.store.Size())
}
