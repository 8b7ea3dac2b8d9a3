package quantum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/bus/localtransport"
)

func TestOnChangedFiresOnRemoteInvalidation(t *testing.T) {
	hub := localtransport.NewHub()
	b1 := bus.New(hub.NewPeer(), nil)
	b2 := bus.New(hub.NewPeer(), nil)

	var changedKeys []string
	changed := make(chan struct{}, 1)

	c1 := New[string](b1, Options[string]{Name: "shared", Lifetime: time.Minute})
	New[string](b2, Options[string]{
		Name:     "shared",
		Lifetime: time.Minute,
		OnChanged: func(ctx context.Context, keys []string) {
			changedKeys = keys
			changed <- struct{}{}
		},
	})

	require.NoError(t, c1.Set(context.Background(), "k", "v"))

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("onChanged was not invoked")
	}
	assert.Equal(t, []string{"k"}, changedKeys)
}

func TestOnResetFiresOnRemoteReset(t *testing.T) {
	hub := localtransport.NewHub()
	b1 := bus.New(hub.NewPeer(), nil)
	b2 := bus.New(hub.NewPeer(), nil)

	resetCh := make(chan struct{}, 1)

	c1 := New[string](b1, Options[string]{Name: "shared", Lifetime: time.Minute})
	New[string](b2, Options[string]{
		Name:     "shared",
		Lifetime: time.Minute,
		OnReset: func(ctx context.Context) {
			resetCh <- struct{}{}
		},
	})

	require.NoError(t, c1.Reset(context.Background()))

	select {
	case <-resetCh:
	case <-time.After(time.Second):
		t.Fatal("onReset was not invoked")
	}
}

func TestDifferentCacheNamesAreIsolated(t *testing.T) {
	hub := localtransport.NewHub()
	b1 := bus.New(hub.NewPeer(), nil)
	b2 := bus.New(hub.NewPeer(), nil)

	c1 := New[string](b1, Options[string]{Name: "a", Lifetime: time.Minute})
	c2 := New[string](b2, Options[string]{Name: "b", Lifetime: time.Minute})

	require.NoError(t, c2.Set(context.Background(), "k", "v"))
	require.NoError(t, c1.Set(context.Background(), "k", "other"))

	time.Sleep(50 * time.Millisecond)
	v, err := c2.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v, "cache b must not react to cache a's coherence events")
}
