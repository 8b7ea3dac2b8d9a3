package domaincache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/bus/localtransport"
	"github.com/fedimesh/qkvc/config"
	"github.com/fedimesh/qkvc/qerrors"
	"github.com/fedimesh/qkvc/registry"
)

func TestNewBundleAppliesCacheConfigLifetimeOverride(t *testing.T) {
	b := bus.New(localtransport.Standalone(), nil)
	r := registry.New(b, nil)
	loaders := newFakeLoaders()

	caches := map[string]config.CacheConfig{
		NameUserByID: {Lifetime: time.Nanosecond},
	}
	bundle, err := NewBundle(r, loaders, caches)
	require.NoError(t, err)

	require.NoError(t, bundle.UserByID.Add("u1", &User{ID: "u1"}))
	time.Sleep(2 * time.Millisecond)
	_, err = bundle.UserByID.Get("u1")
	assert.True(t, qerrors.Is(err, qerrors.ErrKeyNotFound), "expected the overridden nanosecond lifetime to have already expired the entry, got %v", err)
}

func TestNewBundleFallsBackToCatalogDefaultWithoutOverride(t *testing.T) {
	b := bus.New(localtransport.Standalone(), nil)
	r := registry.New(b, nil)
	loaders := newFakeLoaders()

	bundle, err := NewBundle(r, loaders, nil)
	require.NoError(t, err)

	require.NoError(t, bundle.UserByID.Add("u1", &User{ID: "u1"}))
	_, err = bundle.UserByID.Get("u1")
	assert.NoError(t, err, "expected the catalog's multi-minute default lifetime to still be in effect")
}

func TestEqualComparableMatchesOnlyEqualValues(t *testing.T) {
	assert.True(t, equalComparable("a", "a"))
	assert.False(t, equalComparable("a", "b"))
	assert.True(t, equalComparable(true, true))
	assert.False(t, equalComparable(true, false))
}
