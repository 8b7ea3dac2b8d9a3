package followstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/bus/localtransport"
	"github.com/fedimesh/qkvc/qerrors"
	"github.com/fedimesh/qkvc/registry"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	b := bus.New(localtransport.Standalone(), nil)
	r := registry.New(b, nil)
	c, err := New(r, "userFollowStats", time.Minute)
	require.NoError(t, err)
	return c
}

func TestSetThenGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("u1", Stats{LocalFollowing: 3, RemoteFollowers: 1}))

	stats, err := c.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.LocalFollowing)
	assert.Equal(t, 1, stats.RemoteFollowers)
}

func TestGetFailsKeyNotFoundWhenAbsent(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get("missing")
	assert.True(t, qerrors.Is(err, qerrors.ErrKeyNotFound))
}

func TestDeleteEvictsEntry(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("u1", Stats{LocalFollowing: 1}))
	require.NoError(t, c.Delete("u1"))

	_, err := c.Get("u1")
	assert.True(t, qerrors.Is(err, qerrors.ErrKeyNotFound))
}
