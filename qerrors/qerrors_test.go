package qerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFetchFailedPreservesBothIdentities(t *testing.T) {
	cause := New("loader exploded")
	wrapped := NewFetchFailed(cause)
	require.NotNil(t, wrapped)

	assert.True(t, Is(wrapped, ErrFetchFailed))
	assert.True(t, Is(wrapped, cause))
	assert.True(t, IsFetchFailed(wrapped))
	assert.Contains(t, wrapped.Error(), "loader exploded")
}

func TestNewFetchFailedNilCause(t *testing.T) {
	assert.Nil(t, NewFetchFailed(nil))
}

func TestAggregateEmpty(t *testing.T) {
	assert.Nil(t, Aggregate())
	assert.Nil(t, Aggregate(nil, nil))
}

func TestAggregateSingle(t *testing.T) {
	cause := New("one bad key")
	agg := Aggregate(nil, cause)
	assert.True(t, IsFetchFailed(agg))
	assert.True(t, Is(agg, cause))
}

func TestAggregateMultiple(t *testing.T) {
	e1 := New("bad key 1")
	e2 := New("bad key 2")
	agg := Aggregate(e1, e2)
	assert.True(t, IsFetchFailed(agg))
	assert.Contains(t, agg.Error(), "2 errors occurred")
	assert.Contains(t, agg.Error(), "bad key 1")
	assert.Contains(t, agg.Error(), "bad key 2")
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.False(t, Is(ErrKeyNotFound, ErrDisposed))
	assert.False(t, Is(ErrDisposing, ErrDisposed))
}
