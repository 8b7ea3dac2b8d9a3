package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New[string]()
	s.Set("k", "v1", time.Now().Add(time.Minute))

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestGetMissingKey(t *testing.T) {
	s := New[string]()
	_, ok := s.Get("absent")
	assert.False(t, ok)
}

func TestExpiredEntryTreatedAsAbsent(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := now
	s := NewWithClock[string](func() time.Time { return clock })

	s.Set("k", "v1", now.Add(time.Second))
	clock = now.Add(2 * time.Second)

	_, ok := s.Get("k")
	assert.False(t, ok)
	// lazily removed
	assert.Equal(t, 0, s.Size())
}

func TestDeleteReportsPriorPresence(t *testing.T) {
	s := New[int]()
	assert.False(t, s.Delete("missing"))

	s.Set("k", 1, time.Now().Add(time.Minute))
	assert.True(t, s.Delete("k"))
	assert.False(t, s.Has("k"))
}

func TestEntriesSnapshotExcludesExpired(t *testing.T) {
	now := time.Unix(2000, 0)
	clock := now
	s := NewWithClock[int](func() time.Time { return clock })

	s.Set("live", 1, now.Add(time.Minute))
	s.Set("dead", 2, now.Add(time.Millisecond))
	clock = now.Add(time.Second)

	entries := s.Entries()
	assert.Equal(t, map[string]int{"live": 1}, entries)
}

func TestGC(t *testing.T) {
	now := time.Unix(3000, 0)
	clock := now
	s := NewWithClock[int](func() time.Time { return clock })

	s.Set("a", 1, now.Add(-time.Second)) // already expired
	s.Set("b", 2, now.Add(time.Minute))

	removed := s.GC()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Size())
}

func TestClear(t *testing.T) {
	s := New[int]()
	s.Set("a", 1, time.Now().Add(time.Minute))
	s.Set("b", 2, time.Now().Add(time.Minute))
	s.Clear()
	assert.Equal(t, 0, s.Size())
}
