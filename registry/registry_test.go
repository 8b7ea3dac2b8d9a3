package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/bus/localtransport"
	"github.com/fedimesh/qkvc/qerrors"
	"github.com/fedimesh/qkvc/quantum"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	b := bus.New(localtransport.Standalone(), nil)
	return New(b, nil)
}

func TestCreateQuantumRegistersInstance(t *testing.T) {
	r := newTestRegistry(t)
	c, err := CreateQuantum[string](r, quantum.Options[string]{Name: "users", Lifetime: time.Minute})
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "k", "v"))
	assert.Contains(t, r.Names(), "users")
}

func TestCreateQuantumRejectsDuplicateName(t *testing.T) {
	r := newTestRegistry(t)
	_, err := CreateQuantum[string](r, quantum.Options[string]{Name: "dup", Lifetime: time.Minute})
	require.NoError(t, err)

	_, err = CreateQuantum[int](r, quantum.Options[int]{Name: "dup", Lifetime: time.Minute})
	assert.True(t, qerrors.Is(err, qerrors.ErrDuplicateCacheName))
}

func TestCreateMemoryRegistersInstance(t *testing.T) {
	r := newTestRegistry(t)
	c, err := CreateMemory[int](r, "counts", time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Set("k", 1))
	assert.Contains(t, r.Names(), "counts")
}

func TestNamesSpansBothKinds(t *testing.T) {
	r := newTestRegistry(t)
	_, err := CreateQuantum[string](r, quantum.Options[string]{Name: "a", Lifetime: time.Minute})
	require.NoError(t, err)
	_, err = CreateMemory[string](r, "b", time.Minute)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
}

func TestClearWipesMemoryWithoutDisposing(t *testing.T) {
	r := newTestRegistry(t)
	qc, err := CreateQuantum[string](r, quantum.Options[string]{Name: "q", Lifetime: time.Minute})
	require.NoError(t, err)
	require.NoError(t, qc.Set(context.Background(), "k", "v"))

	require.NoError(t, r.Clear())

	require.NoError(t, qc.Set(context.Background(), "k2", "v2"))
	v, err := qc.Get("k2")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestDisposeDisposesEveryInstance(t *testing.T) {
	r := newTestRegistry(t)
	qc, err := CreateQuantum[string](r, quantum.Options[string]{Name: "q", Lifetime: time.Minute})
	require.NoError(t, err)
	mc, err := CreateMemory[string](r, "m", time.Minute)
	require.NoError(t, err)

	require.NoError(t, r.Dispose(context.Background()))

	_, getErr := qc.Get("k")
	assert.True(t, qerrors.Is(getErr, qerrors.ErrDisposed))
	_, memErr := mc.Get("k")
	assert.True(t, qerrors.Is(memErr, qerrors.ErrDisposed))
	assert.Empty(t, r.Names())
}

func TestGlobalPanicsOnDoubleInit(t *testing.T) {
	resetGlobalForTest()
	defer resetGlobalForTest()

	Init(newTestRegistry(t))
	assert.NotNil(t, Global())
	assert.Panics(t, func() { Init(newTestRegistry(t)) })
}
