package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/feed"
)

func newTestManager() *Manager {
	return NewManager(func(string) *Engine {
		return New(Deps{Feed: newChanFeed(), Clock: newFakeClock(t0)})
	}, nil)
}

func TestManager_StartStop(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	ctx := context.Background()

	require.NoError(t, m.StartEngine(ctx, "r-2"))
	require.NoError(t, m.StartEngine(ctx, "r-1"))
	require.ErrorIs(t, m.StartEngine(ctx, "r-1"), apperr.ErrConflict)
	require.ErrorIs(t, m.StartEngine(ctx, ""), apperr.ErrInvalid)
	require.Equal(t, []string{"r-1", "r-2"}, m.Restaurants())

	e, ok := m.Engine("r-1")
	require.True(t, ok)
	require.True(t, e.Running())

	require.NoError(t, m.StopEngine("r-1"))
	require.False(t, e.Running())
	require.ErrorIs(t, m.StopEngine("r-1"), apperr.ErrNotFound)

	_, ok = m.Engine("r-1")
	require.False(t, ok)
}

func TestManager_StopAll(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.StartEngine(context.Background(), id))
	}
	engines := make([]*Engine, 0, 3)
	for _, id := range m.Restaurants() {
		e, _ := m.Engine(id)
		engines = append(engines, e)
	}

	m.StopAll()

	require.Empty(t, m.Restaurants())
	for _, e := range engines {
		require.False(t, e.Running())
	}
}

func TestManager_Views(t *testing.T) {
	t.Parallel()

	f := newChanFeed()
	m := NewManager(func(string) *Engine {
		return New(Deps{Feed: f, Clock: newFakeClock(t0)})
	}, nil)
	t.Cleanup(m.StopAll)

	_, err := m.Views("r-1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = m.View("r-1", "a")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, m.StartEngine(context.Background(), "r-1"))
	f.push(t, feed.Update{Orders: []domain.Order{pendingASAP("a", t0)}})

	require.Eventually(t, func() bool {
		views, err := m.Views("r-1")
		return err == nil && len(views) == 1
	}, 2*time.Second, 5*time.Millisecond)

	v, err := m.View("r-1", "a")
	require.NoError(t, err)
	require.Equal(t, "a", v.OrderID)

	_, err = m.View("r-1", "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
