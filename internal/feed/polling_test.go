package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
	testlog "restaurant-orders/internal/testutil"
)

type scriptedLister struct {
	mu    sync.Mutex
	calls int
	steps []func() ([]domain.Order, error)
}

func (s *scriptedLister) ListByRestaurant(_ context.Context, _ string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i]()
}

func orders(ids ...string) []domain.Order {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]domain.Order, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.Order{ID: id, RestaurantID: "r-1", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	return out
}

func next(t *testing.T, sub *Subscription) Update {
	t.Helper()
	select {
	case u, ok := <-sub.Updates():
		require.True(t, ok, "updates closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
		return Update{}
	}
}

func TestPollingSource_EmitsOnChangeOnly(t *testing.T) {
	t.Parallel()

	lister := &scriptedLister{steps: []func() ([]domain.Order, error){
		func() ([]domain.Order, error) { return orders("a", "b"), nil },
		func() ([]domain.Order, error) { return orders("a", "b"), nil },
		func() ([]domain.Order, error) { return orders("a"), nil },
	}}
	src := NewPollingSource(lister, 5*time.Millisecond, testlog.New().Logger())

	sub, err := src.Subscribe(context.Background(), "r-1")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	first := next(t, sub)
	require.NoError(t, first.Err)
	require.Len(t, first.Orders, 2)
	require.Equal(t, "b", first.Orders[0].ID, "newest first")

	second := next(t, sub)
	require.NoError(t, second.Err)
	require.Len(t, second.Orders, 1)
}

func TestPollingSource_ErrorIsEmittedThenRecovers(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	lister := &scriptedLister{steps: []func() ([]domain.Order, error){
		func() ([]domain.Order, error) { return orders("a"), nil },
		func() ([]domain.Order, error) { return nil, boom },
		func() ([]domain.Order, error) { return orders("a"), nil },
	}}
	rec := testlog.New()
	src := NewPollingSource(lister, 5*time.Millisecond, rec.Logger())

	sub, err := src.Subscribe(context.Background(), "r-1")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, next(t, sub).Err)

	failed := next(t, sub)
	require.ErrorIs(t, failed.Err, boom)
	require.True(t, rec.Has("order poll failed"))

	recovered := next(t, sub)
	require.NoError(t, recovered.Err)
	require.Len(t, recovered.Orders, 1, "unchanged set is re-emitted after an error")
}

func TestPollingSource_UnsubscribeClosesUpdates(t *testing.T) {
	t.Parallel()

	lister := &scriptedLister{steps: []func() ([]domain.Order, error){
		func() ([]domain.Order, error) { return orders("a"), nil },
	}}
	src := NewPollingSource(lister, time.Millisecond, nil)

	sub, err := src.Subscribe(context.Background(), "r-1")
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()

	for range sub.Updates() {
	}
}

func TestPollingSource_RejectsEmptyRestaurant(t *testing.T) {
	t.Parallel()

	src := NewPollingSource(&scriptedLister{}, time.Second, nil)
	_, err := src.Subscribe(context.Background(), "  ")
	require.ErrorIs(t, err, apperr.ErrInvalid)
}
