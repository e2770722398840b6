package transition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logx"
)

type storeFunc func(context.Context, string, domain.Status, domain.StatusExtra) (domain.Order, error)

func (f storeFunc) SetOrderStatus(ctx context.Context, id string, to domain.Status, extra domain.StatusExtra) (domain.Order, error) {
	return f(ctx, id, to, extra)
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base, ceiling := 100*time.Millisecond, time.Second
	require.Equal(t, 100*time.Millisecond, backoff(base, ceiling, 1))
	require.Equal(t, 200*time.Millisecond, backoff(base, ceiling, 2))
	require.Equal(t, 800*time.Millisecond, backoff(base, ceiling, 4))
	require.Equal(t, time.Second, backoff(base, ceiling, 5))
	require.Equal(t, time.Second, backoff(base, ceiling, 80))
	require.Equal(t, time.Second, backoff(base, ceiling, 1<<20))
	require.Zero(t, backoff(0, ceiling, 3))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, isRetryable(apperr.ErrUnavailable))
	require.True(t, isRetryable(errors.New("connection reset")))
	require.True(t, isRetryable(context.DeadlineExceeded))
	require.False(t, isRetryable(context.Canceled))
	require.False(t, isRetryable(apperr.ErrConflict))
	require.False(t, isRetryable(apperr.ErrNotFound))
	require.False(t, isRetryable(&ValidationError{Field: "x", Reason: "y"}))
}

func TestRetryingStore_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	calls := 0
	next := storeFunc(func(context.Context, string, domain.Status, domain.StatusExtra) (domain.Order, error) {
		calls++
		return domain.Order{}, apperr.ErrUnavailable
	})
	s := newRetryingStore(next, logx.Nop(), nopCounter{}, RetryConfig{MaxAttempts: 10, BaseDelay: time.Hour, MaxDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.SetOrderStatus(ctx, "o-1", domain.StatusRejected, domain.StatusExtra{})
	require.ErrorIs(t, err, apperr.ErrUnavailable)
	require.Equal(t, 1, calls)
}

func TestRetryingStore_ZeroAttemptsMeansOne(t *testing.T) {
	t.Parallel()

	calls := 0
	next := storeFunc(func(context.Context, string, domain.Status, domain.StatusExtra) (domain.Order, error) {
		calls++
		return domain.Order{ID: "o-1"}, nil
	})
	s := newRetryingStore(next, logx.Nop(), nopCounter{}, RetryConfig{})

	got, err := s.SetOrderStatus(context.Background(), "o-1", domain.StatusRejected, domain.StatusExtra{})
	require.NoError(t, err)
	require.Equal(t, "o-1", got.ID)
	require.Equal(t, 1, calls)
}

func TestTimeoutStore_BoundsEachCall(t *testing.T) {
	t.Parallel()

	next := storeFunc(func(ctx context.Context, _ string, _ domain.Status, _ domain.StatusExtra) (domain.Order, error) {
		<-ctx.Done()
		return domain.Order{}, ctx.Err()
	})
	s := timeoutStore{next: next, timeout: 10 * time.Millisecond}

	_, err := s.SetOrderStatus(context.Background(), "o-1", domain.StatusRejected, domain.StatusExtra{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
