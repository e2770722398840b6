package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"restaurant-orders/internal/config"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/engine"
	"restaurant-orders/internal/feed"
	"restaurant-orders/internal/logx"
	"restaurant-orders/internal/notify"
	"restaurant-orders/internal/service/transition"
	testlog "restaurant-orders/internal/testutil"
	"restaurant-orders/internal/transport/kafka"
)

type storeStub struct {
	mu    sync.Mutex
	calls int
}

func (s *storeStub) SetOrderStatus(_ context.Context, orderID string, to domain.Status, _ domain.StatusExtra) (domain.Order, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return domain.Order{ID: orderID, Status: to}, nil
}

func TestGracefulShutdown_DoesNotPanic(t *testing.T) {
	t.Parallel()

	srv := &http.Server{
		Addr:    "127.0.0.1:0",
		Handler: http.NewServeMux(),
	}

	require.NotPanics(t, func() {
		gracefulShutdown(srv, logx.Nop(), 100*time.Millisecond)
	})
}

func TestMustRun_ShutdownRequested(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	container := dig.New()
	require.NoError(t, container.Provide(func() logx.Logger {
		return rec.Logger()
	}))

	r := &Runner{
		runFn: func(_ *dig.Container) error { return context.Canceled },
		exit:  func(int) { t.Fatal("exit must not be called") },
	}
	r.MustRun(container)
	require.True(t, rec.Has("shutdown requested, exiting"))
}

func TestRunner_MustRun_StartupTimeout(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	container := dig.New()
	require.NoError(t, container.Provide(func() logx.Logger {
		return rec.Logger()
	}))

	r := &Runner{
		runFn: func(_ *dig.Container) error { return context.DeadlineExceeded },
		exit:  func(int) { t.Fatal("exit must not be called") },
	}
	r.MustRun(container)
	require.Equal(t, 1, rec.Count("warn", "startup aborted: startup timeout exceeded"))
}

func TestRunner_MustRun_ExitsOnFailure(t *testing.T) {
	t.Parallel()

	code := -1
	r := &Runner{
		runFn: func(_ *dig.Container) error { return errors.New("listen: address in use") },
		exit:  func(c int) { code = c },
	}
	// no logger in the container: falls back to nop
	r.MustRun(dig.New())
	require.Equal(t, 1, code)
}

func TestNewRunner_DefaultFields(t *testing.T) {
	t.Parallel()

	r := NewRunner()
	require.NotNil(t, r)
	require.NotNil(t, r.exit)
	require.NotNil(t, r.runFn)
	require.Equal(t, fmt.Sprintf("%p", run), fmt.Sprintf("%p", r.runFn))
}

func TestRun_StartsEnginesAndShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := testlog.New()
	hub := feed.NewHub(nil)
	exec := transition.NewExecutor(&storeStub{}, nil, nil, transition.Config{}, transition.Metrics{})
	manager := engine.NewManager(func(string) *engine.Engine {
		return engine.New(engine.Deps{Feed: hub, Canceller: exec, Logger: rec.Logger()})
	}, rec.Logger())

	container := dig.New()
	require.NoError(t, provideAll(container,
		func() context.Context { return ctx },
		func() *config.Config { return &config.Config{Restaurants: []string{"r-1", "r-2"}} },
		func() logx.Logger { return rec.Logger() },
		func() *http.Server {
			return &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
		},
		func() *engine.Manager { return manager },
		func() *transition.Executor { return exec },
		func() *kafka.Consumer { return nil },
		func() *kafka.Producer { return nil },
		func() *notify.Client { return nil },
		func() *pgxpool.Pool { return nil },
	))

	subscribed := make(chan int, 1)
	go func() {
		for len(manager.Restaurants()) < 2 {
			time.Sleep(5 * time.Millisecond)
		}
		subscribed <- hub.Subscribers("r-1")
		cancel()
	}()

	err := run(container)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, <-subscribed)
	require.Empty(t, manager.Restaurants())
	require.Equal(t, 0, hub.Subscribers("r-1"))
	require.Equal(t, 2, rec.Count("info", "order engine started"))
	require.True(t, rec.Has("shutting down order-engine..."))
}

func TestRun_ListenFailureStopsService(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	exec := transition.NewExecutor(&storeStub{}, nil, nil, transition.Config{}, transition.Metrics{})

	container := dig.New()
	require.NoError(t, provideAll(container,
		func() context.Context { return context.Background() },
		func() *config.Config { return &config.Config{} },
		func() logx.Logger { return rec.Logger() },
		func() *http.Server {
			return &http.Server{Addr: "127.0.0.1:-1", Handler: http.NewServeMux()}
		},
		func() *engine.Manager { return engine.NewManager(nil, nil) },
		func() *transition.Executor { return exec },
		func() *kafka.Consumer { return nil },
		func() *kafka.Producer { return nil },
		func() *notify.Client { return nil },
		func() *pgxpool.Pool { return nil },
	))

	err := run(container)
	require.Error(t, err)
	require.Contains(t, err.Error(), "listen")
	require.True(t, rec.Has("order-engine failed"))
}
