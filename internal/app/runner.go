package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"restaurant-orders/internal/config"
	"restaurant-orders/internal/engine"
	"restaurant-orders/internal/logx"
	"restaurant-orders/internal/notify"
	"restaurant-orders/internal/service/transition"
	"restaurant-orders/internal/transport/kafka"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the order engine service
type Runner struct {
	runFn func(*dig.Container) error
	exit  func(int)
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run, exit: os.Exit}
}

// MustRun starts the service using the provided DI container and blocks until shutdown.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := containerLogger(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		r.exit(1)
	}
}

func containerLogger(container *dig.Container) logx.Logger {
	logger := logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	return logger
}

type runIn struct {
	dig.In

	Ctx      context.Context
	Config   *config.Config
	Logger   logx.Logger
	Server   *http.Server
	Engines  *engine.Manager
	Executor *transition.Executor
	Consumer *kafka.Consumer
	Producer *kafka.Producer
	Rabbit   *notify.Client
	Pool     *pgxpool.Pool
}

func run(container *dig.Container) error {
	return container.Invoke(appRun)
}

func appRun(in runIn) error {
	errCh := make(chan error, 2)

	startConsumer(in.Ctx, in.Consumer, in.Logger, errCh)
	startEngines(in.Ctx, in.Engines, in.Config.Restaurants, in.Logger)
	startServer(in.Server, in.Logger, errCh)

	var runErr error
	select {
	case <-in.Ctx.Done():
		in.Logger.Info("shutting down order-engine...")
		runErr = in.Ctx.Err()
	case runErr = <-errCh:
		in.Logger.Error("order-engine failed", logx.Err(runErr))
	}

	gracefulShutdown(in.Server, in.Logger, shutdownTimeout)
	closeResources(in)
	return runErr
}

func startConsumer(ctx context.Context, consumer *kafka.Consumer, logger logx.Logger, errCh chan<- error) {
	if consumer == nil {
		return
	}
	go func() {
		logger.Info("kafka consumer started")
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("kafka consumer: %w", err)
		}
	}()
}

func startEngines(ctx context.Context, engines *engine.Manager, restaurants []string, logger logx.Logger) {
	for _, id := range restaurants {
		if err := engines.StartEngine(ctx, id); err != nil {
			logger.Error("engine start failed", logx.RestaurantID(id), logx.Err(err))
		}
	}
}

func startServer(server *http.Server, logger logx.Logger, errCh chan<- error) {
	go func() {
		logger.Info("order-engine listening", logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.Err(err))
	}
}

// closeResources stops engines before draining notifications so no auto-cancel starts late.
func closeResources(in runIn) {
	logger := in.Logger

	in.Engines.StopAll()
	in.Executor.Wait()

	if err := in.Consumer.Close(); err != nil {
		logger.Error("kafka consumer close error", logx.Err(err))
	}
	if err := in.Producer.Close(); err != nil {
		logger.Error("kafka producer close error", logx.Err(err))
	}
	if in.Rabbit != nil {
		if err := in.Rabbit.Close(); err != nil {
			logger.Error("rabbitmq close error", logx.Err(err))
		}
	}
	if in.Pool != nil {
		in.Pool.Close()
	}
	_ = logger.Sync()
}
