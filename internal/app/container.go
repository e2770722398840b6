package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	"restaurant-orders/internal/config"
	"restaurant-orders/internal/engine"
	"restaurant-orders/internal/feed"
	"restaurant-orders/internal/http/handlers"
	mw "restaurant-orders/internal/http/middleware"
	"restaurant-orders/internal/http/router"
	"restaurant-orders/internal/logx"
	"restaurant-orders/internal/metrics"
	"restaurant-orders/internal/notify"
	"restaurant-orders/internal/repository"
	"restaurant-orders/internal/service/transition"
	"restaurant-orders/internal/transport/kafka"
)

// DBConnectFunc opens the order store pool.
type DBConnectFunc func(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect DBConnectFunc
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn DBConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns a new dig container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	steps := []struct {
		name string
		fn   func(*dig.Container) error
	}{
		{"core", func(c *dig.Container) error { return registerCore(c, ctx) }},
		{"DB", func(c *dig.Container) error { return registerDb(c, b.dbConnect) }},
		{"feed", registerFeed},
		{"notify", registerNotify},
		{"service", registerService},
		{"engine", registerEngine},
		{"http", registerHTTP},
	}
	for _, s := range steps {
		if err := s.fn(container); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return container, nil
}

// MustBuildContainer builds and returns a new dig container
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		config.Load,
		NewLogger,
		newRegistry,
		provideMetrics,
		provideHTTPMetrics,
	)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) (*metrics.Set, error) {
	set := metrics.New()
	if err := set.Register(reg); err != nil {
		return nil, fmt.Errorf("register engine metrics: %w", err)
	}
	return set, nil
}

func provideHTTPMetrics(reg *prometheus.Registry) (*mw.Metrics, error) {
	m := mw.NewMetrics()
	if err := m.Register(reg); err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	return m, nil
}

func registerDb(container *dig.Container, dbConnect DBConnectFunc) error {
	providerDB := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*pgxpool.Pool, error) {
		return dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB, newOrderRepo)
}

func newOrderRepo(ctx context.Context, pool *pgxpool.Pool) (*repository.OrderRepo, error) {
	if err := repository.Migrate(ctx, pool); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repository.NewOrderRepo(pool), nil
}

func registerFeed(container *dig.Container) error {
	return provideAll(container,
		feed.NewHub,
		newKafkaConsumer,
		newKafkaProducer,
		newSubscriber,
	)
}

// newKafkaConsumer feeds the hub; it is nil unless the kafka feed is selected.
func newKafkaConsumer(cfg *config.Config, logger logx.Logger, hub *feed.Hub) (*kafka.Consumer, error) {
	if cfg.Feed.Mode != config.FeedModeKafka {
		return nil, nil
	}
	k := cfg.Kafka
	return kafka.NewConsumer(logger, k.Brokers, k.GroupID, k.Topic, hub.Apply, hub.Fail)
}

func newKafkaProducer(cfg *config.Config) (*kafka.Producer, error) {
	return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

func newSubscriber(cfg *config.Config, repo *repository.OrderRepo, hub *feed.Hub, logger logx.Logger) (feed.Subscriber, error) {
	switch cfg.Feed.Mode {
	case config.FeedModePoll:
		return feed.NewPollingSource(repo, cfg.Feed.PollInterval, logger), nil
	case config.FeedModeKafka:
		return hub, nil
	default:
		return nil, fmt.Errorf("unknown feed mode: %q", cfg.Feed.Mode)
	}
}

func registerNotify(container *dig.Container) error {
	return provideAll(container, newRabbitClient, newNotifier)
}

// newRabbitClient is nil when no broker URL is configured.
func newRabbitClient(cfg *config.Config) (*notify.Client, error) {
	if cfg.RabbitMQ.URL == "" {
		return nil, nil
	}
	return notify.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
}

func newNotifier(cfg *config.Config, client *notify.Client, logger logx.Logger) transition.Notifier {
	if client == nil {
		return notify.NewLogNotifier(logger)
	}
	return notify.NewNotifier(client, cfg.RabbitMQ.Exchange, logger)
}

func registerService(container *dig.Container) error {
	return provideAll(container, newExecutor)
}

func newExecutor(
	cfg *config.Config,
	repo *repository.OrderRepo,
	producer *kafka.Producer,
	notifier transition.Notifier,
	logger logx.Logger,
	set *metrics.Set,
) *transition.Executor {
	t := cfg.Transition
	store := kafka.NewChangeEmitter(repo, producer, logger)
	return transition.NewExecutor(store, notifier, logger,
		transition.Config{
			WriteTimeout:  t.WriteTimeout,
			NotifyTimeout: t.NotifyTimeout,
			Retry: transition.RetryConfig{
				MaxAttempts: t.RetryMaxAttempts,
				BaseDelay:   t.RetryBaseDelay,
				MaxDelay:    t.RetryMaxDelay,
			},
		},
		transition.Metrics{
			Transitions:          set.Transitions,
			NotificationFailures: set.NotificationFailures,
			StoreRetries:         set.StoreRetries,
		},
	)
}

func registerEngine(container *dig.Container) error {
	return provideAll(container, newEngineFactory, engine.NewManager)
}

func newEngineFactory(
	cfg *config.Config,
	sub feed.Subscriber,
	exec *transition.Executor,
	logger logx.Logger,
	set *metrics.Set,
) engine.Factory {
	return func(restaurantID string) *engine.Engine {
		return engine.New(engine.Deps{
			Feed:      sub,
			Canceller: exec,
			Logger:    logger.With(logx.RestaurantID(restaurantID)),
			Config: engine.Config{
				TickInterval:      cfg.Engine.TickInterval,
				AutoCancelGrace:   cfg.Engine.AutoCancelGrace,
				AutoCancelTimeout: cfg.Engine.AutoCancelTimeout,
			},
			Metrics: engine.Metrics{
				AutoCancelFired:    set.AutoCancelFired,
				AutoCancelFailures: set.AutoCancelFailures,
				FeedErrors:         set.FeedErrors,
				ActiveTimers:       set.ActiveTimers.WithLabelValues(restaurantID),
			},
		})
	}
}

type routerIn struct {
	dig.In

	Logger   logx.Logger
	Metrics  *mw.Metrics
	Registry *prometheus.Registry
	Base     *handlers.Handlers
	Orders   *handlers.OrderHandler
	Engines  *handlers.EngineHandler
}

func newRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Logger:   in.Logger,
		Metrics:  in.Metrics,
		Gatherer: in.Registry,
		Base:     in.Base,
		Orders:   in.Orders,
		Engines:  in.Engines,
	})
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		handlers.New,
		func(logger logx.Logger, exec *transition.Executor) *handlers.OrderHandler {
			return handlers.NewOrderHandler(logger, exec)
		},
		func(logger logx.Logger, m *engine.Manager) *handlers.EngineHandler {
			return handlers.NewEngineHandler(logger, m)
		},
		newRouter,
		serverProvider,
	)
}
