// Package engine runs the order lifecycle of a restaurant: it follows the live order
// feed, keeps the countdown timers of every order and auto-cancels unanswered ASAP orders.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/feed"
	"restaurant-orders/internal/logx"
)

const tickBuffer = 64

// AutoCanceller performs the persisted write of an auto-cancellation.
type AutoCanceller interface {
	AutoCancel(ctx context.Context, orderID string) error
}

// Counter is the subset of prometheus.Counter used by the engine.
type Counter interface{ Inc() }

// Gauge is the subset of prometheus.Gauge used by the engine.
type Gauge interface{ Set(float64) }

type nopMetric struct{}

func (nopMetric) Inc()        {}
func (nopMetric) Set(float64) {}

// Config stores engine timings.
type Config struct {
	TickInterval      time.Duration
	AutoCancelGrace   time.Duration
	AutoCancelTimeout time.Duration
}

// Metrics are the collectors the engine reports to. Nil members are ignored.
type Metrics struct {
	AutoCancelFired    Counter
	AutoCancelFailures Counter
	FeedErrors         Counter
	ActiveTimers       Gauge
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Feed      feed.Subscriber
	Canceller AutoCanceller
	Clock     Clock
	// Logger is used as is; callers scope it to the restaurant.
	Logger  logx.Logger
	Config  Config
	Metrics Metrics
}

// Engine follows the orders of one restaurant at a time.
type Engine struct {
	feed      feed.Subscriber
	canceller AutoCanceller
	clock     Clock
	logger    logx.Logger
	cfg       Config
	metrics   Metrics

	mu      sync.RWMutex
	session *session
}

// New creates a stopped Engine.
func New(deps Deps) *Engine {
	cfg := deps.Config
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.AutoCancelGrace <= 0 {
		cfg.AutoCancelGrace = domain.AutoCancelGrace
	}
	if cfg.AutoCancelTimeout <= 0 {
		cfg.AutoCancelTimeout = 10 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logx.Nop()
	}
	m := deps.Metrics
	if m.AutoCancelFired == nil {
		m.AutoCancelFired = nopMetric{}
	}
	if m.AutoCancelFailures == nil {
		m.AutoCancelFailures = nopMetric{}
	}
	if m.FeedErrors == nil {
		m.FeedErrors = nopMetric{}
	}
	if m.ActiveTimers == nil {
		m.ActiveTimers = nopMetric{}
	}
	return &Engine{
		feed:      deps.Feed,
		canceller: deps.Canceller,
		clock:     deps.Clock,
		logger:    deps.Logger,
		cfg:       cfg,
		metrics:   m,
	}
}

// Start subscribes to the restaurant's order feed and begins reconciling timers.
// The engine outlives ctx cancellation; call Stop to end it.
func (e *Engine) Start(ctx context.Context, restaurantID string) error {
	restaurantID = strings.TrimSpace(restaurantID)
	if restaurantID == "" {
		return fmt.Errorf("restaurant id: %w", apperr.ErrInvalid)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return fmt.Errorf("engine already follows restaurant %s: %w", e.session.restaurantID, apperr.ErrConflict)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := e.feed.Subscribe(runCtx, restaurantID)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to orders of %s: %w", restaurantID, err)
	}

	s := &session{
		engine:       e,
		restaurantID: restaurantID,
		logger:       e.logger,
		sub:          sub,
		cancel:       cancel,
		done:         make(chan struct{}),
		ticks:        make(chan TimerKey, tickBuffer),
	}
	s.timers = NewOrchestrator(e.clock, e.cfg.TickInterval, s.ticks, s.onExpire)
	e.session = s

	go s.run(runCtx)
	s.logger.Info("order engine started")
	return nil
}

// Stop ends the subscription, destroys every timer and waits for in-flight
// auto-cancel writes. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.mu.Unlock()
	if s == nil {
		return
	}

	s.cancel()
	<-s.done
	s.timers.StopAll()
	s.sub.Unsubscribe()
	e.metrics.ActiveTimers.Set(0)
	s.inflight.Wait()
	s.logger.Info("order engine stopped")
}

// Running reports whether the engine follows a restaurant.
func (e *Engine) Running() bool {
	return e.current() != nil
}

// RestaurantID returns the followed restaurant, or "" when stopped.
func (e *Engine) RestaurantID() string {
	if s := e.current(); s != nil {
		return s.restaurantID
	}
	return ""
}

// Views returns the view of every order of the latest snapshot, newest first.
func (e *Engine) Views() []OrderView {
	s := e.current()
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OrderView, 0, len(s.snapshot))
	for _, o := range s.snapshot {
		out = append(out, buildView(o, s.timers))
	}
	return out
}

// View returns the view of a single order of the latest snapshot.
func (e *Engine) View(orderID string) (OrderView, bool) {
	s := e.current()
	if s == nil {
		return OrderView{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[orderID]
	if !ok {
		return OrderView{}, false
	}
	return buildView(s.snapshot[i], s.timers), true
}

func (e *Engine) current() *session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}

// session is one subscription of an engine. It owns the timer registry; only its
// run goroutine mutates it.
type session struct {
	engine       *Engine
	restaurantID string
	logger       logx.Logger
	timers       *Orchestrator
	sub          *feed.Subscription
	cancel       context.CancelFunc
	done         chan struct{}
	ticks        chan TimerKey
	inflight     sync.WaitGroup

	mu       sync.RWMutex
	snapshot []domain.Order
	index    map[string]int
}

func (s *session) run(ctx context.Context) {
	defer close(s.done)

	updates := s.sub.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				s.logger.Warn("order feed closed")
				updates = nil
				continue
			}
			if u.Err != nil {
				s.engine.metrics.FeedErrors.Inc()
				s.logger.Warn("order feed error, reconciliation paused", logx.Err(u.Err))
				continue
			}
			s.apply(u.Orders)
		case key := <-s.ticks:
			s.timers.Tick(key)
			s.engine.metrics.ActiveTimers.Set(float64(s.timers.Len()))
		}
	}
}

func (s *session) apply(orders []domain.Order) {
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		index[o.ID] = i
	}
	s.mu.Lock()
	s.snapshot, s.index = orders, index
	s.mu.Unlock()

	res := reconcile(s.timers, orders, s.engine.cfg.AutoCancelGrace)
	if res.Changed() {
		s.logger.Debug("timers reconciled",
			logx.Int("orders", len(orders)),
			logx.Int("started", res.Started),
			logx.Int("stopped", res.Stopped),
			logx.Int("rescheduled", res.Rescheduled),
		)
	}
	s.engine.metrics.ActiveTimers.Set(float64(s.timers.Len()))
}

// onExpire runs on the session goroutine, right after the timer was destroyed.
func (s *session) onExpire(key TimerKey) {
	log := s.logger.With(logx.OrderID(key.OrderID))
	switch key.Kind {
	case KindAutoCancel:
		s.engine.metrics.AutoCancelFired.Inc()
		log.Info("auto-cancel deadline reached")
		if s.engine.canceller == nil {
			return
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.engine.cfg.AutoCancelTimeout)
			defer cancel()
			if err := s.engine.canceller.AutoCancel(ctx, key.OrderID); err != nil {
				s.engine.metrics.AutoCancelFailures.Inc()
				log.Error("auto-cancel write failed", logx.Err(err))
			}
		}()
	case KindPreparation:
		log.Info("preparation countdown finished")
	}
}
