// Package transition executes guarded order status changes and their side effects.
package transition

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logx"
)

// List of actions
const (
	ActionAccept     = "accept"
	ActionReject     = "reject"
	ActionComplete   = "complete"
	ActionAutoCancel = "auto_cancel"
)

type counter interface {
	Inc()
}

type counterVec interface {
	WithLabelValues(lvs ...string) prometheus.Counter
}

type nopCounter struct{}

func (nopCounter) Inc() {}

// ValidationError is returned when a request fails local checks. No store call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, apperr.ErrInvalid) hold.
func (e *ValidationError) Unwrap() error { return apperr.ErrInvalid }

// Config stores executor timeouts and the auto-cancel retry policy.
type Config struct {
	WriteTimeout  time.Duration
	NotifyTimeout time.Duration
	Retry         RetryConfig
}

// Metrics are the collectors the executor reports to. Nil members are ignored.
type Metrics struct {
	// Transitions is labelled by action and result.
	Transitions counterVec
	// NotificationFailures is labelled by notification kind.
	NotificationFailures counterVec
	StoreRetries         counter
}

// Executor performs accept, reject, complete and auto-cancel.
type Executor struct {
	store      Store
	autoCancel Store
	notifier   Notifier
	logger     logx.Logger
	cfg        Config

	transitions    counterVec
	notifyFailures counterVec

	inflight sync.WaitGroup
}

// NewExecutor creates an Executor. notifier may be nil.
func NewExecutor(store Store, notifier Notifier, logger logx.Logger, cfg Config, m Metrics) *Executor {
	if logger == nil {
		logger = logx.Nop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 15 * time.Second
	}
	var retries counter = nopCounter{}
	if m.StoreRetries != nil {
		retries = m.StoreRetries
	}
	if m.Transitions == nil {
		m.Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "transitions_total"}, []string{"action", "result"})
	}
	if m.NotificationFailures == nil {
		m.NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "notification_failures_total"}, []string{"kind"})
	}
	bounded := timeoutStore{next: store, timeout: cfg.WriteTimeout}
	return &Executor{
		store:          bounded,
		autoCancel:     newRetryingStore(bounded, logger, retries, cfg.Retry),
		notifier:       notifier,
		logger:         logger,
		cfg:            cfg,
		transitions:    m.Transitions,
		notifyFailures: m.NotificationFailures,
	}
}

// Accept moves a pending order to accepted, storing the pickup estimate when given,
// and sends the confirmation.
func (e *Executor) Accept(ctx context.Context, orderID, estimate string) (domain.Order, error) {
	id, err := validateOrderID(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	trimmed := strings.TrimSpace(estimate)
	if estimate != "" && trimmed == "" {
		return domain.Order{}, &ValidationError{Field: "estimated_pickup_time", Reason: "must not be blank"}
	}

	order, err := e.write(ctx, e.store, ActionAccept, id, domain.StatusAccepted, domain.StatusExtra{EstimatedPickupTime: trimmed})
	if err != nil {
		return domain.Order{}, err
	}
	e.notify("confirmation", order, e.sendConfirmation)
	return order, nil
}

// Reject moves a pending order to rejected with the given reason and sends the rejection.
func (e *Executor) Reject(ctx context.Context, orderID, reason string) (domain.Order, error) {
	id, err := validateOrderID(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Order{}, &ValidationError{Field: "reason", Reason: "is required"}
	}
	return e.reject(ctx, e.store, ActionReject, id, reason)
}

// Complete moves an accepted order to completed.
func (e *Executor) Complete(ctx context.Context, orderID string) (domain.Order, error) {
	id, err := validateOrderID(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return e.write(ctx, e.store, ActionComplete, id, domain.StatusCompleted, domain.StatusExtra{})
}

// AutoCancel rejects an order whose grace window ran out. Transient store failures are
// retried, each attempt bounded by WriteTimeout and the whole call by ctx; the final
// error is returned to the caller.
func (e *Executor) AutoCancel(ctx context.Context, orderID string) error {
	id, err := validateOrderID(orderID)
	if err != nil {
		return err
	}
	_, err = e.reject(ctx, e.autoCancel, ActionAutoCancel, id, domain.AutoCancelReason)
	return err
}

// Wait blocks until every dispatched notification has finished.
func (e *Executor) Wait() {
	e.inflight.Wait()
}

func (e *Executor) reject(ctx context.Context, store Store, action, id, reason string) (domain.Order, error) {
	order, err := e.write(ctx, store, action, id, domain.StatusRejected, domain.StatusExtra{CancellationReason: reason})
	if err != nil {
		return domain.Order{}, err
	}
	e.notify("rejection", order, e.sendRejection)
	return order, nil
}

func (e *Executor) write(ctx context.Context, store Store, action, id string, to domain.Status, extra domain.StatusExtra) (domain.Order, error) {
	order, err := store.SetOrderStatus(ctx, id, to, extra)
	if err != nil {
		e.transitions.WithLabelValues(action, "error").Inc()
		e.logger.Warn("order transition failed",
			logx.String("action", action),
			logx.OrderID(id),
			logx.Err(err),
		)
		return domain.Order{}, fmt.Errorf("%s order %s: %w", action, id, err)
	}

	e.transitions.WithLabelValues(action, "ok").Inc()
	e.logger.Info("order transitioned",
		logx.String("action", action),
		logx.OrderID(id),
		logx.String("status", string(order.CurrentStatus())),
	)
	return order, nil
}

func (e *Executor) sendConfirmation(ctx context.Context, o domain.Order) error {
	return e.notifier.SendConfirmation(ctx, o)
}

func (e *Executor) sendRejection(ctx context.Context, o domain.Order) error {
	return e.notifier.SendRejection(ctx, o)
}

// notify runs send detached from the caller. Its outcome is only logged.
func (e *Executor) notify(kind string, order domain.Order, send func(context.Context, domain.Order) error) {
	if e.notifier == nil {
		return
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		log := e.logger.With(logx.String("notification", kind), logx.OrderID(order.ID))
		defer func() {
			if r := recover(); r != nil {
				e.notifyFailures.WithLabelValues(kind).Inc()
				log.Error("notification panicked", logx.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.NotifyTimeout)
		defer cancel()
		if err := send(ctx, order); err != nil {
			e.notifyFailures.WithLabelValues(kind).Inc()
			log.Warn("notification failed", logx.Err(err))
			return
		}
		log.Debug("notification sent")
	}()
}

func validateOrderID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", &ValidationError{Field: "order_id", Reason: "is required"}
	}
	return id, nil
}
