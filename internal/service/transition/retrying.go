package transition

import (
	"context"
	"errors"
	"time"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logx"
)

// RetryConfig describes how transient store failures are retried.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// timeoutStore bounds every SetOrderStatus call by its own deadline.
type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (s timeoutStore) SetOrderStatus(ctx context.Context, orderID string, to domain.Status, extra domain.StatusExtra) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.SetOrderStatus(ctx, orderID, to, extra)
}

// retryingStore retries SetOrderStatus on transient errors with capped exponential backoff.
type retryingStore struct {
	next    Store
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

func newRetryingStore(next Store, logger logx.Logger, retries counter, cfg RetryConfig) *retryingStore {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &retryingStore{next: next, logger: logger, retries: retries, cfg: cfg}
}

func (s *retryingStore) SetOrderStatus(ctx context.Context, orderID string, to domain.Status, extra domain.StatusExtra) (domain.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		order, err := s.next.SetOrderStatus(ctx, orderID, to, extra)
		if err == nil {
			return order, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == s.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(s.cfg.BaseDelay, s.cfg.MaxDelay, attempt)
		s.retries.Inc()
		s.logger.Warn("order store retry",
			logx.OrderID(orderID),
			logx.String("status", string(to)),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return domain.Order{}, lastErr
}

// isRetryable reports whether err may go away on its own.
func isRetryable(err error) bool {
	if apperr.IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// backoff doubles base per attempt, capped at ceiling.
func backoff(base, ceiling time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
