package feed

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logx"
)

// OrderLister reads the current order set of a restaurant.
type OrderLister interface {
	ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error)
}

// PollingSource turns periodic reads of the order store into a live feed.
// A snapshot is emitted on the first read and whenever the order set changes.
// A failed read is reported as an error update; the next scheduled read happens as usual.
type PollingSource struct {
	lister   OrderLister
	interval time.Duration
	logger   logx.Logger
}

// NewPollingSource creates a PollingSource.
func NewPollingSource(lister OrderLister, interval time.Duration, logger logx.Logger) *PollingSource {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &PollingSource{lister: lister, interval: interval, logger: logger}
}

// Subscribe implements Subscriber.
func (p *PollingSource) Subscribe(ctx context.Context, restaurantID string) (*Subscription, error) {
	restaurantID = strings.TrimSpace(restaurantID)
	if restaurantID == "" {
		return nil, apperr.ErrInvalid
	}
	return NewSubscription(ctx, restaurantID, func(ctx context.Context, emit func(Update) bool) {
		p.poll(ctx, restaurantID, emit)
	}), nil
}

func (p *PollingSource) poll(ctx context.Context, restaurantID string, emit func(Update) bool) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		last  []domain.Order
		dirty = true
	)
	for {
		orders, err := p.lister.ListByRestaurant(ctx, restaurantID)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			p.logger.Warn("order poll failed", logx.RestaurantID(restaurantID), logx.Err(err))
			if !emit(Update{Err: fmt.Errorf("poll orders of %s: %w", restaurantID, err)}) {
				return
			}
			dirty = true
		default:
			snapshot := normalize(orders)
			if dirty || !reflect.DeepEqual(snapshot, last) {
				if !emit(Update{Orders: snapshot}) {
					return
				}
				last, dirty = snapshot, false
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
