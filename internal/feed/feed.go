// Package feed adapts order stores and change streams into live, per-restaurant
// order snapshots.
package feed

import (
	"context"
	"sort"
	"sync"

	"restaurant-orders/internal/domain"
)

// Update is one emission of a subscription: either the full current order set of the
// restaurant, newest first, or a transport error.
type Update struct {
	Orders []domain.Order
	Err    error
}

// Subscriber opens live order subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, restaurantID string) (*Subscription, error)
}

// RunFunc produces updates until ctx is done. emit returns false once the subscription is closed.
type RunFunc func(ctx context.Context, emit func(Update) bool)

// Subscription is a live stream of order snapshots for one restaurant.
type Subscription struct {
	restaurantID string
	updates      chan Update
	cancel       context.CancelFunc
	done         chan struct{}
	once         sync.Once
}

// NewSubscription starts run in its own goroutine and exposes what it emits.
func NewSubscription(ctx context.Context, restaurantID string, run RunFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		restaurantID: restaurantID,
		updates:      make(chan Update),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.updates)
		run(ctx, func(u Update) bool {
			select {
			case s.updates <- u:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return s
}

// RestaurantID returns the restaurant the subscription follows.
func (s *Subscription) RestaurantID() string { return s.restaurantID }

// Updates returns the update stream. It is closed after Unsubscribe.
func (s *Subscription) Updates() <-chan Update { return s.updates }

// Unsubscribe releases the subscription and waits for its producer to exit. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// SortNewestFirst orders by CreatedAt descending; equal timestamps fall back to ID descending.
func SortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func normalize(orders []domain.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i, o := range orders {
		o.CreatedAt = o.CreatedAt.UTC()
		o.UpdatedAt = o.UpdatedAt.UTC()
		if o.AcceptedAt != nil {
			t := o.AcceptedAt.UTC()
			o.AcceptedAt = &t
		}
		if o.AutoCancelAt != nil {
			t := o.AutoCancelAt.UTC()
			o.AutoCancelAt = &t
		}
		o.Status = o.Status.Normalize()
		out[i] = o
	}
	SortNewestFirst(out)
	return out
}
