package feed

import (
	"context"
	"strings"
	"sync"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logx"
)

// Hub materialises a push stream of order records into per-restaurant order sets
// and fans every change out to the subscriptions of that restaurant.
type Hub struct {
	logger logx.Logger

	mu    sync.Mutex
	views map[string]map[string]domain.Order
	subs  map[string]map[*mailbox]struct{}
}

// NewHub creates an empty Hub.
func NewHub(logger logx.Logger) *Hub {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Hub{
		logger: logger,
		views:  make(map[string]map[string]domain.Order),
		subs:   make(map[string]map[*mailbox]struct{}),
	}
}

// Apply folds one record into the restaurant's order set and notifies its subscribers.
func (h *Hub) Apply(_ context.Context, rec Record) error {
	order, err := rec.ToDomain()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	view, ok := h.views[order.RestaurantID]
	if !ok {
		view = make(map[string]domain.Order)
		h.views[order.RestaurantID] = view
	}
	if rec.Deleted {
		delete(view, order.ID)
	} else {
		view[order.ID] = order
	}

	subs := h.subs[order.RestaurantID]
	if len(subs) == 0 {
		return nil
	}
	snapshot := h.snapshotLocked(order.RestaurantID)
	for mb := range subs {
		mb.putSnapshot(snapshot)
	}
	return nil
}

// Fail reports a transport error to every subscriber. Order sets are kept as they are.
func (h *Hub) Fail(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.subs {
		for mb := range subs {
			mb.putErr(err)
		}
	}
}

// Subscribe implements Subscriber. The first update carries the order set known so far.
func (h *Hub) Subscribe(ctx context.Context, restaurantID string) (*Subscription, error) {
	restaurantID = strings.TrimSpace(restaurantID)
	if restaurantID == "" {
		return nil, apperr.ErrInvalid
	}

	mb := newMailbox()
	h.mu.Lock()
	if h.subs[restaurantID] == nil {
		h.subs[restaurantID] = make(map[*mailbox]struct{})
	}
	h.subs[restaurantID][mb] = struct{}{}
	mb.putSnapshot(h.snapshotLocked(restaurantID))
	h.mu.Unlock()

	return NewSubscription(ctx, restaurantID, func(ctx context.Context, emit func(Update) bool) {
		defer h.remove(restaurantID, mb)
		for {
			select {
			case <-ctx.Done():
				return
			case <-mb.signal:
			}
			for _, u := range mb.drain() {
				if !emit(u) {
					return
				}
			}
		}
	}), nil
}

// Subscribers returns the number of open subscriptions for a restaurant.
func (h *Hub) Subscribers(restaurantID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[restaurantID])
}

func (h *Hub) remove(restaurantID string, mb *mailbox) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[restaurantID], mb)
	if len(h.subs[restaurantID]) == 0 {
		delete(h.subs, restaurantID)
	}
}

func (h *Hub) snapshotLocked(restaurantID string) []domain.Order {
	view := h.views[restaurantID]
	out := make([]domain.Order, 0, len(view))
	for _, o := range view {
		out = append(out, o)
	}
	return normalize(out)
}

// mailbox holds what a subscriber has not consumed yet. Snapshots are full order sets,
// so a newer one replaces an unread older one; a pending error is delivered before it.
type mailbox struct {
	mu     sync.Mutex
	snap   []domain.Order
	hasSet bool
	err    error
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) putSnapshot(orders []domain.Order) {
	m.mu.Lock()
	m.snap, m.hasSet = orders, true
	m.mu.Unlock()
	m.notify()
}

func (m *mailbox) putErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.notify()
}

func (m *mailbox) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Update
	if m.err != nil {
		out = append(out, Update{Err: m.err})
		m.err = nil
	}
	if m.hasSet {
		out = append(out, Update{Orders: m.snap})
		m.snap, m.hasSet = nil, false
	}
	return out
}
