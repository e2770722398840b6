//go:generate mockgen -source=contracts.go -destination=transition_mocks_test.go -package=transition_test

package transition

import (
	"context"

	"restaurant-orders/internal/domain"
)

// Store persists status changes. It checks domain.CanTransition atomically with the write
// and returns apperr.ErrConflict for an illegal transition, apperr.ErrNotFound for an
// unknown order.
type Store interface {
	SetOrderStatus(ctx context.Context, orderID string, to domain.Status, extra domain.StatusExtra) (domain.Order, error)
}

// Notifier sends customer notifications after a transition.
type Notifier interface {
	SendConfirmation(ctx context.Context, order domain.Order) error
	SendRejection(ctx context.Context, order domain.Order) error
}
