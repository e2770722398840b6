package handlers

import (
	"context"

	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/engine"
)

type transitionUsecase interface {
	Accept(ctx context.Context, orderID, estimate string) (domain.Order, error)
	Reject(ctx context.Context, orderID, reason string) (domain.Order, error)
	Complete(ctx context.Context, orderID string) (domain.Order, error)
}

type engineRegistry interface {
	StartEngine(ctx context.Context, restaurantID string) error
	StopEngine(restaurantID string) error
	Restaurants() []string
	Views(restaurantID string) ([]engine.OrderView, error)
	View(restaurantID, orderID string) (engine.OrderView, error)
}
