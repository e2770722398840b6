// Package notify delivers customer notifications about order decisions.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logx"
)

// Kind is the type of a notification.
type Kind string

// List of notification kinds
const (
	KindConfirmation Kind = "order.confirmed"
	KindRejection    Kind = "order.rejected"
)

// Item is an order line in a notification.
type Item struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Message is the payload published for the mailer.
type Message struct {
	ID                  string          `json:"id"`
	Kind                Kind            `json:"kind"`
	OrderID             string          `json:"order_id"`
	RestaurantID        string          `json:"restaurant_id"`
	CustomerName        string          `json:"customer_name,omitempty"`
	CustomerEmail       string          `json:"customer_email"`
	EstimatedPickupTime string          `json:"estimated_pickup_time,omitempty"`
	CancellationReason  string          `json:"cancellation_reason,omitempty"`
	Items               []Item          `json:"items,omitempty"`
	Total               decimal.Decimal `json:"total"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Publisher sends an encoded message to an exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, msg Message, body []byte) error
}

// Notifier turns order decisions into messages on a RabbitMQ exchange.
type Notifier struct {
	pub      Publisher
	exchange string
	logger   logx.Logger
	newID    func() string
	now      func() time.Time
}

// NewNotifier creates a Notifier publishing to exchange.
func NewNotifier(pub Publisher, exchange string, logger logx.Logger) *Notifier {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Notifier{
		pub:      pub,
		exchange: exchange,
		logger:   logger,
		newID:    func() string { return uuid.NewString() },
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SendConfirmation tells the customer the order was accepted.
func (n *Notifier) SendConfirmation(ctx context.Context, order domain.Order) error {
	return n.send(ctx, KindConfirmation, order)
}

// SendRejection tells the customer the order was rejected or expired.
func (n *Notifier) SendRejection(ctx context.Context, order domain.Order) error {
	return n.send(ctx, KindRejection, order)
}

func (n *Notifier) send(ctx context.Context, kind Kind, order domain.Order) error {
	msg, err := n.build(kind, order)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := n.pub.Publish(ctx, n.exchange, string(kind), msg, body); err != nil {
		return err
	}
	n.logger.Debug("notification published",
		logx.String("kind", string(kind)),
		logx.String("message_id", msg.ID),
		logx.OrderID(order.ID),
	)
	return nil
}

func (n *Notifier) build(kind Kind, order domain.Order) (Message, error) {
	email := strings.TrimSpace(order.CustomerEmail)
	if email == "" {
		return Message{}, fmt.Errorf("order %s has no customer email: %w", order.ID, apperr.ErrInvalid)
	}
	items := make([]Item, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, Item{Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}
	msg := Message{
		ID:            n.newID(),
		Kind:          kind,
		OrderID:       order.ID,
		RestaurantID:  order.RestaurantID,
		CustomerName:  order.CustomerName,
		CustomerEmail: email,
		Items:         items,
		Total:         order.Total,
		CreatedAt:     n.now(),
	}
	switch kind {
	case KindConfirmation:
		msg.EstimatedPickupTime = order.EstimatedPickupTime
	case KindRejection:
		msg.CancellationReason = order.CancellationReason
	}
	return msg, nil
}

// LogNotifier only logs notifications. It is used when no broker is configured.
type LogNotifier struct {
	logger logx.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger logx.Logger) *LogNotifier {
	if logger == nil {
		logger = logx.Nop()
	}
	return &LogNotifier{logger: logger}
}

// SendConfirmation logs the confirmation.
func (l *LogNotifier) SendConfirmation(_ context.Context, order domain.Order) error {
	l.logger.Info("confirmation not delivered: no broker configured", logx.OrderID(order.ID))
	return nil
}

// SendRejection logs the rejection.
func (l *LogNotifier) SendRejection(_ context.Context, order domain.Order) error {
	l.logger.Info("rejection not delivered: no broker configured",
		logx.OrderID(order.ID),
		logx.String("reason", order.CancellationReason),
	)
	return nil
}
