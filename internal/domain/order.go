package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AutoCancelGrace is how long an ASAP order may stay pending before it is cancelled automatically.
const AutoCancelGrace = 3 * time.Minute

// AutoCancelReason is the cancellation reason written when the grace window runs out.
const AutoCancelReason = "expired: no response within grace window"

type (
	// PickupOption tells whether the customer wants the order as soon as possible or at a scheduled time.
	PickupOption string
)

// List of pickup options
const (
	PickupASAP      PickupOption = "asap"
	PickupScheduled PickupOption = "scheduled"
)

// OrderItem is a single line of an order. The engine never interprets it.
type OrderItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order represents one customer order as stored for a restaurant.
type Order struct {
	ID                  string
	RestaurantID        string
	Status              Status
	PickupOption        PickupOption
	CreatedAt           time.Time
	UpdatedAt           time.Time
	AcceptedAt          *time.Time
	AutoCancelAt        *time.Time
	EstimatedPickupTime string
	CancellationReason  string

	CustomerName  string
	CustomerEmail string
	Items         []OrderItem
	Total         decimal.Decimal
}

// StatusExtra carries the optional fields written together with a status change.
type StatusExtra struct {
	EstimatedPickupTime string
	CancellationReason  string
}

// CurrentStatus returns the persisted status, treating an empty value as pending.
func (o Order) CurrentStatus() Status {
	return o.Status.Normalize()
}

// AwaitsAutoCancel reports whether the auto-cancel deadline is operative for the order.
func (o Order) AwaitsAutoCancel() bool {
	return o.CurrentStatus() == StatusPending && o.PickupOption == PickupASAP
}

// AutoCancelDeadline returns the absolute auto-cancel deadline: AutoCancelAt when present,
// otherwise CreatedAt plus grace.
func (o Order) AutoCancelDeadline(grace time.Duration) time.Time {
	if o.AutoCancelAt != nil && !o.AutoCancelAt.IsZero() {
		return *o.AutoCancelAt
	}
	return o.CreatedAt.Add(grace)
}

// AcceptedTime returns the moment the order was accepted.
// Rows written before accepted_at existed fall back to UpdatedAt, then CreatedAt.
func (o Order) AcceptedTime() time.Time {
	if o.AcceptedAt != nil && !o.AcceptedAt.IsZero() {
		return *o.AcceptedAt
	}
	if !o.UpdatedAt.IsZero() {
		return o.UpdatedAt
	}
	return o.CreatedAt
}

// PreparationDeadline returns the estimated ready time of an accepted order.
// ok is false when the order is not accepted or carries no usable estimate.
func (o Order) PreparationDeadline() (deadline time.Time, ok bool) {
	if o.CurrentStatus() != StatusAccepted {
		return time.Time{}, false
	}
	minutes, ok := ParsePickupMinutes(o.EstimatedPickupTime)
	if !ok {
		return time.Time{}, false
	}
	return o.AcceptedTime().Add(time.Duration(minutes) * time.Minute), true
}

// ParsePickupMinutes extracts the first run of digits from a free-text estimate
// such as "25 minutes" or "ca. 20 min".
func ParsePickupMinutes(s string) (int, bool) {
	n, found := 0, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			found = true
			if n > 100000 {
				return 0, false
			}
			n = n*10 + int(c-'0')
			continue
		}
		if found {
			break
		}
	}
	if !found || n <= 0 {
		return 0, false
	}
	return n, true
}
