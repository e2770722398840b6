package feed

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
)

// Record is an order change as published on the order stream.
// Deleted marks a tombstone: the order left the restaurant's order set.
type Record struct {
	ID                  string             `json:"id"`
	RestaurantID        string             `json:"restaurant_id"`
	Status              string             `json:"status"`
	PickupOption        string             `json:"pickup_option"`
	CreatedAt           Timestamp          `json:"created_at"`
	UpdatedAt           Timestamp          `json:"updated_at"`
	AcceptedAt          *Timestamp         `json:"accepted_at,omitempty"`
	AutoCancelAt        *Timestamp         `json:"auto_cancel_at,omitempty"`
	EstimatedPickupTime string             `json:"estimated_pickup_time,omitempty"`
	CancellationReason  string             `json:"cancellation_reason,omitempty"`
	CustomerName        string             `json:"customer_name,omitempty"`
	CustomerEmail       string             `json:"customer_email,omitempty"`
	Items               []domain.OrderItem `json:"items,omitempty"`
	Total               decimal.Decimal    `json:"total"`
	Deleted             bool               `json:"deleted,omitempty"`
}

// ToDomain validates the record and converts it into an order.
func (r Record) ToDomain() (domain.Order, error) {
	id := strings.TrimSpace(r.ID)
	restaurantID := strings.TrimSpace(r.RestaurantID)
	if id == "" || restaurantID == "" {
		return domain.Order{}, fmt.Errorf("record without id or restaurant_id: %w", apperr.ErrInvalid)
	}
	status := domain.Status(r.Status).Normalize()
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("record %s: unknown status %q: %w", id, r.Status, apperr.ErrInvalid)
	}

	o := domain.Order{
		ID:                  id,
		RestaurantID:        restaurantID,
		Status:              status,
		PickupOption:        domain.PickupOption(strings.ToLower(strings.TrimSpace(r.PickupOption))),
		CreatedAt:           r.CreatedAt.Time,
		UpdatedAt:           r.UpdatedAt.Time,
		EstimatedPickupTime: r.EstimatedPickupTime,
		CancellationReason:  r.CancellationReason,
		CustomerName:        r.CustomerName,
		CustomerEmail:       r.CustomerEmail,
		Items:               r.Items,
		Total:               r.Total,
	}
	if r.AcceptedAt != nil && !r.AcceptedAt.IsZero() {
		t := r.AcceptedAt.Time
		o.AcceptedAt = &t
	}
	if r.AutoCancelAt != nil && !r.AutoCancelAt.IsZero() {
		t := r.AutoCancelAt.Time
		o.AutoCancelAt = &t
	}
	return o, nil
}

// RecordFromOrder encodes an order as a stream record.
func RecordFromOrder(o domain.Order) Record {
	r := Record{
		ID:                  o.ID,
		RestaurantID:        o.RestaurantID,
		Status:              string(o.CurrentStatus()),
		PickupOption:        string(o.PickupOption),
		CreatedAt:           Timestamp{Time: o.CreatedAt.UTC()},
		UpdatedAt:           Timestamp{Time: o.UpdatedAt.UTC()},
		EstimatedPickupTime: o.EstimatedPickupTime,
		CancellationReason:  o.CancellationReason,
		CustomerName:        o.CustomerName,
		CustomerEmail:       o.CustomerEmail,
		Items:               o.Items,
		Total:               o.Total,
	}
	if o.AcceptedAt != nil {
		r.AcceptedAt = &Timestamp{Time: o.AcceptedAt.UTC()}
	}
	if o.AutoCancelAt != nil {
		r.AutoCancelAt = &Timestamp{Time: o.AutoCancelAt.UTC()}
	}
	return r
}
