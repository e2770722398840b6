package engine

import (
	"encoding/json"
	"time"

	"restaurant-orders/internal/domain"
)

// OrderView is the read-only state presented for one order, refreshed every tick.
type OrderView struct {
	OrderID              string
	Status               domain.Status
	PresentationStatus   domain.PresentationStatus
	RemainingAutoCancel  *time.Duration
	RemainingPreparation *time.Duration
}

type orderViewJSON struct {
	OrderID                string `json:"order_id"`
	Status                 string `json:"status"`
	PresentationStatus     string `json:"presentation_status"`
	RemainingAutoCancelMs  *int64 `json:"remaining_auto_cancel_ms,omitempty"`
	RemainingPreparationMs *int64 `json:"remaining_preparation_ms,omitempty"`
}

// MarshalJSON exposes remaining durations in milliseconds.
func (v OrderView) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderViewJSON{
		OrderID:                v.OrderID,
		Status:                 string(v.Status),
		PresentationStatus:     string(v.PresentationStatus),
		RemainingAutoCancelMs:  millis(v.RemainingAutoCancel),
		RemainingPreparationMs: millis(v.RemainingPreparation),
	})
}

func millis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func buildView(o domain.Order, timers *Orchestrator) OrderView {
	v := OrderView{
		OrderID:            o.ID,
		Status:             o.CurrentStatus(),
		PresentationStatus: domain.ToPresentation(o.CurrentStatus()),
	}
	if timers == nil {
		return v
	}
	if left, ok := timers.Remaining(TimerKey{OrderID: o.ID, Kind: KindAutoCancel}); ok {
		v.RemainingAutoCancel = &left
	}
	prep := TimerKey{OrderID: o.ID, Kind: KindPreparation}
	if left, ok := timers.Remaining(prep); ok {
		v.RemainingPreparation = &left
		if timers.Expired(prep) {
			v.PresentationStatus = domain.PresentationReady
		}
	}
	return v
}
