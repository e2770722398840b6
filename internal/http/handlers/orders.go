package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logx"
)

type acceptRequest struct {
	EstimatedPickupTime string `json:"estimated_pickup_time"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID                  string                    `json:"id"`
	RestaurantID        string                    `json:"restaurant_id"`
	Status              domain.Status             `json:"status"`
	PresentationStatus  domain.PresentationStatus `json:"presentation_status"`
	EstimatedPickupTime string                    `json:"estimated_pickup_time,omitempty"`
	CancellationReason  string                    `json:"cancellation_reason,omitempty"`
	AcceptedAt          *time.Time                `json:"accepted_at,omitempty"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

func orderToResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:                  o.ID,
		RestaurantID:        o.RestaurantID,
		Status:              o.CurrentStatus(),
		PresentationStatus:  domain.ToPresentation(o.CurrentStatus()),
		EstimatedPickupTime: o.EstimatedPickupTime,
		CancellationReason:  o.CancellationReason,
		AcceptedAt:          o.AcceptedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

// OrderHandler exposes manual order transitions.
// Replies carry the written order; the engine views follow once the feed reports it.
type OrderHandler struct {
	usecase transitionUsecase
	logger  logx.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(logger logx.Logger, uc transitionUsecase) *OrderHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &OrderHandler{usecase: uc, logger: logger}
}

// Accept handles POST /orders/{orderID}/accept.
func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if ok := decodeJSON(h.logger, w, r, &req, true); !ok {
		return
	}

	order, err := h.usecase.Accept(r.Context(), chi.URLParam(r, "orderID"), req.EstimatedPickupTime)
	if err != nil {
		writeAppError(h.logger, w, r, err, "order not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, orderToResponse(order))
}

// Reject handles POST /orders/{orderID}/reject.
func (h *OrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if ok := decodeJSON(h.logger, w, r, &req, false); !ok {
		return
	}

	order, err := h.usecase.Reject(r.Context(), chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeAppError(h.logger, w, r, err, "order not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, orderToResponse(order))
}

// Complete handles POST /orders/{orderID}/complete.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	order, err := h.usecase.Complete(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeAppError(h.logger, w, r, err, "order not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, orderToResponse(order))
}
