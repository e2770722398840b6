package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-orders/internal/engine"
	"restaurant-orders/internal/logx"
)

type restaurantsResponse struct {
	Restaurants []string `json:"restaurants"`
}

type ordersResponse struct {
	RestaurantID string             `json:"restaurant_id"`
	Orders       []engine.OrderView `json:"orders"`
}

// EngineHandler starts and stops restaurant engines and serves their order views.
type EngineHandler struct {
	engines engineRegistry
	logger  logx.Logger
}

// NewEngineHandler creates a new EngineHandler.
func NewEngineHandler(logger logx.Logger, engines engineRegistry) *EngineHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &EngineHandler{engines: engines, logger: logger}
}

// List handles GET /restaurants.
func (h *EngineHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.logger, w, r, http.StatusOK, restaurantsResponse{Restaurants: h.engines.Restaurants()})
}

// Start handles POST /restaurants/{restaurantID}/engine.
func (h *EngineHandler) Start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "restaurantID")
	if err := h.engines.StartEngine(r.Context(), id); err != nil {
		writeAppError(h.logger, w, r, err, "restaurant not found")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Stop handles DELETE /restaurants/{restaurantID}/engine.
func (h *EngineHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.engines.StopEngine(chi.URLParam(r, "restaurantID")); err != nil {
		writeAppError(h.logger, w, r, err, "engine not running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Orders handles GET /restaurants/{restaurantID}/orders.
func (h *EngineHandler) Orders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "restaurantID")
	views, err := h.engines.Views(id)
	if err != nil {
		writeAppError(h.logger, w, r, err, "engine not running")
		return
	}
	if views == nil {
		views = []engine.OrderView{}
	}
	writeJSON(h.logger, w, r, http.StatusOK, ordersResponse{RestaurantID: id, Orders: views})
}

// Order handles GET /restaurants/{restaurantID}/orders/{orderID}.
func (h *EngineHandler) Order(w http.ResponseWriter, r *http.Request) {
	v, err := h.engines.View(chi.URLParam(r, "restaurantID"), chi.URLParam(r, "orderID"))
	if err != nil {
		writeAppError(h.logger, w, r, err, "order not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, v)
}
