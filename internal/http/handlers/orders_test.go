package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
)

type stubTransitions struct {
	acceptFn   func(ctx context.Context, orderID, estimate string) (domain.Order, error)
	rejectFn   func(ctx context.Context, orderID, reason string) (domain.Order, error)
	completeFn func(ctx context.Context, orderID string) (domain.Order, error)
}

func (s *stubTransitions) Accept(ctx context.Context, orderID, estimate string) (domain.Order, error) {
	if s.acceptFn == nil {
		panic("Accept not expected in this test")
	}
	return s.acceptFn(ctx, orderID, estimate)
}

func (s *stubTransitions) Reject(ctx context.Context, orderID, reason string) (domain.Order, error) {
	if s.rejectFn == nil {
		panic("Reject not expected in this test")
	}
	return s.rejectFn(ctx, orderID, reason)
}

func (s *stubTransitions) Complete(ctx context.Context, orderID string) (domain.Order, error) {
	if s.completeFn == nil {
		panic("Complete not expected in this test")
	}
	return s.completeFn(ctx, orderID)
}

func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestOrderHandler_Accept_OK(t *testing.T) {
	t.Parallel()

	accepted := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	uc := &stubTransitions{
		acceptFn: func(_ context.Context, orderID, estimate string) (domain.Order, error) {
			require.Equal(t, "o-1", orderID)
			require.Equal(t, "20 min", estimate)
			return domain.Order{
				ID:                  orderID,
				RestaurantID:        "r-1",
				Status:              domain.StatusAccepted,
				EstimatedPickupTime: estimate,
				AcceptedAt:          &accepted,
				UpdatedAt:           accepted,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/o-1/accept", strings.NewReader(`{"estimated_pickup_time":"20 min"}`))
	rr := httptest.NewRecorder()
	NewOrderHandler(nil, uc).Accept(rr, withParams(req, "orderID", "o-1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"id": "o-1",
		"restaurant_id": "r-1",
		"status": "accepted",
		"presentation_status": "confirmed",
		"estimated_pickup_time": "20 min",
		"accepted_at": "2025-03-01T12:05:00Z",
		"updated_at": "2025-03-01T12:05:00Z"
	}`, rr.Body.String())
}

func TestOrderHandler_Accept_EmptyBodyMeansNoEstimate(t *testing.T) {
	t.Parallel()

	uc := &stubTransitions{
		acceptFn: func(_ context.Context, orderID, estimate string) (domain.Order, error) {
			require.Empty(t, estimate)
			return domain.Order{ID: orderID, Status: domain.StatusAccepted}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/o-1/accept", http.NoBody)
	rr := httptest.NewRecorder()
	NewOrderHandler(nil, uc).Accept(rr, withParams(req, "orderID", "o-1"))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOrderHandler_Reject_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		err  error
		code int
	}{
		{name: "bad json", body: `{"reason":`, code: http.StatusBadRequest},
		{name: "unknown field", body: `{"why":"x"}`, code: http.StatusBadRequest},
		{name: "validation", body: `{"reason":""}`, err: fmt.Errorf("reason: %w", apperr.ErrInvalid), code: http.StatusBadRequest},
		{name: "not found", body: `{"reason":"closed"}`, err: apperr.ErrNotFound, code: http.StatusNotFound},
		{name: "illegal transition", body: `{"reason":"closed"}`, err: apperr.ErrConflict, code: http.StatusConflict},
		{name: "store down", body: `{"reason":"closed"}`, err: apperr.ErrUnavailable, code: http.StatusServiceUnavailable},
		{name: "unexpected", body: `{"reason":"closed"}`, err: errors.New("boom"), code: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			uc := &stubTransitions{
				rejectFn: func(context.Context, string, string) (domain.Order, error) {
					return domain.Order{}, tc.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/orders/o-1/reject", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			NewOrderHandler(nil, uc).Reject(rr, withParams(req, "orderID", "o-1"))

			assert.Equal(t, tc.code, rr.Code)
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}
}

func TestOrderHandler_Reject_RequiresBody(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/orders/o-1/reject", http.NoBody)
	rr := httptest.NewRecorder()
	NewOrderHandler(nil, &stubTransitions{}).Reject(rr, withParams(req, "orderID", "o-1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHandler_Complete(t *testing.T) {
	t.Parallel()

	uc := &stubTransitions{
		completeFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.StatusCompleted}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/orders/o-1/complete", nil)
	rr := httptest.NewRecorder()
	NewOrderHandler(nil, uc).Complete(rr, withParams(req, "orderID", "o-1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"presentation_status":"completed"`)
}
