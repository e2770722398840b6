package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"restaurant-orders/internal/http/handlers"
	mw "restaurant-orders/internal/http/middleware"
	"restaurant-orders/internal/logx"
)

// Deps are the handlers and collaborators the router mounts.
type Deps struct {
	Logger   logx.Logger
	Metrics  *mw.Metrics
	Gatherer prometheus.Gatherer

	Base    *handlers.Handlers
	Orders  *handlers.OrderHandler
	Engines *handlers.EngineHandler
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Observability(d.Logger, d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/restaurants", func(r chi.Router) {
		r.Get("/", d.Engines.List)
		r.Route("/{restaurantID}", func(r chi.Router) {
			r.Post("/engine", d.Engines.Start)
			r.Delete("/engine", d.Engines.Stop)
			r.Get("/orders", d.Engines.Orders)
			r.Get("/orders/{orderID}", d.Engines.Order)
		})
	})

	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Post("/accept", d.Orders.Accept)
		r.Post("/reject", d.Orders.Reject)
		r.Post("/complete", d.Orders.Complete)
	})

	r.NotFound(http.HandlerFunc(d.Base.NotFound))
	r.MethodNotAllowed(http.HandlerFunc(d.Base.MethodNotAllowed))

	return r
}
