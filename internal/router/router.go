package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/terminal/internal/app"
	"github.com/kiwari-pos/terminal/internal/config"
	"github.com/kiwari-pos/terminal/internal/handler"
	mw "github.com/kiwari-pos/terminal/internal/middleware"
	"github.com/kiwari-pos/terminal/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the pieces the local API serves.
type Dependencies struct {
	Core     *app.Components
	Hub      *ws.Hub
	Recovery handler.RecoveryReporter

	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

// New creates a Chi router with all terminal routes wired up.
// Everything except /health and /metrics requires an operator token.
func New(cfg *config.Config, deps Dependencies) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.Instrument(deps.Core.Metrics, deps.Core.Logger.WithField("component", "http")))
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// WebSocket route; browsers pass the token as ?token=
		r.Get("/ws/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWS(deps.Hub, w, r)
		})

		orderHandler := handler.NewOrderHandler(deps.Core.Orders, deps.Core.Snapshots, deps.Core.Logger.WithField("component", "http"))
		r.Route("/orders", orderHandler.RegisterRoutes)

		terminalHandler := handler.NewTerminalHandler(deps.Core.Gate, deps.Recovery)
		terminalHandler.RegisterRoutes(r, mw.RequireRole("OWNER", "MANAGER"))
	})

	return r
}
