package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hookline/hookline/internal/engine"
	"github.com/hookline/hookline/internal/store"
	ws "github.com/hookline/hookline/internal/websocket"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(pgStore *store.PostgresStore, enqueuer *engine.Enqueuer, hub *ws.Hub, defaultMaxRetries, numWorkers int) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for dashboard
	r.Use(corsMiddleware)

	// Handlers
	epHandler := NewEndpointHandler(pgStore, defaultMaxRetries)
	eventHandler := NewEventHandler(pgStore, enqueuer)
	deliveryHandler := NewDeliveryHandler(pgStore)
	dlqHandler := NewDeadLetterHandler(pgStore)
	statsHandler := NewStatsHandler(pgStore, hub)
	healthHandler := NewHealthHandler(pgStore, hub, numWorkers)

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWebSocket)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)

		r.Route("/endpoints", func(r chi.Router) {
			r.Post("/", epHandler.Create)
			r.Get("/", epHandler.List)
			r.Get("/{id}", epHandler.Get)
			r.Patch("/{id}", epHandler.Update)
			r.Delete("/{id}", epHandler.Delete)
			r.Post("/{id}/enable", epHandler.Enable)
			r.Get("/{id}/health", epHandler.Health)
			r.Get("/{id}/stats", statsHandler.EndpointStats)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", eventHandler.Publish)
			r.Get("/", eventHandler.List)
			r.Get("/{id}", eventHandler.Get)
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", deliveryHandler.List)
			r.Get("/{id}", deliveryHandler.Get)
		})

		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", dlqHandler.List)
			r.Post("/{id}/requeue", dlqHandler.Requeue)
		})

		r.Get("/metrics", statsHandler.Overview)
	})

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
