// Package rest assembles the HTTP surface: auth and map endpoints, the
// WebSocket upgrade path, health probes and metrics.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mindlink-backend/infrastructure/di"
	"mindlink-backend/interfaces/http/rest/handlers"
	"mindlink-backend/interfaces/http/rest/middleware"
	"mindlink-backend/interfaces/ws"
	"mindlink-backend/pkg/common"
)

// Router builds the HTTP handler tree from the wired container.
type Router struct {
	container *di.Container
	hub       *ws.Hub
}

// NewRouter creates a Router.
func NewRouter(container *di.Container, hub *ws.Hub) *Router {
	return &Router{container: container, hub: hub}
}

// Setup returns the fully assembled handler.
func (rt *Router) Setup() http.Handler {
	cfg := rt.container.Config
	logger := rt.container.Logger

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger))

	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	authHandler := handlers.NewAuthHandler(rt.container.AuthService, logger)
	mapHandler := handlers.NewMapHandler(rt.container.MapService, logger)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	r.Route("/api/maps", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.container.Tokens, rt.container.RateLimiter, logger))
		r.Get("/", mapHandler.List)
		r.Post("/", mapHandler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", mapHandler.Get)
			r.Put("/", mapHandler.Update)
			r.Delete("/", mapHandler.Delete)
			r.Post("/invite", mapHandler.Invite)
		})
	})

	// The realtime channel skips the auth middleware; room access is
	// granted by knowing the map id.
	r.Get("/ws", rt.hub.ServeWS)

	return r
}
