package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/asgard/aegis/internal/observability"
)

// HealthCheck reports whether the fusion loop has produced a tick
// recently enough to be considered alive.
type HealthCheck func() (healthy bool, lastTickAt time.Time)

// NewRouter builds the optional HTTP surface: /healthz, /metrics, and
// /tracks/stream, wiring chi + cors + middleware the way comparable
// routers in this codebase do.
func NewRouter(broadcaster *Broadcaster, health HealthCheck) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		healthy, lastTick := true, time.Time{}
		if health != nil {
			healthy, lastTick = health()
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"healthy":      healthy,
			"last_tick_at": lastTick,
		})
	})

	r.Handle("/metrics", observability.Handler())

	r.Get("/tracks/stream", broadcaster.HandleWebSocket)

	return r
}
