package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Raks-kmt/kaishou/internal/api/handler"
	mw "github.com/Raks-kmt/kaishou/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured. statsKey,
// when non-empty, locks the stats route behind an API key.
func NewRouter(healthHandler *handler.HealthHandler, statsKey string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //health -> /health)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", healthHandler.Identity)
	r.Get("/health", healthHandler.Live)
	r.With(mw.APIKeyAuth(statsKey)).Get("/stats", healthHandler.Stats)

	return r
}
