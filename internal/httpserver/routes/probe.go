package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/mw"
)

func init() { Register("probe", registerProbe) }

// detect and generate reach out to arbitrary hosts, so they share one
// per-IP budget and get the long deadline.
func registerProbe(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimitBurst,
		RefillPerIPPerMin: d.RateLimitPerMinute,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
		Logger:            d.Logger,
	})

	probe := r.With(limit, middleware.Timeout(d.ProbeTimeout))
	probe.Post("/api/detect", handlers.Detect(d))
	probe.Post("/api/generate", handlers.Generate(d))
}
