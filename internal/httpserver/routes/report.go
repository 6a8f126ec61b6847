package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/mw"
)

func init() { Register("report", registerReport) }

func registerReport(r chi.Router, d deps.Deps) {
	r.With(middleware.Timeout(d.RequestTimeout)).Get("/api/report", handlers.Report(d))
	r.With(middleware.Timeout(d.RequestTimeout)).Post("/api/servers", handlers.Register(d))
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger)).Post("/api/cycle", handlers.Cycle(d))
}
