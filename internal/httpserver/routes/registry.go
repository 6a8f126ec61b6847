package routes

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type group struct {
	name string
	reg  Registrar
	mws  []Middleware
}

var registry []group

// Register adds a named route group, optionally wrapped in middlewares that
// apply to every route of the group. Called from init().
func Register(name string, reg Registrar, mws ...Middleware) {
	registry = append(registry, group{name: name, reg: reg, mws: mws})
}

// Groups lists the registered group names in mount order.
func Groups() []string {
	names := make([]string, 0, len(registry))
	for _, g := range sorted() {
		names = append(names, g.name)
	}
	return names
}

// RegisterAll mounts every group, by name, onto r.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range sorted() {
		target := r
		if len(g.mws) > 0 {
			target = r.With(g.mws...)
		}
		g.reg(target, d)
		d.Logger.Debug("routes mounted", logger.String("group", g.name))
	}
}

func sorted() []group {
	out := append([]group(nil), registry...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
