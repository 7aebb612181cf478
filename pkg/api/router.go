// Package api assembles the HTTP surface.
package api

import (
	"net/http"
	"time"

	"finpulse/pkg/api/assessment"
	apiconfig "finpulse/pkg/api/config"
	"finpulse/pkg/api/render"
	"finpulse/pkg/api/sales"
	"finpulse/pkg/core/agent"
	"finpulse/pkg/core/pipeline"
	"finpulse/pkg/core/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Deps struct {
	Pipeline *pipeline.Orchestrator
	Store    store.HistoryStore
	// Agents is optional; the provider endpoints are only mounted with it.
	Agents *agent.Manager
	// Timeout caps every request, streams included. Zero means 2 minutes.
	Timeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		render.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	assessments := assessment.NewHandler(d.Pipeline, d.Store)
	ledger := sales.NewHandler(d.Store, d.Pipeline)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			assessments.Routes(r)
			ledger.Routes(r)
		})
		if d.Agents != nil {
			r.Route("/config", apiconfig.NewHandler(d.Agents).Routes)
		}
	})
	return r
}
