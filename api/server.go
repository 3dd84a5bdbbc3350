/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a budgeting frontend

ROUTE GROUPS:
  /api/rules/*          Rule management
  /api/envelopes        Envelopes
  /api/budget/*         Budget snapshot and cash
  /api/income           Income detection
  /api/plans/*          Preview, apply, run
  /api/transfers        Applied transfer ledger
  /api/runs/*           Scheduled runs
  /api/scenarios/*      Demo scenarios
  /api/reset            Store reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultCORSOrigins is used when no origins are configured.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Post("/validate", h.ValidateRule)
			r.Get("/{id}", h.GetRule)
			r.Put("/{id}", h.UpdateRule)
			r.Delete("/{id}", h.DeleteRule)
		})

		r.Route("/envelopes", func(r chi.Router) {
			r.Get("/", h.ListEnvelopes)
			r.Post("/", h.SaveEnvelope)
		})

		r.Route("/budget", func(r chi.Router) {
			r.Get("/", h.GetBudget)
			r.Post("/cash", h.SetCash)
		})

		r.Post("/income", h.RecordIncome)

		r.Route("/plans", func(r chi.Router) {
			r.Post("/preview", h.PreviewPlan)
			r.Post("/apply", h.ApplyPlan)
			r.Post("/run", h.RunPlan)
		})

		r.Get("/transfers", h.ListTransfers)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/check", h.CheckRuns)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Auto-Funding Rule Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Auto-Funding Rule Engine API</h1>
<ul>
<li><a href="/api/rules">/api/rules</a> - Funding rules</li>
<li><a href="/api/budget">/api/budget</a> - Unassigned cash and envelopes</li>
<li><a href="/api/transfers">/api/transfers</a> - Applied transfers</li>
<li><a href="/api/runs">/api/runs</a> - Scheduled runs</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
