/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Logger:     Structured request log (zerolog)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Request duration histogram by route pattern
  5. CORS:       Cross-origin requests for the web UI

ROUTE GROUPS:
  /api/state, /api/history          Read views
  /api/paychecks, /api/purchases/*  Money in and out
  /api/balances, /api/debt/*        Manual corrections
  /api/settings/*, /api/pto/*,
  /api/bills/*, /api/caps/*         Rules and calendar
  /api/export, /api/import          Backup
  /metrics                          Prometheus scrape endpoint
  /health                           Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - metrics.go: Prometheus collectors
  - cmd/budgetd/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// DefaultAllowedOrigins are the local web UI dev servers.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured. An empty
// origins list falls back to DefaultAllowedOrigins.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Get("/history", h.GetHistory)

		r.Post("/paychecks", h.ReceivePaycheck)

		r.Route("/purchases", func(r chi.Router) {
			r.Post("/", h.Purchase)
			r.Post("/check", h.CheckPurchase)
		})

		r.Post("/allowance/refresh", h.RefreshAllowance)

		// Manual corrections
		r.Put("/balances/{bucket}", h.SetBalance)
		r.Route("/debt", func(r chi.Router) {
			r.Put("/", h.SetDebt)
			r.Post("/payments", h.PayDebt)
		})

		// Rules and calendar
		r.Route("/settings", func(r chi.Router) {
			r.Put("/split", h.UpdateSplitRules)
			r.Put("/caps", h.UpdateCaps)
			r.Put("/workdays", h.SetWorkdayRules)
			r.Put("/pay-date", h.SetNextPayDate)
		})
		r.Route("/pto", func(r chi.Router) {
			r.Post("/", h.AddPTO)
			r.Delete("/{date}", h.RemovePTO)
		})
		r.Route("/bills", func(r chi.Router) {
			r.Post("/", h.AddBill)
			r.Delete("/{index}", h.RemoveBill)
		})
		r.Post("/caps/enforce", h.EnforceCaps)

		// Backup
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
	})

	return r
}

// requestLogger writes one structured line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
