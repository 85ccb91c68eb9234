/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests, origins from configuration

ROUTE GROUPS:
  /api/companies/*      Periods, billing configuration, invoices
  /api/invoices/*       Invoice status
  /api/reminders/*      Reminder completion
  /api/projects/*       Projects, tasks, schedule, recompute
  /api/tasks/*          Ledger and work logging
  /api/entries/*        Work entry edits
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string, log *zap.Logger) *chi.Mux {
	if log == nil {
		log = zap.NewNop()
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/companies/{id}", func(r chi.Router) {
			r.Get("/periods", h.ListPeriods)
			r.Get("/periods/overview", h.PeriodOverview)
			r.Get("/billing-config", h.GetBillingConfig)
			r.Put("/billing-config", h.PutBillingConfig)
			r.Get("/invoices", h.ListInvoices)
			r.Post("/invoices", h.CreateInvoices)
		})

		r.Post("/invoices/{id}/status", h.SetInvoiceStatus)
		r.Post("/reminders/{id}/complete", h.CompleteReminder)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}/tasks", h.ListTasks)
			r.Post("/{id}/tasks", h.CreateTask)
			r.Get("/{id}/schedule", h.ProjectSchedule)
			r.Post("/{id}/recompute", h.RecomputeProject)
		})

		r.Route("/tasks/{id}", func(r chi.Router) {
			r.Get("/ledger", h.TaskLedger)
			r.Post("/entries", h.LogWork)
		})

		r.Route("/entries/{id}", func(r chi.Router) {
			r.Put("/", h.EditWorkEntry)
			r.Delete("/", h.DeleteWorkEntry)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
