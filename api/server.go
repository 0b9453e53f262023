/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP from proxy headers
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters and latency histograms
  5. Logging:    Structured request log (zap)
  6. CORS:       Cross-origin requests for frontend
  7. Auth:       Bearer token verification, /api only

ROUTE GROUPS:
  /api/farms/*       All farm-scoped resources (authenticated)
  /healthz           Liveness probe (public)
  /metrics           Prometheus scrape endpoint (public)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/acrefield/farm-engine/metrics"
)

// RouterConfig carries the deployment-specific router knobs.
type RouterConfig struct {
	AllowedOrigins []string
	EnableDemoSeed bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, tokens *TokenManager, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(requestLogger(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Operational endpoints stay outside the auth gate.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(tokens.Middleware)

		r.Post("/farms", h.CreateFarm)

		// Development only: builds a fully populated demo farm.
		if cfg.EnableDemoSeed {
			r.Post("/seed/demo", h.LoadDemo)
		}

		r.Route("/farms/{farmID}", func(r chi.Router) {
			// Membership routes
			r.Route("/members", func(r chi.Router) {
				r.Get("/", h.ListMembers)
				r.Post("/", h.AddMember)
				r.Put("/{userID}", h.ChangeRole)
				r.Delete("/{userID}", h.RemoveMember)
			})

			// Worker routes
			r.Route("/workers", func(r chi.Router) {
				r.Get("/", h.ListWorkers)
				r.Post("/", h.HireWorker)
				r.Post("/{id}/terminate", h.TerminateWorker)
			})

			// Shift routes
			r.Route("/shifts", func(r chi.Router) {
				r.Get("/", h.ListShifts)
				r.Post("/", h.ScheduleShift)
				r.Post("/{id}/submit", h.SubmitShift)
				r.Post("/{id}/confirm", h.ConfirmShift)
				r.Post("/{id}/complete", h.CompleteShift)
				r.Post("/{id}/cancel", h.CancelShift)
			})

			// Time off routes
			r.Route("/timeoff", func(r chi.Router) {
				r.Get("/", h.ListTimeOff)
				r.Get("/pending", h.PendingTimeOff)
				r.Post("/", h.RequestTimeOff)
				r.Post("/{id}/approve", h.ApproveTimeOff)
				r.Post("/{id}/reject", h.RejectTimeOff)
			})

			// Payroll routes
			r.Route("/payroll", func(r chi.Router) {
				r.Get("/", h.ListPayroll)
				r.Post("/", h.DraftPayroll)
				r.Post("/{id}/approve", h.ApprovePayroll)
				r.Post("/{id}/pay", h.PayPayroll)
			})

			// Task routes
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.ListTasks)
				r.Post("/", h.AssignTask)
				r.Post("/{id}/start", h.StartTask)
				r.Post("/{id}/complete", h.CompleteTask)
				r.Post("/{id}/cancel", h.CancelTask)
			})

			// Health routes
			r.Route("/health", func(r chi.Router) {
				r.Get("/", h.ListHealthRecords)
				r.Post("/", h.RecordHealth)
				r.Get("/compliance", h.ComplianceReport)
			})

			// Report routes
			r.Get("/reports/labor", h.LaborReport)
			r.Get("/alerts", h.ListAlerts)
		})
	})

	return r
}

// requestLogger emits one structured line per request after it finishes.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// metricsMiddleware records request counts and latency. Route patterns
// are used instead of raw paths to keep label cardinality bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.ObserveHTTPRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}
