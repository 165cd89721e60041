/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RealIP:         Client address behind proxies
  3. RequestLogger:  One slog record per request
  4. Recoverer:      Panic recovery (500 instead of crash)
  5. CORS:           Cross-origin requests for POS web clients

ROUTE GROUPS:
  /api/organizations/{org}/certificates/*  Certificate engine
  /api/scenarios/*                         Demo data loaders
  /healthz                                 Liveness / readiness
  /metrics                                 Prometheus scrape endpoint

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures NewRouter. Zero values are usable.
type RouterOptions struct {
	AllowedOrigins []string

	// Gatherer is served on MetricsPath. Nil disables /metrics.
	Gatherer    prometheus.Gatherer
	MetricsPath string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)
	if opts.Gatherer != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api/organizations/{org}/certificates", func(r chi.Router) {
		r.Post("/", h.CreateCertificate)
		r.Get("/", h.ListCertificates)
		r.Get("/stats", h.GetStats)
		r.Post("/validate", h.ValidateCertificate)
		r.Post("/redeem", h.RedeemCertificate)
		r.Get("/{id}", h.GetCertificate)
		r.Get("/{id}/transactions", h.GetTransactions)
		r.Post("/{id}/cancel", h.CancelCertificate)
	})

	// Scenario routes
	r.Route("/api/scenarios", func(r chi.Router) {
		r.Get("/", h.ListScenarios)
		r.Post("/load", h.LoadScenario)
	})

	return r
}

// RequestLogger logs method, path, status, size, and latency for every
// request, tagged with the request id.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				logger.LogAttrs(r.Context(), level, "http request",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("remote", r.RemoteAddr),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
