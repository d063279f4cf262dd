// Package api exposes the assessment engine over HTTP.
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	idleTimeout       = 2 * time.Minute
	readHeaderTimeout = 10 * time.Second
	compressLevel     = 5
)

// Server is the HTTP front of the engine.
type Server struct {
	router *chi.Mux
	http   *http.Server
	config domain.ServerConfig
}

// NewServer wires the routes for d.
func NewServer(cfg domain.ServerConfig, d Deps) *Server {
	return &Server{
		router: routes(NewHandler(d), d),
		config: cfg,
	}
}

func routes(h *Handler, d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		CORSMiddleware,
		RecoverMiddleware,
		TracingMiddleware,
		LoggingMiddleware,
		middleware.RealIP,
		middleware.Compress(compressLevel),
	)

	// Probes and scrapes carry no tenant.
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		r.Post("/evaluate", h.Evaluate)
		r.Post("/cases", h.SubmitCase)
		r.Get("/assessments/{id}", h.GetAssessment)
		r.Get("/cases/{caseID}/assessments", h.ListCaseAssessments)

		r.Get("/rulepack", h.GetRulepack)
		r.Get("/rulepack/history", h.RulepackHistory)
		r.Post("/rulepack/reload", h.ReloadRulepack)
	})
	return r
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port)),
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.config.ReadTimeout) * time.Second,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:       idleTimeout,
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router returns the route tree, for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
