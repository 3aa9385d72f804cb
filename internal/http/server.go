package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"propledger/internal/core"
	"propledger/internal/log"
	"propledger/internal/schedule"
	"propledger/internal/services"
)

// RecurringAPI is the part of the recurring service the handlers call.
// *services.RecurringService satisfies it.
type RecurringAPI interface {
	CreateTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error)
	GetTemplate(ctx context.Context, id int64) (core.RecurringTemplate, error)
	ListTemplates(ctx context.Context, projectID int64) ([]core.RecurringTemplate, error)
	UpdateTemplate(ctx context.Context, id int64, patch core.TemplatePatch) (core.RecurringTemplate, error)
	DeactivateTemplate(ctx context.Context, id int64) error
	DeleteTemplate(ctx context.Context, id int64) (bool, error)
	ListTemplateInstances(ctx context.Context, templateID int64) ([]core.TransactionInstance, error)
	UpdateInstance(ctx context.Context, id int64, patch core.InstancePatch) (core.TransactionInstance, error)
	DeleteInstance(ctx context.Context, id int64) error
	GenerateForMonth(ctx context.Context, year, month int) (services.GenerationResult, error)
	FutureOccurrences(ctx context.Context, templateID int64, from core.Date, monthsAhead int) ([]schedule.Occurrence, error)
}

// Pinger reports whether a dependency is reachable. Used by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the server. Zero values pick the defaults.
type Options struct {
	RateLimitPerMinute int
	Logger             *log.Logger
	Readiness          Pinger
}

type Server struct {
	http.Server
	service     RecurringAPI
	ready       Pinger
	logger      *log.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc RecurringAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		service:     svc,
		ready:       opts.Readiness,
		logger:      logger,
		rateLimiter: newRateLimiter(opts.RateLimitPerMinute),
		metrics:     &securityMetrics{},
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string { return requestIDFrom(r.Context()) }))
	r.Use(s.withRequestLogging)
	r.Use(middleware.Recoverer)
	r.Use(s.withSecurityHeaders)
	r.Use(s.withRateLimit)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/version", handleVersion)

	r.Route("/api/v1/recurring-transactions", func(r chi.Router) {
		r.Post("/", s.handleCreateTemplate)
		r.Get("/project/{projectID}", s.handleListTemplates)
		r.Post("/generate/{year}/{month}", s.handleGenerate)

		r.Put("/transactions/{transactionID}", s.handleUpdateInstance)
		r.Delete("/transactions/{transactionID}", s.handleDeleteInstance)

		r.Route("/{templateID}", func(r chi.Router) {
			r.Get("/", s.handleGetTemplate)
			r.Put("/", s.handleUpdateTemplate)
			r.Delete("/", s.handleDeleteTemplate)
			r.Post("/deactivate", s.handleDeactivateTemplate)
			r.Get("/transactions", s.handleListInstances)
			r.Get("/future-occurrences", s.handleFutureOccurrences)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	return r
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
