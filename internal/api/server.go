package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/flowpbx/remotecc/internal/api/middleware"
	"github.com/flowpbx/remotecc/internal/database"
	"github.com/flowpbx/remotecc/internal/events"
	"github.com/flowpbx/remotecc/internal/metrics"
	"github.com/flowpbx/remotecc/internal/routing"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// defaultPersistTimeout applies when Config.PersistTimeout is zero.
const defaultPersistTimeout = 2 * time.Second

// Resolver maps an area code to the first matching routing rule.
type Resolver interface {
	Resolve(ctx context.Context, areaCode string) (routing.Rule, bool)
}

// PushHub fans call events out to dashboard observers.
type PushHub interface {
	Publish(msg events.Message) int
	Subscribe() *events.Subscription
	Unsubscribe(sub *events.Subscription)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Config carries the server's collaborators and tunables. Resolver, Events
// and Hub are required.
type Config struct {
	Resolver Resolver
	Events   database.CallEventRepository
	Hub      PushHub
	Pinger   Pinger
	Metrics  *metrics.Webhook
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler

	PersistTimeout time.Duration
	// JWTSecret enables bearer-token auth on the dashboard routes.
	JWTSecret   []byte
	CORSOrigins []string
	// RateLimiter throttles the dashboard routes per client IP when set.
	RateLimiter *middleware.IPRateLimiter
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router *chi.Mux

	resolver       Resolver
	events         database.CallEventRepository
	hub            PushHub
	pinger         Pinger
	metrics        *metrics.Webhook
	metricsHandler http.Handler
	persistTimeout time.Duration
	jwtSecret      []byte
	corsOrigins    []string
	limiter        *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		resolver:       cfg.Resolver,
		events:         cfg.Events,
		hub:            cfg.Hub,
		pinger:         cfg.Pinger,
		metrics:        cfg.Metrics,
		metricsHandler: cfg.MetricsHandler,
		persistTimeout: cfg.PersistTimeout,
		jwtSecret:      cfg.JWTSecret,
		corsOrigins:    cfg.CORSOrigins,
		limiter:        cfg.RateLimiter,
	}
	if s.persistTimeout <= 0 {
		s.persistTimeout = defaultPersistTimeout
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)

	// Liveness and scraping stay open.
	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	// Telephony platform webhooks. These must always answer 200 quickly, so
	// no auth or rate limiting sits in front of them.
	r.Post("/remotecc", s.handleRemoteCC)
	r.Post("/notify", s.handleNotify)

	// Dashboard reads and push.
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(s.corsOrigins))
		if s.limiter != nil {
			r.Use(middleware.RateLimit(s.limiter))
		}
		r.Use(middleware.RequireDashboardAuth(s.jwtSecret))

		r.Get("/events", s.handleListEvents)
		r.Get("/calls", s.handleListCalls)
		r.Get("/ws", s.handlePush)

		// Preflights are answered by the CORS middleware.
		for _, path := range []string{"/events", "/calls"} {
			r.Options(path, func(http.ResponseWriter, *http.Request) {})
		}
	})

	slog.Info("api routes mounted", "dashboard_auth", len(s.jwtSecret) > 0)
}
