// Package api serves the failover engine over HTTP.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/ha"
	"github.com/FairForge/multicloud-dr/internal/metrics"
	"github.com/FairForge/multicloud-dr/internal/provider"
	"github.com/FairForge/multicloud-dr/internal/scoring"
	"github.com/FairForge/multicloud-dr/internal/store"
)

// Failover is the controller surface the API drives.
type Failover interface {
	ActiveProvider() ha.ActiveState
	ManualFailover(ctx context.Context, target provider.ID, reason string) (bool, error)
	CheckAndFailover(ctx context.Context) (bool, error)
	Scores() map[provider.ID]scoring.Score
	Status() ha.Status
	RecentFailoverEvents(ctx context.Context, limit int) ([]store.FailoverEvent, error)
}

// Simulation is the simulator surface the API drives.
type Simulation interface {
	Execute(ctx context.Context, scenario ha.Scenario) (ha.ScenarioResult, error)
	GenerateReport() ha.Report
}

type Server struct {
	cfg        config.APIConfig
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
	failover   Failover
	simulator  Simulation
	metrics    *metrics.Metrics
	auth       *Authenticator
	limiter    *RateLimiter

	requestCount int64
	startTime    time.Time
}

func NewServer(cfg config.APIConfig, logger *zap.Logger, f Failover, sim Simulation, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger.Named("api"),
		router:    mux.NewRouter(),
		failover:  f,
		simulator: sim,
		metrics:   m,
		auth:      NewAuthenticator(cfg.JWTSecret),
		limiter:   NewRateLimiter(cfg.RateLimit, cfg.Burst),
		startTime: time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/active", s.handleActive).Methods("GET")
	v1.HandleFunc("/status", s.handleStatus).Methods("GET")
	v1.HandleFunc("/scores", s.handleScores).Methods("GET")
	v1.HandleFunc("/events", s.handleEvents).Methods("GET")
	v1.HandleFunc("/simulations", s.handleSimulations).Methods("GET")

	v1.Handle("/failover", s.mutating(s.handleManualFailover)).Methods("POST")
	v1.Handle("/failover/check", s.mutating(s.handleCheck)).Methods("POST")
	v1.Handle("/simulate", s.mutating(s.handleSimulate)).Methods("POST")

	s.router.Use(s.loggingMiddleware)
}

// mutating wraps state-changing handlers with rate limiting and auth.
func (s *Server) mutating(h http.HandlerFunc) http.Handler {
	return RateLimitMiddleware(s.limiter)(s.auth.RequireAuth(h))
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requestCount, 1)
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.cfg.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
