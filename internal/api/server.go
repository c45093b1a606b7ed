// Package api exposes the decision engine and session controls to the browser
// extension over a local JSON HTTP API.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/do-one-thing/internal/blocker"
	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
)

const (
	// DefaultAddr binds the API to loopback only.
	DefaultAddr = "127.0.0.1:7878"

	// MaxRequestBodySize bounds request bodies (1MB).
	MaxRequestBodySize = 1 << 20

	// MaxBatchSize is the largest accepted batch classification request.
	MaxBatchSize = 200
)

// Decider classifies URLs.
type Decider interface {
	Classify(ctx context.Context, req model.ClassificationRequest) model.Verdict
	ClassifyBatch(ctx context.Context, reqs []model.ClassificationRequest) []model.Verdict
}

// Sessions controls the focus session lifecycle.
type Sessions interface {
	Start(ctx context.Context, intent string) (*model.FocusSession, error)
	End(ctx context.Context) (*model.FocusSession, error)
	AllowDomain(ctx context.Context, rawURL string) (*model.FocusSession, error)
	Current(ctx context.Context) (*model.FocusSession, error)
}

// Navigator handles browser navigations.
type Navigator interface {
	HandleNavigation(ctx context.Context, nav blocker.Navigation) (blocker.Outcome, error)
}

// StateStore reads and updates persisted statistics and settings.
type StateStore interface {
	Stats(ctx context.Context) (model.Stats, error)
	ResetStats(ctx context.Context) error
	Settings(ctx context.Context) (model.Settings, error)
	UpdateSettings(ctx context.Context, update model.SettingsUpdate) (model.Settings, error)
}

// CacheClearer empties the verdict cache.
type CacheClearer interface {
	Clear(ctx context.Context) error
}

// Deps groups the components the server delegates to.
type Deps struct {
	Decider   Decider
	Sessions  Sessions
	Navigator Navigator
	State     StateStore
	Cache     CacheClearer
}

// Server is the local HTTP API.
type Server struct {
	deps      Deps
	router    *http.ServeMux
	logger    *slog.Logger
	tlsConfig *tls.Config
	addr      string
	version   string
}

// NewServer creates a server listening on addr once started.
func NewServer(addr, version string, deps Deps, logger *slog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		deps:    deps,
		router:  http.NewServeMux(),
		logger:  common.LoggerOrDefault(logger),
		addr:    addr,
		version: version,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)

	// Classification
	s.router.HandleFunc("POST /v1/classify", s.handleClassify)
	s.router.HandleFunc("POST /v1/classify/batch", s.handleClassifyBatch)
	s.router.HandleFunc("POST /v1/navigate", s.handleNavigate)

	// Session
	s.router.HandleFunc("GET /v1/session", s.handleSession)
	s.router.HandleFunc("POST /v1/session/start", s.handleSessionStart)
	s.router.HandleFunc("POST /v1/session/end", s.handleSessionEnd)
	s.router.HandleFunc("POST /v1/session/allow", s.handleSessionAllow)

	// State
	s.router.HandleFunc("GET /v1/stats", s.handleStats)
	s.router.HandleFunc("DELETE /v1/stats", s.handleStatsReset)
	s.router.HandleFunc("GET /v1/settings", s.handleSettings)
	s.router.HandleFunc("PUT /v1/settings", s.handleSettingsUpdate)
	s.router.HandleFunc("DELETE /v1/cache", s.handleCacheClear)
}

// SetTLSConfig makes Start serve HTTPS.
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	s.tlsConfig = cfg
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.router)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    s.tlsConfig,
	}

	s.logger.Info("Starting API server", "addr", s.addr, "tls", s.tlsConfig != nil)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown error", "error", err)
		}
	}()

	var err error
	if s.tlsConfig != nil {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
