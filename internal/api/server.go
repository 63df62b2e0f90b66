// Package api provides the HTTP REST API for scanwrap.
// It runs scan sessions on request and serves stored reports.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anstrom/scanwrap/internal/config"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/metrics"
	"github.com/anstrom/scanwrap/internal/scanning"
	"github.com/anstrom/scanwrap/internal/store"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	healthCheckTimeout    = 5 * time.Second
)

// SessionFactory creates the session for one scan request.
type SessionFactory func(targets, args []string) (*scanning.Session, error)

// ReportRepository is the subset of store.ReportStore the API reads and writes.
type ReportRepository interface {
	SaveReport(ctx context.Context, sessionID string, report *scanning.Report) (uuid.UUID, error)
	GetReport(ctx context.Context, id uuid.UUID) (*store.ReportRecord, error)
	ListReports(ctx context.Context, limit int) ([]store.ReportRecord, error)
	ListHosts(ctx context.Context, reportID uuid.UUID) ([]store.HostRecord, error)
}

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies wires the server to the rest of the process. Reports and
// Database may be nil when storage is disabled; Metrics may be nil to
// skip the /metrics endpoint.
type Dependencies struct {
	Limiter    *scanning.Limiter
	NewSession SessionFactory
	Reports    ReportRepository
	Database   Pinger
	Metrics    *metrics.PrometheusMetrics
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	deps       Dependencies
	logger     *logging.Logger
	startTime  time.Time
}

// New creates a new API server instance.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Limiter == nil || deps.NewSession == nil {
		return nil, fmt.Errorf("api server requires a limiter and a session factory")
	}
	if cfg.API.AuthEnabled && len(cfg.API.APIKeys) == 0 {
		return nil, fmt.Errorf("api authentication is enabled but no API keys are configured")
	}

	server := &Server{
		router:    mux.NewRouter(),
		config:    cfg,
		deps:      deps,
		logger:    logging.Default().WithComponent("api"),
		startTime: time.Now(),
	}

	server.setupRoutes()
	server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:         cfg.GetAPIAddress(),
		Handler:      server.router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	return server, nil
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server",
		"address", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout,
		"auth_enabled", s.config.API.AuthEnabled)
	if !s.config.API.AuthEnabled {
		s.logger.Warn("API authentication is disabled; any client can start scans with arbitrary nmap arguments")
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// Router returns the configured router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.httpServer.Addr
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthHandler).Methods("GET")
	api.HandleFunc("/scans", s.createScanHandler).Methods("POST")
	api.HandleFunc("/reports", s.listReportsHandler).Methods("GET")
	api.HandleFunc("/reports/{id}", s.getReportHandler).Methods("GET")
	api.HandleFunc("/reports/{id}/hosts", s.listHostsHandler).Methods("GET")

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics.GetRegistry(), promhttp.HandlerOpts{})).
			Methods("GET")
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)

	if cors := s.config.API.CORS; cors.Enabled {
		s.router.Use(handlers.CORS(
			handlers.AllowedOrigins(cors.AllowedOrigins),
			handlers.AllowedMethods(cors.AllowedMethods),
			handlers.AllowedHeaders(cors.AllowedHeaders),
		))
	}

	if s.config.API.AuthEnabled {
		s.router.Use(s.authMiddleware)
	}

	s.router.Use(s.contentTypeMiddleware)
	s.router.Use(s.bodyLimitMiddleware)
}

// ErrorResponse represents a standard API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	s.logger.Error("API error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", statusCode,
		"error", err,
		"remote_addr", r.RemoteAddr)

	s.writeJSON(w, r, statusCode, ErrorResponse{
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method)
	}
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("Panic in API handler",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method)
				s.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr)
	})
}

// authMiddleware requires one of the configured API keys in X-API-Key or
// an "Authorization: Bearer" header. The health check stays open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	keys := make([][]byte, 0, len(s.config.API.APIKeys))
	for _, key := range s.config.API.APIKeys {
		keys = append(keys, []byte(key))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			s.writeError(w, r, http.StatusUnauthorized,
				fmt.Errorf("authentication required: provide an API key in X-API-Key or Authorization: Bearer"))
			return
		}
		if !matchesAnyKey(keys, []byte(apiKey)) {
			s.writeError(w, r, http.StatusUnauthorized, fmt.Errorf("authentication failed: invalid API key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// matchesAnyKey compares against every key in constant time.
func matchesAnyKey(keys [][]byte, candidate []byte) bool {
	found := 0
	for _, key := range keys {
		found |= subtle.ConstantTimeCompare(key, candidate)
	}
	return found == 1
}

// contentTypeMiddleware rejects POST bodies that are not JSON.
func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && contentType != "application/json" {
				s.writeError(w, r, http.StatusUnsupportedMediaType,
					fmt.Errorf("unsupported content type: %s", contentType))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit := s.config.API.MaxRequestSize; limit > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
