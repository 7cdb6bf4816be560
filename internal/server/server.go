// Package server exposes the airdrop registry and claim engine over an
// HTTP JSON API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zkdrop/zkdrop-node/internal/airdrop"
	"github.com/zkdrop/zkdrop-node/internal/claims"
	"github.com/zkdrop/zkdrop-node/internal/membership"
)

// Options configure the HTTP server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server is the zkdrop HTTP API server.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New creates a server over the given registry and engine. Groups may
// be nil to disable the membership endpoints.
func New(airdrops *airdrop.Registry, engine *claims.Engine, groups *membership.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Addr == "" {
		opts.Addr = ":8480"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      withLogging(logger, NewHandler(airdrops, engine, groups, logger)),
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		logger:          logger,
		shutdownTimeout: opts.ShutdownTimeout,
	}
}

// NewHandler builds the API routes without the server wrapper. Tests
// mount it directly.
func NewHandler(airdrops *airdrop.Registry, engine *claims.Engine, groups *membership.Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{airdrops: airdrops, engine: engine, groups: groups, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/airdrops", h.createAirdrop)
	mux.HandleFunc("GET /v1/airdrops/{id}", h.getAirdrop)
	mux.HandleFunc("POST /v1/airdrops/{id}/claims", h.claim)
	mux.HandleFunc("GET /healthz", h.healthz)
	if groups != nil {
		mux.HandleFunc("POST /v1/groups", h.createGroup)
		mux.HandleFunc("GET /v1/groups/{id}", h.getGroup)
		mux.HandleFunc("POST /v1/groups/{id}/members", h.addMember)
	}
	return mux
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// ListenAndServe runs the server until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
