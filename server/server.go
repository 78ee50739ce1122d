package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"google.golang.org/grpc"
)

// timestampLayout matches the millisecond UTC timestamps clients already parse.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Options configures the credential backend.
type Options struct {
	Port     int
	GRPCPort int
	APIKey   string
}

// Server hands the agent credential to clients and answers health checks.
type Server struct {
	opts   Options
	log    zerolog.Logger
	router chi.Router
	health *healthService
	now    func() time.Time
}

// New creates a new credential backend
func New(opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		opts:   opts,
		log:    logger.With().Str("component", "server").Logger(),
		health: newHealthService(opts.APIKey != ""),
		now:    time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/config", s.handleConfig)
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(timestampLayout),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if s.opts.APIKey == "" {
		hlog.FromRequest(r).Error().Msg("DEEPGRAM_API_KEY not configured")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Deepgram API key not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"DEEPGRAM_API_KEY": s.opts.APIKey,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves HTTP, and gRPC health when GRPCPort is set, until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpListener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.opts.Port, err)
	}

	var grpcListener net.Listener
	if s.opts.GRPCPort > 0 {
		grpcListener, err = net.Listen("tcp", fmt.Sprintf(":%d", s.opts.GRPCPort))
		if err != nil {
			_ = httpListener.Close()
			return fmt.Errorf("failed to listen on grpc port %d: %w", s.opts.GRPCPort, err)
		}
	}
	return s.Serve(ctx, httpListener, grpcListener)
}

// Serve is Run on caller-provided listeners. grpcListener may be nil.
func (s *Server) Serve(ctx context.Context, httpListener, grpcListener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		s.log.Info().Str("addr", httpListener.Addr().String()).Msg("API server running")
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if grpcListener != nil {
		grpcServer = grpc.NewServer()
		s.health.register(grpcServer)
		go func() {
			s.log.Info().Str("addr", grpcListener.Addr().String()).Msg("gRPC health running")
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.shutdown()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to shut down http server: %w", err)
	}
	return runErr
}
