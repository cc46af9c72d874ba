package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/internal/turn"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Orchestrator *turn.Orchestrator // Required
	Logger       *slog.Logger
	Addr         string  // Listen address (e.g. ":8080")
	TrustProxy   bool    // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst    int     // Throttle burst size per IP (0 = default 60)
	RateRefill   float64 // Throttle refill in tokens per second per IP (0 = default 1)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	addr   string
	logger *slog.Logger
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		orchestrator: cfg.Orchestrator,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("POST /api/prompt", ch.sendPrompt)

	// Per-IP token bucket; defaults for the zero fields live in newThrottle.
	th := newThrottle(throttleConfig{
		refill: rate.Limit(cfg.RateRefill),
		burst:  cfg.RateBurst,
	})

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → Throttle → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes.
	var handler http.Handler = mux
	handler = throttleMiddleware(th, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps the health probe outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /api/healthz", health(logger))
	topMux.Handle("/", final)

	return &Server{
		mux:    topMux,
		addr:   cfg.Addr,
		logger: logger,
	}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully with a 10 second drain window.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute, // Turns can be slow; give replies room.
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh // Always http.ErrServerClosed after Shutdown.
		s.logger.Info("http server stopped")
		return nil
	}
}
