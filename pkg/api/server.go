// Package api exposes decode metrics and replay progress over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves /metrics, /healthz and the replay status endpoint
type Server struct {
	config  ServerConfig
	metrics *Metrics
	status  StatusSource
	router  chi.Router
	logger  *slog.Logger
}

// NewServer builds the router. status may be nil.
func NewServer(config ServerConfig, gatherer prometheus.Gatherer, metrics *Metrics, status StatusSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{config: config, metrics: metrics, status: status, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", metrics.InstrumentHandler("GET", "/healthz", s.handleHealth))
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/replays", metrics.InstrumentHandler("GET", "/api/v1/replays", s.handleReplays))
		r.Get("/replays/{name}", metrics.InstrumentHandler("GET", "/api/v1/replays/{name}", s.handleReplay))
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("metrics server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "ok"})
}

func (s *Server) handleReplays(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		sendSuccess(w, []ReplayStatus{})
		return
	}
	sendSuccess(w, s.status.Status())
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.status != nil {
		for _, st := range s.status.Status() {
			if st.Name == name {
				sendSuccess(w, st)
				return
			}
		}
	}
	sendError(w, "replay not found", http.StatusNotFound)
}
