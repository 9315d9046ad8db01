// Package api exposes the verification service over HTTP: intent
// creation and lookup, on-demand verification, the audit trail, plus
// health and metrics endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedrun-hq/paywatch/pkg/logger"
	"github.com/speedrun-hq/paywatch/pkg/verifier"
)

// Server is the HTTP front of the verification service. It never
// mutates stored state directly; everything goes through the verifier
// boundary operations.
type Server struct {
	service       *verifier.Service
	logger        logger.Logger
	port          string
	metricsAPIKey string
	router        *chi.Mux
}

// NewServer builds the router. An empty metricsAPIKey leaves /metrics
// open, which suits dev runs.
func NewServer(port string, service *verifier.Service, metricsAPIKey string, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	s := &Server{
		service:       service,
		logger:        log,
		port:          port,
		metricsAPIKey: metricsAPIKey,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/v1/intents", func(r chi.Router) {
		r.Post("/", s.handleCreateIntent)
		r.Get("/", s.handleListIntents)
		r.Get("/{intentID}", s.handleGetIntent)
		r.Post("/{intentID}/verify", s.handleTriggerVerify)
		r.Get("/{intentID}/events", s.handleListEvents)
	})
	r.Get("/health", s.handleHealth)
	r.With(s.metricsAuth).Get("/metrics", promhttp.Handler().ServeHTTP)

	s.router = r
	return s
}

// Router exposes the handler tree, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves HTTP until the context is cancelled, then drains
// in-flight requests before returning.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %v", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %v", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("%s %s -> %d (%d bytes, %v)",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
	})
}

// metricsAuth guards the metrics endpoint with a bearer key when one is
// configured.
func (s *Server) metricsAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.Split(r.Header.Get("Authorization"), " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] != s.metricsAPIKey {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid metrics API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
