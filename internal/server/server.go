// Package server exposes the collector to external consumers (the
// dashboard and automated alerting) over HTTP. Ingestion call sites in
// other processes may also report samples through it, though in-process
// callers use the collector directly.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"perfwatch.sh/pkg/perf"
)

// Config holds the server configuration.
type Config struct {
	// ListenAddr is the bind address, e.g. ":9600".
	ListenAddr string

	// AllowedOrigins lists dashboard origins permitted by CORS.
	// Empty means same origin only.
	AllowedOrigins []string
}

// Server is the consumer-facing HTTP surface.
type Server struct {
	cfg        Config
	collector  *perf.Collector
	logger     *zap.Logger
	httpServer *http.Server
	handler    http.Handler
}

// New creates a server around an existing collector.
func New(cfg Config, collector *perf.Collector, logger *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		collector: collector,
		logger:    logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/samples", s.handleRecord).Methods("POST")
	r.HandleFunc("/api/v1/samples", s.handleQuery).Methods("GET")
	r.HandleFunc("/api/v1/insights", s.handleInsights).Methods("GET")
	r.HandleFunc("/api/v1/export", s.handleExport).Methods("GET")
	r.HandleFunc("/api/v1/clear", s.handleClear).Methods("POST")
	r.HandleFunc("/api/v1/optimize", s.handleOptimize).Methods("POST")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	var handler http.Handler = s.withInstrumentation(r)
	handler = otelhttp.NewHandler(handler, "perfwatch")
	handler = cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(handler)

	s.handler = handler
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.ListenAddr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh // drain ListenAndServe's http.ErrServerClosed
		return nil
	}
}
