package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"leasesync/internal/logs"
	"leasesync/internal/metrics"
	"leasesync/internal/runner"
)

// Source is what the status server reports on
type Source interface {
	LastReport() (runner.Report, bool)
	GetLogs() []logs.Entry
	Trigger(reason string)
}

// Server represents the HTTP status server
type Server struct {
	listen    string
	monitor   Source
	logger    zerolog.Logger
	mux       *http.ServeMux
	templates *TemplateManager
}

// NewServer creates a new status server
func NewServer(listen string, mon Source, logger zerolog.Logger) *Server {
	server := &Server{
		listen:    listen,
		monitor:   mon,
		logger:    logger,
		mux:       http.NewServeMux(),
		templates: NewTemplateManager(),
	}

	if err := server.templates.LoadTemplates(); err != nil {
		logger.Warn().Err(err).Msg("Status page disabled")
	}
	metrics.RegisterMetrics()
	server.setupRoutes()

	return server
}

// Handler returns the server routes
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("listen", s.listen).Msg("Status server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/status", s.handleStatusAPI)
	s.mux.HandleFunc("/api/logs", s.handleLogsAPI)
	s.mux.HandleFunc("/api/sync", s.handleSyncAPI)
}
