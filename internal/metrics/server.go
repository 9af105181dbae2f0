package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the launcher's own Prometheus metrics plus a small
// status endpoint describing the supervised sidecar.
type Server struct {
	addr    string
	server  *http.Server
	logger  *slog.Logger
	scraper *BackendScraper
}

// NewServer creates a metrics server. The scraper may be nil; /status
// then omits backend fields.
func NewServer(addr string, scraper *BackendScraper, logger *slog.Logger) *Server {
	s := &Server{
		addr:    addr,
		logger:  logger,
		scraper: scraper,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", s.statusHandler)

	// Liveness/readiness of the launcher itself, distinct from the
	// sidecar's /health endpoint on its own port
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/ready", healthHandler)
	mux.HandleFunc("/readyz", healthHandler)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	return s
}

// healthHandler handles health check requests.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// statusHandler reports the latest backend snapshot as JSON.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Backend *BackendSnapshot `json:"backend,omitempty"`
	}

	var st status
	if s.scraper != nil {
		st.Backend = s.scraper.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Debug("status_encode_error", "error", err)
	}
}

// Start starts the metrics server in a goroutine.
// Returns immediately. Use Shutdown to stop.
func (s *Server) Start() error {
	s.logger.Info("metrics_server_starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics_server_error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("metrics_server_shutting_down")
	return s.server.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.addr
}
