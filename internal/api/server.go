package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the bridge's operational HTTP endpoints: a health
// check and the Prometheus metrics.
type Server struct {
	logger *zap.Logger
	server *http.Server
}

// NewServer creates an operational HTTP server on the given address
func NewServer(addr string, logger *zap.Logger) *Server {
	s := &Server{
		logger: logger.Named("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// HealthResponse is the JSON body of the health endpoint
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC(),
	}); err != nil {
		s.logger.Error("Failed to write health response", zap.Error(err))
	}
}

// Start begins serving in the background
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	return s.server.Shutdown(ctx)
}
