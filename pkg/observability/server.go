package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server exposes health and metrics endpoints, separate from the chat
// gateway so probes keep answering while the gateway is busy.
type Server struct {
	httpServer *http.Server
	checker    *HealthChecker
	port       int
}

// NewServer creates an observability server on the given port.
func NewServer(port int, checker *HealthChecker) *Server {
	if checker == nil {
		checker = NewHealthChecker()
	}
	return &Server{port: port, checker: checker}
}

// Start blocks serving health and metrics endpoints.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.checker.Handler())
	mux.HandleFunc("/health/live", s.checker.LivenessHandler())
	mux.HandleFunc("/health/ready", s.checker.ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
