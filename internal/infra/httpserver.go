package infra

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServer owns the API listener.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer applies the configured timeouts. The write timeout must
// outlast the longest stage budget because stages run inside the request.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	write := cfg.HTTPWriteTimeout
	if floor := cfg.StageTimeouts.Products + 30*time.Second; write < floor {
		write = floor
	}
	return &HTTPServer{server: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}}
}

// Addr reports the listen address.
func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

// WriteTimeout reports the effective write timeout.
func (s *HTTPServer) WriteTimeout() time.Duration {
	return s.server.WriteTimeout
}

// Start blocks serving requests. A graceful shutdown returns nil.
func (s *HTTPServer) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight stages.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
