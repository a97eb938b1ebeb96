// Package server runs the status API over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"baserow-bridge/internal/common/errors"
)

// Server represents an HTTP server
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// New creates a new server instance listening on addr (host:port or :port)
func New(handler http.Handler, addr string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background. Bind failures are
// returned directly; later serve failures are delivered on the channel.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, errors.ConnectionError("failed to listen on "+s.srv.Addr, err)
	}
	s.listener = ln

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh, nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
