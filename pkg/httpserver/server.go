// Package httpserver provides the HTTP serving plumbing shared by the
// kubechat services: lifecycle management, JSON responses, SSE framing and
// request instrumentation.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const shutdownTimeout = 5 * time.Second

// Server wraps an http.Server with a listener and graceful shutdown.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// New binds the listen address immediately so that port conflicts surface at
// startup rather than on first request.
func New(listenAddress string, handler http.Handler) (*Server, error) {
	listener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return nil, fmt.Errorf("starting network listener on %s: %w", listenAddress, err)
	}
	return &Server{
		httpServer: &http.Server{Addr: listenAddress, Handler: handler},
		listener:   listener,
	}, nil
}

// Addr returns the bound address, useful when listening on port 0 in tests.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		klog.Infof("listening on http://%s", s.Addr())
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("running http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			klog.Errorf("HTTP server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}
