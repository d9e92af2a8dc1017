package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/shared"
)

// CallbackServer serves a [Router] on a local address for the duration of one authorization.
type CallbackServer struct {
	srv      *http.Server
	listener net.Listener
	logger   *log.Logger
	done     chan error
}

// NewCallbackServer prepares a server for handler on addr (host:port). Nothing is bound until [CallbackServer.Start].
func NewCallbackServer(addr string, handler http.Handler, logger *log.Logger) *CallbackServer {
	return &CallbackServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: shared.WithLogger(logger, "component", "server"),
		done:   make(chan error, 1),
	}
}

// Start binds the listener and serves in the background.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.listener = ln
	s.logger.Debug("callback server listening", "addr", ln.Addr().String())

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *CallbackServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends. Later calls are no-ops.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("callback server shutdown: %w", err)
	}
	err := <-s.done
	s.listener = nil
	return err
}

// WaitForCallback blocks until h produces a result, ctx ends or timeout elapses. A zero timeout waits on ctx alone.
func WaitForCallback(ctx context.Context, h *OAuthHandler, timeout time.Duration) (auth.Credential, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case result, ok := <-h.Result():
		if !ok {
			return auth.Credential{}, fmt.Errorf("%w: callback already consumed", shared.ErrAuthFailed)
		}
		if err := result.Error(); err != nil {
			return auth.Credential{}, err
		}
		return result.Credential, nil
	case <-ctx.Done():
		return auth.Credential{}, fmt.Errorf("%w: waiting for callback: %w", shared.ErrAuthFailed, ctx.Err())
	}
}
