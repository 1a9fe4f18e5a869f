package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"minhton/internal/logger"
)

// ServerOption configures a Server at construction, the same functional-
// option idiom the teacher uses for its gRPC server and routing table.
type ServerOption func(*Server)

// WithServerLogger sets the logger used for accept/connection diagnostics.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.lgr = l }
}

// Server accepts length-prefixed TCP connections (§6.1) and dispatches
// each decoded envelope to a Handler. Inbound connections are only read:
// the overlay's messages are fire-and-forget, not request/response RPCs,
// and a reply is sent as a new envelope through the sender's Pool to the
// peer's listening address.
type Server struct {
	listener net.Listener
	handler  Handler
	lgr      logger.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New wraps an already-bound listener; cmd/node binds it with net.Listen
// on the configured bind address.
func New(lis net.Listener, handler Handler, opts ...ServerOption) *Server {
	s := &Server{
		listener: lis,
		handler:  handler,
		lgr:      &logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections until Close is called or the listener errors,
// blocking the caller.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("tcp server stopped accepting: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			runReadLoop(ctx, conn, s.handler, s.lgr)
		}()
	}
}

// Close stops accepting new connections; in-flight connections finish on
// their own and Serve returns once they have.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	return s.listener.Close()
}
