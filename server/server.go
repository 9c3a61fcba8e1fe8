package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Mmx233/FSearch/config"
	"github.com/Mmx233/FSearch/server/connid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server is a fixture search server. It speaks the server side of the wire
// protocol and delegates matching to a Searcher.
type Server struct {
	config   *config.Server
	searcher Searcher
	logger   zerolog.Logger

	mu    sync.Mutex
	conns map[uint64]net.Conn // connID -> conn
	wg    sync.WaitGroup

	// Connection tracking
	activeConns atomic.Int64
	totalConns  atomic.Uint64
}

// New creates a new server
func New(conf *config.Server, searcher Searcher) *Server {
	// Apply defaults to ensure all required fields have values
	conf.ApplyDefaults()

	return &Server{
		config:   conf,
		searcher: searcher,
		logger:   log.With().Str("com", "server").Logger(),
		conns:    make(map[uint64]net.Conn),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	if s.config.SocketBuffer > 0 {
		lc.Control = socketControl(s.config.SocketBuffer)
	}
	ln, err := lc.Listen(ctx, "tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or the listener fails.
// Open connections are closed and their handlers waited for before it returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("server started")

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	err := s.acceptTCP(ctx, ln)
	_ = ln.Close()
	s.shutdown()

	if ctx.Err() != nil {
		s.logger.Info().Msg("server shutting down")
		return ctx.Err()
	}
	return err
}

// acceptTCP accepts TCP connections
func (s *Server) acceptTCP(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error().Err(err).Msg("accept TCP connection failed")
			continue
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}

		// tracked before the handler starts so shutdown cannot miss it
		id := connid.Generate()
		s.track(id, conn)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(id)
			s.handleConn(id, conn)
		}()
	}
}

// ActiveConns returns the number of connections currently being served.
func (s *Server) ActiveConns() int64 {
	return s.activeConns.Load()
}

// TotalConns returns the number of connections accepted since start.
func (s *Server) TotalConns() uint64 {
	return s.totalConns.Load()
}

func (s *Server) track(id uint64, conn net.Conn) {
	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(id uint64) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// shutdown closes every open connection and waits for the handlers
func (s *Server) shutdown() {
	s.mu.Lock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Uint64("served", s.totalConns.Load()).Msg("server stopped")
}
