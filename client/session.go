package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mmx233/FSearch/config"
	"github.com/Mmx233/FSearch/protocol"
	"github.com/rs/zerolog"
)

// Session errors
var (
	ErrConnectionFailure = errors.New("connection failure")
	ErrHandshakeTimeout  = errors.New("handshake timeout")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrNotReady          = errors.New("session not ready")
	ErrSessionClosed     = errors.New("session closed")
)

// State represents the lifecycle state of a session
type State int32

const (
	StateDisconnected State = iota
	StateHandshaking
	StateReady
	StateClosed
)

// String returns a string representation of the session state
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one client connection to a search server. The protocol is
// strictly request/response, so a session carries at most one exchange at a
// time; calls from several goroutines are serialized.
//
// Any fault closes the session and releases the connection. A closed session
// cannot be reused.
type Session struct {
	id     string
	config *config.Client

	mu      sync.Mutex // serializes exchanges on conn
	conn    net.Conn
	state   atomic.Int32
	welcome []string
	ack     string

	logger zerolog.Logger
}

// New creates a disconnected session for the configured server.
func New(conf *config.Client, logger zerolog.Logger) *Session {
	conf.ApplyDefaults()

	id := config.GenerateSessionID()
	s := &Session{
		id:     id,
		config: conf,
		logger: logger.With().
			Str("session_id", id).
			Str("server_addr", conf.Server).
			Logger(),
	}
	s.state.Store(int32(StateDisconnected))
	return s
}

// Dial creates a session and runs Connect on it.
func Dial(ctx context.Context, conf *config.Client, logger zerolog.Logger) (*Session, error) {
	s := New(conf, logger)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the local session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// ServerAddr returns the address this session dials.
func (s *Session) ServerAddr() string {
	return s.config.Server
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Welcome returns the WELCOME payloads received during the handshake, in arrival order.
func (s *Session) Welcome() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.welcome...)
}

// Ack returns the payload of the server's CONNECT acknowledgment.
func (s *Session) Ack() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ack
}

// Connect opens the TCP stream, sends CONNECT and waits for the server's
// CONNECT acknowledgment. Frames of other types that arrive first are skipped.
//
// The wait is bounded by the configured handshake timeout and frame count;
// exceeding either fails with ErrHandshakeTimeout.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateDisconnected {
		if st == StateClosed {
			return ErrSessionClosed
		}
		return fmt.Errorf("connect: session already %s", st)
	}
	s.state.Store(int32(StateHandshaking))
	s.logger.Debug().Msg("connecting to server")

	dialer := net.Dialer{Timeout: s.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.config.Server)
	if err != nil {
		s.state.Store(int32(StateClosed))
		return fmt.Errorf("%w: dial %s: %w", ErrConnectionFailure, s.config.Server, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			s.logger.Warn().Err(err).Msg("set TCP_NODELAY failed")
		}
	}
	s.conn = conn

	disarm := s.arm(ctx, s.config.HandshakeTimeout)
	err = s.handshake(ctx)
	if cerr := disarm(); err == nil {
		err = cerr
	}
	if err != nil {
		return s.fail(ctx, "handshake", err)
	}

	s.state.Store(int32(StateReady))
	s.logger.Info().Str("ack", s.ack).Msg("connected to server")
	return nil
}

func (s *Session) handshake(ctx context.Context) error {
	if err := protocol.WriteMessageLimit(s.conn, protocol.MsgConnect, s.config.Greeting, s.config.MaxPayloadSize); err != nil {
		return err
	}

	for range s.config.MaxHandshakeFrames {
		msg, err := protocol.ReadMessageLimit(s.conn, s.config.MaxPayloadSize)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%w: no CONNECT within %s", ErrHandshakeTimeout, s.config.HandshakeTimeout)
			}
			return err
		}

		switch msg.Type {
		case protocol.MsgConnect:
			s.ack = msg.Payload
			return nil
		case protocol.MsgWelcome:
			s.welcome = append(s.welcome, msg.Payload)
		}
		s.logger.Debug().
			Stringer("type", msg.Type).
			Str("payload", msg.Payload).
			Msg("skipping frame during handshake")
	}

	return fmt.Errorf("%w: no CONNECT within %d frames", ErrHandshakeTimeout, s.config.MaxHandshakeFrames)
}

// Search sends one SEARCHFILES request and waits for its reply. An empty
// result means no file matched. The keyword is sent as given.
func (s *Session) Search(ctx context.Context, keyword string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st := s.State(); st {
	case StateReady:
	case StateClosed:
		return "", ErrSessionClosed
	default:
		return "", fmt.Errorf("%w: session is %s", ErrNotReady, st)
	}

	disarm := s.arm(ctx, s.config.IOTimeout)
	msg, err := s.exchange(protocol.MsgSearchFiles, keyword)
	if cerr := disarm(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", s.fail(ctx, "search", err)
	}

	if msg.Type != protocol.MsgSearchFiles {
		return "", s.fail(ctx, "search", fmt.Errorf("%w: got %s reply to %s", ErrProtocolViolation, msg.Type, protocol.MsgSearchFiles))
	}

	s.logger.Debug().Str("keyword", keyword).Int("bytes", len(msg.Payload)).Msg("search completed")
	return msg.Payload, nil
}

// exchange writes one request frame and reads one reply frame.
func (s *Session) exchange(msgType protocol.MessageType, payload string) (protocol.Message, error) {
	if err := protocol.WriteMessageLimit(s.conn, msgType, payload, s.config.MaxPayloadSize); err != nil {
		return protocol.Message{}, err
	}
	return protocol.ReadMessageLimit(s.conn, s.config.MaxPayloadSize)
}

// Disconnect sends DISCONNECT and closes the stream. It never fails: errors
// while tearing down are logged. Safe to call multiple times and in any state.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := State(s.state.Swap(int32(StateClosed)))
	if s.conn == nil {
		return
	}

	if prev == StateReady {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.IOTimeout)); err != nil {
			s.logger.Debug().Err(err).Msg("set write deadline failed")
		}
		if err := protocol.WriteMessage(s.conn, protocol.MsgDisconnect, ""); err != nil {
			s.logger.Debug().Err(err).Msg("send DISCONNECT failed")
		}
	}

	s.closeConn()
	s.logger.Info().Msg("disconnected from server")
}

// arm bounds the next exchange by timeout or the context deadline, whichever
// comes first, and makes context cancellation interrupt blocked I/O. The
// returned func must be called once the exchange is over; it reports the
// context error if cancellation fired.
func (s *Session) arm(ctx context.Context, timeout time.Duration) func() error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		s.logger.Debug().Err(err).Msg("set deadline failed")
	}

	conn := s.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	return func() error {
		if !stop() {
			return context.Cause(ctx)
		}
		return nil
	}
}

// fail closes the session after a fault and returns the error to report.
func (s *Session) fail(ctx context.Context, op string, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) && errors.Is(err, os.ErrDeadlineExceeded) {
		err = cause
	}
	err = fmt.Errorf("%s: %w", op, err)

	s.state.Store(int32(StateClosed))
	s.closeConn()
	s.logger.Debug().Err(err).Msg("session closed after fault")
	return err
}

func (s *Session) closeConn() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("close connection failed")
	}
	s.conn = nil
}

// Files splits a SEARCHFILES payload into file names, skipping empty lines.
func Files(payload string) []string {
	var files []string
	for _, f := range strings.Split(payload, "\n") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}
