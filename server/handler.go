package server

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/Mmx233/FSearch/protocol"
)

// handleConn serves a single client connection: WELCOME on accept, then one
// reply per request until DISCONNECT, an idle timeout or a broken stream.
func (s *Server) handleConn(id uint64, conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With().
		Uint64("conn_id", id).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	s.totalConns.Add(1)
	logger.Info().Int64("active", s.activeConns.Add(1)).Msg("client connected")
	defer func() {
		logger.Info().Int64("active", s.activeConns.Add(-1)).Msg("client disconnected")
	}()

	if err := s.write(conn, protocol.MsgWelcome, s.config.Welcome); err != nil {
		logger.Debug().Err(err).Msg("send WELCOME failed")
		return
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))

		msg, err := protocol.ReadMessageLimit(conn, s.config.MaxPayloadSize)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownMessageType) {
				// the frame was consumed, the stream is still aligned
				logger.Debug().Uint32("tag", uint32(msg.Type)).Msg("unknown request type")
				if err := s.write(conn, protocol.MsgUnknown, ""); err != nil {
					return
				}
				continue
			}
			if !errors.Is(err, protocol.ErrIncompleteFrame) && !errors.Is(err, net.ErrClosed) {
				logger.Debug().Err(err).Msg("read request failed")
			}
			return
		}

		logger.Debug().Stringer("type", msg.Type).Str("payload", msg.Payload).Msg("received request")

		var reply protocol.MessageType
		var payload string
		switch msg.Type {
		case protocol.MsgConnect:
			reply, payload = protocol.MsgConnect, s.config.Ack
		case protocol.MsgDisconnect:
			logger.Debug().Msg("client requested disconnect")
			return
		case protocol.MsgSearchFiles:
			reply, payload = protocol.MsgSearchFiles, strings.Join(s.searcher.Search(msg.Payload), "\n")
		default:
			reply = protocol.MsgUnknown
		}

		if err := s.write(conn, reply, payload); err != nil {
			logger.Debug().Err(err).Msg("send reply failed")
			return
		}
		logger.Debug().Stringer("type", reply).Msg("sent reply")
	}
}

func (s *Server) write(conn net.Conn, msgType protocol.MessageType, payload string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.config.IdleTimeout))
	return protocol.WriteMessageLimit(conn, msgType, payload, s.config.MaxPayloadSize)
}
