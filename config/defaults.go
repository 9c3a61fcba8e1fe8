package config

import (
	"time"

	"github.com/Mmx233/FSearch/protocol"
	"github.com/google/uuid"
)

// Default timeout and handshake values
const (
	// DefaultDialTimeout bounds the TCP connect
	DefaultDialTimeout = 5 * time.Second

	// DefaultIOTimeout bounds every single write or read on an established session
	DefaultIOTimeout = 30 * time.Second

	// DefaultHandshakeTimeout bounds the wait for the server's CONNECT acknowledgment
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultMaxHandshakeFrames is how many frames the handshake reads before giving up on CONNECT
	DefaultMaxHandshakeFrames = 16

	// DefaultMaxPayloadSize caps a single received payload
	DefaultMaxPayloadSize uint32 = protocol.DefaultMaxPayloadSize

	// DefaultGreeting is the CONNECT payload; servers must not depend on it
	DefaultGreeting = "Hello from FSearch client"
)

// Default load test values
const (
	DefaultBenchUsers    = 10
	DefaultBenchDuration = 30 * time.Second
)

// DefaultKeywords are the search words a load test picks from
var DefaultKeywords = []string{"apple", "king", "the", "love", "book", "cat"}

// Default fixture server values
const (
	DefaultServerListen      = "127.0.0.1:5000"
	DefaultServerWelcome     = "[Server] You've been added to the queue. Please await."
	DefaultServerAck         = "[Server] Connected successfully!"
	DefaultServerIdleTimeout = 5 * time.Minute
)

// GenerateSessionID generates a new UUID for use as a session identifier.
// It only tags logs and reports, it never goes on the wire.
func GenerateSessionID() string {
	return uuid.New().String()
}
