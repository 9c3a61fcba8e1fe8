package config

import (
	"fmt"
	"time"
)

// Server configures the fixture server. Results is a fixed keyword to file
// list table, not an index.
type Server struct {
	Listen         string              `yaml:"listen"`
	Welcome        string              `yaml:"welcome"`          // WELCOME payload sent on accept
	Ack            string              `yaml:"ack"`              // CONNECT acknowledgment payload
	IdleTimeout    time.Duration       `yaml:"idle_timeout"`     // Close connections silent for this long
	MaxPayloadSize uint32              `yaml:"max_payload_size"` // Largest accepted request payload
	SocketBuffer   int                 `yaml:"socket_buffer"`    // SO_RCVBUF/SO_SNDBUF in bytes, 0 keeps the OS default
	Results        map[string][]string `yaml:"results"`
}

// ApplyDefaults fills zero-value fields with their defaults.
func (s *Server) ApplyDefaults() {
	if s.Listen == "" {
		s.Listen = DefaultServerListen
	}
	if s.Welcome == "" {
		s.Welcome = DefaultServerWelcome
	}
	if s.Ack == "" {
		s.Ack = DefaultServerAck
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultServerIdleTimeout
	}
	if s.MaxPayloadSize == 0 {
		s.MaxPayloadSize = DefaultMaxPayloadSize
	}
}

// Validate checks the server configuration.
func (s *Server) Validate() error {
	if err := ValidateAddress(s.Listen); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if s.SocketBuffer < 0 {
		return fmt.Errorf("socket_buffer cannot be negative, got %d", s.SocketBuffer)
	}
	return nil
}
