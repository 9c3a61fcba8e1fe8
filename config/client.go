package config

import (
	"fmt"
	"time"
)

type Client struct {
	Server             string        `yaml:"server"`               // host:port
	Greeting           string        `yaml:"greeting"`             // CONNECT payload
	DialTimeout        time.Duration `yaml:"dial_timeout"`         // TCP connect timeout, default 5s
	IOTimeout          time.Duration `yaml:"io_timeout"`           // Per read/write timeout, default 30s
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`    // Wait for CONNECT acknowledgment, default 10s
	MaxHandshakeFrames int           `yaml:"max_handshake_frames"` // Frames read before CONNECT, default 16
	MaxPayloadSize     uint32        `yaml:"max_payload_size"`     // Largest accepted payload in bytes
}

// ApplyDefaults fills zero-value fields with their defaults.
func (c *Client) ApplyDefaults() {
	if c.Greeting == "" {
		c.Greeting = DefaultGreeting
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = DefaultIOTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.MaxHandshakeFrames <= 0 {
		c.MaxHandshakeFrames = DefaultMaxHandshakeFrames
	}
	if c.MaxPayloadSize == 0 {
		c.MaxPayloadSize = DefaultMaxPayloadSize
	}
}

// Validate checks the client configuration.
func (c *Client) Validate() error {
	if err := ValidateAddress(c.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
