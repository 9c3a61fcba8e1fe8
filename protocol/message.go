package protocol

import "fmt"

// MessageType is the u32 tag carried in the first four bytes of every frame.
type MessageType uint32

// Message types
const (
	MsgConnect     MessageType = 0 // Session initiation and its acknowledgment
	MsgDisconnect  MessageType = 1 // Session termination, no reply
	MsgWelcome     MessageType = 2 // Server greeting sent before the handshake completes
	MsgUnknown     MessageType = 3 // No type observed yet, or unrecognized request
	MsgSearchFiles MessageType = 4 // Search request and search result
)

var messageTypeNames = [...]string{
	MsgConnect:     "CONNECT",
	MsgDisconnect:  "DISCONNECT",
	MsgWelcome:     "WELCOME",
	MsgUnknown:     "UNKNOWN",
	MsgSearchFiles: "SEARCHFILES",
}

// Valid reports whether t belongs to the closed set of message types.
func (t MessageType) Valid() bool {
	return t <= MsgSearchFiles
}

// String returns the wire name of the message type.
func (t MessageType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("MessageType(%d)", uint32(t))
	}
	return messageTypeNames[t]
}

// Message is one decoded frame.
type Message struct {
	Type    MessageType
	Payload string
}

// Wire format: [4 bytes type][4 bytes length][payload], both header fields big-endian
const (
	HeaderSize = 8

	// DefaultMaxPayloadSize caps a single payload when no explicit limit is given
	DefaultMaxPayloadSize = 10 * 1024 * 1024
)
