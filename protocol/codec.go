package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Codec errors
var (
	ErrIncompleteFrame    = errors.New("incomplete frame")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidEncoding    = errors.New("payload is not valid UTF-8")
	ErrPayloadTooLarge    = errors.New("payload too large")
)

// Encode returns the frame for a message: type tag, payload length, payload bytes.
// It performs no validation; use WriteMessage to send frames on a stream.
func Encode(msgType MessageType, payload string) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	putHeader(frame[:HeaderSize], msgType, uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame
}

func putHeader(dst []byte, msgType MessageType, length uint32) {
	binary.BigEndian.PutUint32(dst[0:4], uint32(msgType))
	binary.BigEndian.PutUint32(dst[4:8], length)
}

// WriteMessage writes one frame to w using buffer pooling so the header and
// payload reach the writer in a single Write call.
func WriteMessage(w io.Writer, msgType MessageType, payload string) error {
	return WriteMessageLimit(w, msgType, payload, DefaultMaxPayloadSize)
}

// WriteMessageLimit is WriteMessage with an explicit payload size limit.
func WriteMessageLimit(w io.Writer, msgType MessageType, payload string, maxPayload uint32) error {
	if !msgType.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMessageType, uint32(msgType))
	}
	if uint64(len(payload)) > uint64(maxPayload) {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if !utf8.ValidString(payload) {
		return ErrInvalidEncoding
	}

	buf := GetBufferWithSize(HeaderSize + len(payload))
	defer PutBuffer(buf)

	var header [HeaderSize]byte
	putHeader(header[:], msgType, uint32(len(payload)))
	buf.Write(header[:])
	buf.WriteString(payload)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads one frame from r with the default payload limit.
func ReadMessage(r io.Reader) (Message, error) {
	return ReadMessageLimit(r, DefaultMaxPayloadSize)
}

// ReadMessageLimit reads exactly one frame from r. Partial reads are retried
// until the header and the full payload have arrived.
//
// A frame with an unrecognized type tag is consumed completely before
// ErrUnknownMessageType is returned, so the stream stays aligned on the next
// frame. The returned Message then carries the raw tag.
func ReadMessageLimit(r io.Reader, maxPayload uint32) (Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, readError("read header", err)
	}

	msgType := MessageType(binary.BigEndian.Uint32(header[0:4]))
	length := binary.BigEndian.Uint32(header[4:8])

	// Prevent excessive memory allocation
	if length > maxPayload {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, readError("read payload", err)
	}

	if !msgType.Valid() {
		return Message{Type: msgType}, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint32(msgType))
	}
	if !utf8.Valid(payload) {
		return Message{Type: msgType}, ErrInvalidEncoding
	}

	return Message{Type: msgType, Payload: string(payload)}, nil
}

func readError(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", op, ErrIncompleteFrame)
	}
	return fmt.Errorf("%s: %w", op, err)
}
