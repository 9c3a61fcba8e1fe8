package client

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Mmx233/FSearch/config"
	"github.com/Mmx233/FSearch/protocol"
	"github.com/rs/zerolog"
)

// startStub accepts a single connection on a loopback listener and runs script
// on it. The listener and the script goroutine are cleaned up with the test.
func startStub(t *testing.T, script func(conn net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start stub server: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}()

	t.Cleanup(func() {
		ln.Close()
		wg.Wait()
	})
	return ln.Addr().String()
}

// acceptHandshake reads the client's CONNECT and answers with WELCOME then CONNECT.
func acceptHandshake(t *testing.T, conn net.Conn) bool {
	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		t.Errorf("stub: read CONNECT: %v", err)
		return false
	}
	if msg.Type != protocol.MsgConnect {
		t.Errorf("stub: expected CONNECT, got %s", msg.Type)
		return false
	}
	if err := protocol.WriteMessage(conn, protocol.MsgWelcome, "queued"); err != nil {
		t.Errorf("stub: write WELCOME: %v", err)
		return false
	}
	if err := protocol.WriteMessage(conn, protocol.MsgConnect, "connected"); err != nil {
		t.Errorf("stub: write CONNECT: %v", err)
		return false
	}
	return true
}

// drain blocks until the client closes its end.
func drain(conn net.Conn) {
	_, _ = io.Copy(io.Discard, conn)
}

func testConfig(addr string) *config.Client {
	return &config.Client{
		Server:           addr,
		DialTimeout:      time.Second,
		IOTimeout:        5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
	}
}

func TestSession_ConnectSearchDisconnect(t *testing.T) {
	gotDisconnect := make(chan struct{})

	addr := startStub(t, func(conn net.Conn) {
		if !acceptHandshake(t, conn) {
			return
		}

		replies := map[string]string{
			"king": "doc1.txt\ndoc2.txt",
			"zzz":  "",
		}
		for {
			msg, err := protocol.ReadMessage(conn)
			if err != nil {
				t.Errorf("stub: read request: %v", err)
				return
			}
			switch msg.Type {
			case protocol.MsgSearchFiles:
				_ = protocol.WriteMessage(conn, protocol.MsgSearchFiles, replies[msg.Payload])
			case protocol.MsgDisconnect:
				if msg.Payload != "" {
					t.Errorf("stub: DISCONNECT payload should be empty, got %q", msg.Payload)
				}
				close(gotDisconnect)
				drain(conn)
				return
			default:
				t.Errorf("stub: unexpected request %s", msg.Type)
				return
			}
		}
	})

	s, err := Dial(context.Background(), testConfig(addr), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if s.State() != StateReady {
		t.Fatalf("expected state ready, got %s", s.State())
	}
	if w := s.Welcome(); len(w) != 1 || w[0] != "queued" {
		t.Errorf("unexpected welcome payloads: %q", w)
	}
	if s.Ack() != "connected" {
		t.Errorf("unexpected ack payload: %q", s.Ack())
	}

	result, err := s.Search(context.Background(), "king")
	if err != nil {
		t.Fatalf("Search(king) failed: %v", err)
	}
	if result != "doc1.txt\ndoc2.txt" {
		t.Fatalf("Search(king): got %q", result)
	}

	result, err = s.Search(context.Background(), "zzz")
	if err != nil {
		t.Fatalf("Search(zzz) failed: %v", err)
	}
	if result != "" {
		t.Fatalf("Search(zzz): expected empty result, got %q", result)
	}

	s.Disconnect()
	if s.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", s.State())
	}

	select {
	case <-gotDisconnect:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received DISCONNECT")
	}
}

func TestSession_ConnectSendsGreeting(t *testing.T) {
	greeting := make(chan string, 1)

	addr := startStub(t, func(conn net.Conn) {
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			t.Errorf("stub: read CONNECT: %v", err)
			return
		}
		greeting <- msg.Payload
		_ = protocol.WriteMessage(conn, protocol.MsgConnect, "ok")
		drain(conn)
	})

	conf := testConfig(addr)
	conf.Greeting = "Hello from test client"

	s, err := Dial(context.Background(), conf, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Disconnect()

	if got := <-greeting; got != "Hello from test client" {
		t.Fatalf("unexpected greeting: %q", got)
	}
}

func TestSession_HandshakeSkipsNonConnectFrames(t *testing.T) {
	addr := startStub(t, func(conn net.Conn) {
		if _, err := protocol.ReadMessage(conn); err != nil {
			return
		}
		_ = protocol.WriteMessage(conn, protocol.MsgWelcome, "first")
		_ = protocol.WriteMessage(conn, protocol.MsgUnknown, "")
		_ = protocol.WriteMessage(conn, protocol.MsgSearchFiles, "stray.txt")
		_ = protocol.WriteMessage(conn, protocol.MsgWelcome, "second")
		_ = protocol.WriteMessage(conn, protocol.MsgConnect, "ok")
		drain(conn)
	})

	s, err := Dial(context.Background(), testConfig(addr), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Disconnect()

	if s.State() != StateReady {
		t.Fatalf("expected state ready, got %s", s.State())
	}
	w := s.Welcome()
	if len(w) != 2 || w[0] != "first" || w[1] != "second" {
		t.Fatalf("welcome payloads out of order: %q", w)
	}
}

func TestSession_HandshakeTimeout(t *testing.T) {
	addr := startStub(t, func(conn net.Conn) {
		if _, err := protocol.ReadMessage(conn); err != nil {
			return
		}
		_ = protocol.WriteMessage(conn, protocol.MsgWelcome, "queued")
		drain(conn) // never acknowledge
	})

	conf := testConfig(addr)
	conf.HandshakeTimeout = 200 * time.Millisecond

	s := New(conf, zerolog.Nop())
	start := time.Now()
	err := s.Connect(context.Background())
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("expected ErrHandshakeTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("handshake bound not honored, took %v", elapsed)
	}
	if s.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", s.State())
	}
}

func TestSession_HandshakeFrameLimit(t *testing.T) {
	addr := startStub(t, func(conn net.Conn) {
		if _, err := protocol.ReadMessage(conn); err != nil {
			return
		}
		for i := 0; i < 5; i++ {
			_ = protocol.WriteMessage(conn, protocol.MsgWelcome, "still queued")
		}
		drain(conn)
	})

	conf := testConfig(addr)
	conf.MaxHandshakeFrames = 3

	_, err := Dial(context.Background(), conf, zerolog.Nop())
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("expected ErrHandshakeTimeout, got %v", err)
	}
}

func TestSession_HandshakeDecodeError(t *testing.T) {
	addr := startStub(t, func(conn net.Conn) {
		if _, err := protocol.ReadMessage(conn); err != nil {
			return
		}
		var header [protocol.HeaderSize]byte
		binary.BigEndian.PutUint32(header[0:4], 99)
		_, _ = conn.Write(header[:])
		drain(conn)
	})

	_, err := Dial(context.Background(), testConfig(addr), zerolog.Nop())
	if !errors.Is(err, protocol.ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestSession_ConnectionFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	s := New(testConfig(addr), zerolog.Nop())
	err = s.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailure) {
		t.Fatalf("expected ErrConnectionFailure, got %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", s.State())
	}

	// a failed session cannot be reused
	if err := s.Connect(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on reuse, got %v", err)
	}
}

func TestSession_ConnectTwice(t *testing.T) {
	addr := startStub(t, func(conn net.Conn) {
		if acceptHandshake(t, conn) {
			drain(conn)
		}
	})

	s, err := Dial(context.Background(), testConfig(addr), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("expected error connecting a ready session")
	}
	if s.State() != StateReady {
		t.Fatalf("second Connect must not disturb the session, state %s", s.State())
	}
}

func TestSession_SearchProtocolViolation(t *testing.T) {
	addr := startStub(t, func(conn net.Conn) {
		if !acceptHandshake(t, conn) {
			return
		}
		if _, err := protocol.ReadMessage(conn); err != nil {
			return
		}
		_ = protocol.WriteMessage(conn, protocol.MsgWelcome, "not a search result")
		drain(conn)
	})

	s, err := Dial(context.Background(), testConfig(addr), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	_, err = s.Search(context.Background(), "king")
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", s.State())
	}

	_, err = s.Search(context.Background(), "king")
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}

	s.Disconnect()
}

func TestSession_SearchIncompleteReply(t *testing.T) {
	addr := startStub(t, func(conn net.Conn) {
		if !acceptHandshake(t, conn) {
			return
		}
		if _, err := protocol.ReadMessage(conn); err != nil {
			return
		}
		frame := protocol.Encode(protocol.MsgSearchFiles, "doc1.txt")
		_, _ = conn.Write(frame[:6])
		// returning closes the connection mid-header
	})

	s, err := Dial(context.Background(), testConfig(addr), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	_, err = s.Search(context.Background(), "king")
	if !errors.Is(err, protocol.ErrIncompleteFrame) {
		t.Fatalf("expected ErrIncompleteFrame, got %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", s.State())
	}
}

func TestSession_SearchFragmentedReply(t *testing.T) {
	want := "doc1.txt\ndoc2.txt\ndoc3.txt"

	addr := startStub(t, func(conn net.Conn) {
		if !acceptHandshake(t, conn) {
			return
		}
		if _, err := protocol.ReadMessage(conn); err != nil {
			return
		}
		for _, b := range protocol.Encode(protocol.MsgSearchFiles, want) {
			if _, err := conn.Write([]byte{b}); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
		drain(conn)
	})

	s, err := Dial(context.Background(), testConfig(addr), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Disconnect()

	got, err := s.Search(context.Background(), "doc")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSession_SearchBeforeConnect(t *testing.T) {
	s := New(testConfig("127.0.0.1:1"), zerolog.Nop())

	_, err := s.Search(context.Background(), "king")
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("failed precondition must not change state, got %s", s.State())
	}
}

func TestSession_SearchContextCancel(t *testing.T) {
	addr := startStub(t, func(conn net.Conn) {
		if acceptHandshake(t, conn) {
			drain(conn) // never reply
		}
	})

	s, err := Dial(context.Background(), testConfig(addr), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = s.Search(ctx, "king")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", s.State())
	}
}

func TestSession_SearchTimeout(t *testing.T) {
	addr := startStub(t, func(conn net.Conn) {
		if acceptHandshake(t, conn) {
			drain(conn)
		}
	})

	conf := testConfig(addr)
	conf.IOTimeout = 100 * time.Millisecond

	s, err := Dial(context.Background(), conf, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	_, err = s.Search(context.Background(), "king")
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", s.State())
	}
}

func TestSession_DisconnectBrokenStream(t *testing.T) {
	closed := make(chan struct{})
	addr := startStub(t, func(conn net.Conn) {
		acceptHandshake(t, conn)
		conn.Close()
		close(closed)
	})

	s, err := Dial(context.Background(), testConfig(addr), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	<-closed

	s.Disconnect()
	s.Disconnect()

	if s.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", s.State())
	}
}

func TestSession_DisconnectBeforeConnect(t *testing.T) {
	s := New(testConfig("127.0.0.1:1"), zerolog.Nop())
	s.Disconnect()

	if s.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", s.State())
	}
	if err := s.Connect(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestFiles(t *testing.T) {
	cases := []struct {
		payload string
		want    []string
	}{
		{"", nil},
		{"doc1.txt", []string{"doc1.txt"}},
		{"doc1.txt\ndoc2.txt", []string{"doc1.txt", "doc2.txt"}},
		{"doc1.txt\n\n doc2.txt \n", []string{"doc1.txt", "doc2.txt"}},
	}

	for _, tc := range cases {
		got := Files(tc.payload)
		if len(got) != len(tc.want) {
			t.Fatalf("Files(%q): got %q, want %q", tc.payload, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("Files(%q): got %q, want %q", tc.payload, got, tc.want)
			}
		}
	}
}

func TestState_String(t *testing.T) {
	names := map[State]string{
		StateDisconnected: "disconnected",
		StateHandshaking:  "handshaking",
		StateReady:        "ready",
		StateClosed:       "closed",
		State(42):         "unknown",
	}
	for st, want := range names {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String(): got %q, want %q", st, got, want)
		}
	}
}
