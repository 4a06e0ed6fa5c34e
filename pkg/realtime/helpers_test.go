package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeWire is an in-memory stand-in for a websocket connection. Reads block
// on the inbound channel; writes are collected for inspection.
type fakeWire struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
	inbound chan []byte
}

func newFakeWire() *fakeWire {
	return &fakeWire{inbound: make(chan []byte, 16)}
}

func (w *fakeWire) ReadMessage() (int, []byte, error) {
	data, ok := <-w.inbound
	if !ok {
		return 0, nil, errors.New("wire closed")
	}
	return 1, data, nil
}

func (w *fakeWire) WriteMessage(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("wire closed")
	}
	w.written = append(w.written, data)
	return nil
}

func (w *fakeWire) SetReadLimit(int64)               {}
func (w *fakeWire) SetReadDeadline(time.Time) error  { return nil }
func (w *fakeWire) SetWriteDeadline(time.Time) error { return nil }
func (w *fakeWire) SetPongHandler(func(string) error) {}

func (w *fakeWire) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.inbound)
	}
	return nil
}

func newTestClient() *Client {
	return NewClient(newFakeWire())
}

// nextFrame pops the next queued outbound frame of a client, decoded.
func nextFrame(t *testing.T, c *Client) *Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		env, err := DecodeEnvelope(data)
		require.NoError(t, err)
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame queued within 1s")
		return nil
	}
}

// noFrame asserts the client has nothing queued.
func noFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame queued: %s", data)
	default:
	}
}

func payloadString(t *testing.T, env *Envelope) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(env.Payload, &s))
	return s
}
