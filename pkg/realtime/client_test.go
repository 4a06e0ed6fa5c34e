package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/baithak/pkg/model"
)

func TestEmitPreservesOrder(t *testing.T) {
	req := require.New(t)
	c := newTestClient()

	for _, content := range []string{"one", "two", "three"} {
		req.NoError(c.Emit(EventMessageReceived, content))
	}

	for _, want := range []string{"one", "two", "three"} {
		env := nextFrame(t, c)
		req.Equal(want, payloadString(t, env))
	}
}

func TestHandlerRegistration(t *testing.T) {
	req := require.New(t)
	c := newTestClient()

	var got string
	c.On(EventJoinChat, func(payload json.RawMessage) {
		json.Unmarshal(payload, &got)
	})

	c.handler(EventJoinChat)([]byte(`"c1"`))
	req.Equal("c1", got)

	c.Off(EventJoinChat)
	req.Nil(c.handler(EventJoinChat))
}

func TestReadPumpDispatchesAndTearsDown(t *testing.T) {
	req := require.New(t)
	wire := newFakeWire()
	c := NewClient(wire)

	joined := make(chan string, 1)
	c.On(EventJoinChat, func(payload json.RawMessage) {
		var chatID string
		json.Unmarshal(payload, &chatID)
		joined <- chatID
	})

	closed := make(chan struct{})
	c.OnClose(func(*Client) { close(closed) })

	go c.ReadPump()

	frame, err := EncodeEnvelope(EventJoinChat, "c1")
	req.NoError(err)
	wire.inbound <- frame

	select {
	case chatID := <-joined:
		req.Equal("c1", chatID)
	case <-time.After(time.Second):
		t.Fatal("handler not dispatched")
	}

	// Garbage frames are skipped, not fatal.
	wire.inbound <- []byte("garbage")

	wire.Close()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close hooks did not run on transport close")
	}

	// Handlers are cleared on teardown.
	req.Nil(c.handler(EventJoinChat))
}

func TestCloseRunsHooksOnce(t *testing.T) {
	c := newTestClient()

	runs := 0
	c.OnClose(func(*Client) { runs++ })

	c.Close()
	c.Close()

	require.Equal(t, 1, runs)
}

func TestIdentityAttachment(t *testing.T) {
	req := require.New(t)
	c := newTestClient()
	req.Nil(c.Identity())

	c.setIdentity(&model.Identity{ID: "u1"})
	req.Equal("u1", c.Identity().ID)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	c := newTestClient()

	for i := 0; i < sendQueueSize+10; i++ {
		c.Emit(EventTyping, "c1")
	}

	// The queue holds exactly its capacity; overflow was dropped, not
	// blocked on.
	require.Len(t, c.send, sendQueueSize)
}
