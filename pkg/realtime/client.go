package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mahaj/baithak/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer.
	maxMessageSize = 4096

	// Outbound queue depth per connection. Frames past this are dropped.
	sendQueueSize = 256
)

// Wire is the subset of *websocket.Conn the client needs. Tests substitute
// an in-memory pipe.
type Wire interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// HandlerFunc consumes the payload of one inbound event.
type HandlerFunc func(payload json.RawMessage)

// Client is one live connection. The resolved identity and the handler table
// live here rather than on the transport object, so teardown can release
// both on every exit path.
type Client struct {
	ID string

	wire Wire
	send chan []byte

	mu       sync.Mutex
	identity *model.Identity
	handlers map[string]HandlerFunc
	onClose  []func(*Client)

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(wire Wire) *Client {
	return &Client{
		ID:       uuid.NewString(),
		wire:     wire,
		send:     make(chan []byte, sendQueueSize),
		handlers: make(map[string]HandlerFunc),
		done:     make(chan struct{}),
	}
}

// Identity returns the resolved identity, or nil before authentication.
func (c *Client) Identity() *model.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Client) setIdentity(ident *model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = ident
}

// On registers the handler for an inbound event tag, replacing any previous
// one.
func (c *Client) On(event string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = fn
}

// Off deregisters the handler for an event tag.
func (c *Client) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

func (c *Client) handler(event string) HandlerFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[event]
}

// OnClose registers a teardown hook. Hooks run exactly once, on transport
// close or forced disconnect, in registration order.
func (c *Client) OnClose(fn func(*Client)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

// Emit frames and queues an event for this connection. Delivery is FIFO in
// emission order; if the peer cannot drain the queue the frame is dropped.
func (c *Client) Emit(event string, payload any) error {
	data, err := EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.enqueue(data)
	return nil
}

func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Printf("Client %s send queue full, dropping frame", c.ID)
	}
}

// Close tears the connection down: runs close hooks (room release, presence),
// clears the handler table and closes the transport. Safe to call from any
// goroutine, any number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		hooks := c.onClose
		c.onClose = nil
		c.handlers = make(map[string]HandlerFunc)
		c.mu.Unlock()

		for _, fn := range hooks {
			fn(c)
		}
		c.wire.Close()
	})
}

// ReadPump reads frames from the wire and dispatches them to registered
// handlers until the transport fails or closes. Must run in its own
// goroutine; it owns all reads.
func (c *Client) ReadPump() {
	defer c.Close()
	c.wire.SetReadLimit(maxMessageSize)
	c.wire.SetReadDeadline(time.Now().Add(pongWait))
	c.wire.SetPongHandler(func(string) error { c.wire.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, data, err := c.wire.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Client %s read error: %v", c.ID, err)
			}
			return
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			log.Printf("Client %s sent an undecodable frame: %v", c.ID, err)
			continue
		}

		if fn := c.handler(env.Event); fn != nil {
			fn(env.Payload)
		}
	}
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with pings. Must run in its own goroutine; it owns all writes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			c.wire.SetWriteDeadline(time.Now().Add(writeWait))
			c.wire.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.wire.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.wire.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.wire.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.wire.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
