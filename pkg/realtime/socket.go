package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// PresenceTracker mirrors socket lifecycle into the online-users set.
type PresenceTracker interface {
	Connected(ctx context.Context, userID string) error
	Disconnected(ctx context.Context, userID string) error
}

// SocketServer upgrades handshakes, authenticates them and runs the
// per-connection event loop. It owns the process-wide registry.
type SocketServer struct {
	registry *Registry
	resolver *Resolver
	presence PresenceTracker
}

func NewSocketServer(registry *Registry, resolver *Resolver, presence PresenceTracker) *SocketServer {
	return &SocketServer{
		registry: registry,
		resolver: resolver,
		presence: presence,
	}
}

// Registry exposes the registry for the notifier wiring.
func (s *SocketServer) Registry() *Registry {
	return s.registry
}

// ServeHTTP handles the /ws endpoint. The transport is upgraded before
// authentication so failures can be surfaced to the peer as a socket_error
// event; a failed connection is never admitted to any room.
func (s *SocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	ident, err := s.resolver.Resolve(r.Context(), r)
	if err != nil {
		log.Printf("Handshake authentication failed: %v", err)
		s.reject(conn, err.Error())
		return
	}

	client := NewClient(conn)
	client.setIdentity(ident)
	s.admit(client, ident.ID)

	log.Printf("User %s connected on %s", ident.ID, client.ID)

	go client.WritePump()
	go client.ReadPump()
}

// reject sends exactly one socket_error frame and closes the transport.
func (s *SocketServer) reject(conn *websocket.Conn, reason string) {
	data, err := EncodeEnvelope(EventSocketError, reason)
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.TextMessage, data)
	}
	conn.Close()
}

// admit joins the connection to its identity room, mounts the inbound event
// handlers and arms teardown. The identity-room membership holds for the
// whole connection lifetime.
func (s *SocketServer) admit(client *Client, userID string) {
	s.registry.Join(client, userID)

	if s.presence != nil {
		if err := s.presence.Connected(context.Background(), userID); err != nil {
			log.Printf("Failed to record presence for %s: %v", userID, err)
		}
	}

	client.On(EventJoinChat, func(payload json.RawMessage) {
		chatID, ok := decodeChatID(payload)
		if !ok {
			return
		}
		s.registry.Join(client, chatID)
		log.Printf("User %s joined chat room %s", userID, chatID)
	})

	// Typing indicators are pure relays: no persistence, and membership of
	// the sender is deliberately not checked (see protocol notes).
	client.On(EventTyping, s.relay(client, EventTyping))
	client.On(EventStopTyping, s.relay(client, EventStopTyping))

	client.OnClose(func(c *Client) {
		s.registry.DropClient(c)
		if s.presence != nil {
			if err := s.presence.Disconnected(context.Background(), userID); err != nil {
				log.Printf("Failed to clear presence for %s: %v", userID, err)
			}
		}
		log.Printf("User %s disconnected from %s", userID, c.ID)
	})

	if err := client.Emit(EventConnected, nil); err != nil {
		log.Printf("Failed to emit connected to %s: %v", userID, err)
	}
}

func (s *SocketServer) relay(sender *Client, event string) HandlerFunc {
	return func(payload json.RawMessage) {
		chatID, ok := decodeChatID(payload)
		if !ok {
			return
		}
		if err := s.registry.Broadcast(chatID, event, chatID, sender); err != nil {
			log.Printf("Relay %s to room %s failed: %v", event, chatID, err)
		}
	}
}

func decodeChatID(payload json.RawMessage) (string, bool) {
	var chatID string
	if err := json.Unmarshal(payload, &chatID); err != nil || chatID == "" {
		return "", false
	}
	return chatID, true
}
