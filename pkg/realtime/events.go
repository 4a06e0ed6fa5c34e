package realtime

import (
	"encoding/json"
	"fmt"
)

// Event tags are the wire contract with the web client; the strings must not
// change.
const (
	EventConnected       = "connected"
	EventSocketError     = "socket_error"
	EventJoinChat        = "joinChat"
	EventTyping          = "typing"
	EventStopTyping      = "stopTyping"
	EventNewChat         = "newChat"
	EventMessageReceived = "messageReceived"
	EventMessageDeleted  = "messageDeleted"
	EventUpdateGroupName = "updateGroupName"
	EventLeaveChat       = "leaveChat"
)

// Envelope frames every event crossing the websocket, in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEnvelope frames a tagged payload for the wire.
func EncodeEnvelope(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// DecodeEnvelope parses a frame received from a peer.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("decode envelope: missing event tag")
	}
	return &env, nil
}
