package model

import "time"

// Message is a persisted chat message. IDs are snowflakes so a chat's
// messages sort by creation time under the (chat_id, id) clustering key.
type Message struct {
	ID          int64     `json:"id"`
	ChatID      string    `json:"chat_id"`
	SenderID    string    `json:"sender_id"`
	Sender      *Identity `json:"sender,omitempty"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageEventKind tags entries on the committed-message stream consumed by
// the archiver.
type MessageEventKind string

const (
	MessageCreated MessageEventKind = "created"
	MessageDeleted MessageEventKind = "deleted"
	MessagesRead   MessageEventKind = "read"
)

// MessageEvent is the Kafka record published after a message mutation
// commits. Recipients is the chat membership at commit time minus the actor.
type MessageEvent struct {
	Kind       MessageEventKind `json:"kind"`
	ChatID     string           `json:"chat_id"`
	MessageID  int64            `json:"message_id,omitempty"`
	ActorID    string           `json:"actor_id"`
	Recipients []string         `json:"recipients,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
