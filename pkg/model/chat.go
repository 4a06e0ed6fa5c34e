package model

import "time"

// Chat is a direct or group conversation. Members holds user IDs; the admin
// is only meaningful for group chats.
type Chat struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	IsGroup       bool      `json:"is_group"`
	AdminID       string    `json:"admin_id,omitempty"`
	Members       []string  `json:"members"`
	LastMessageID int64     `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasMember reports whether userID is a participant of the chat.
func (c *Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// ChatSummary is the event/API representation of a chat: member IDs resolved
// to identities and the last message inlined for list rendering.
type ChatSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	IsGroup     bool       `json:"is_group"`
	AdminID     string     `json:"admin_id,omitempty"`
	Members     []Identity `json:"members"`
	LastMessage *Message   `json:"last_message,omitempty"`
	UnreadCount int64      `json:"unread_count,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
