package store

import (
	"context"
	"errors"

	"github.com/gocql/gocql"

	"github.com/mahaj/baithak/pkg/model"
)

type MessageStore struct {
	db *Session
}

func NewMessageStore(db *Session) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Insert(ctx context.Context, m *model.Message) error {
	q := `INSERT INTO messages (chat_id, id, sender_id, content, attachments, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	return s.db.Query(q,
		m.ChatID, m.ID, m.SenderID, m.Content, m.Attachments, m.CreatedAt,
	).WithContext(ctx).Exec()
}

func (s *MessageStore) FindByID(ctx context.Context, chatID string, id int64) (*model.Message, error) {
	q := `SELECT chat_id, id, sender_id, content, attachments, created_at
		FROM messages WHERE chat_id = ? AND id = ?`
	var m model.Message
	err := s.db.Query(q, chatID, id).WithContext(ctx).Scan(
		&m.ChatID, &m.ID, &m.SenderID, &m.Content, &m.Attachments, &m.CreatedAt,
	)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByChat returns the chat's messages, newest first (clustering order).
func (s *MessageStore) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	q := `SELECT chat_id, id, sender_id, content, attachments, created_at
		FROM messages WHERE chat_id = ?`
	iter := s.db.Query(q, chatID).WithContext(ctx).Iter()

	var messages []model.Message
	var m model.Message
	for iter.Scan(&m.ChatID, &m.ID, &m.SenderID, &m.Content, &m.Attachments, &m.CreatedAt) {
		messages = append(messages, m)
		m = model.Message{}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MessageStore) Delete(ctx context.Context, chatID string, id int64) error {
	q := `DELETE FROM messages WHERE chat_id = ? AND id = ?`
	return s.db.Query(q, chatID, id).WithContext(ctx).Exec()
}

// DeleteByChat removes every message of a deleted chat.
func (s *MessageStore) DeleteByChat(ctx context.Context, chatID string) error {
	q := `DELETE FROM messages WHERE chat_id = ?`
	return s.db.Query(q, chatID).WithContext(ctx).Exec()
}

// LatestForChat returns the most recent message of a chat, or ErrNotFound for
// an empty chat. Used to repair last_message_id after a deletion.
func (s *MessageStore) LatestForChat(ctx context.Context, chatID string) (*model.Message, error) {
	q := `SELECT chat_id, id, sender_id, content, attachments, created_at
		FROM messages WHERE chat_id = ? LIMIT 1`
	var m model.Message
	err := s.db.Query(q, chatID).WithContext(ctx).Scan(
		&m.ChatID, &m.ID, &m.SenderID, &m.Content, &m.Attachments, &m.CreatedAt,
	)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
