package store

import (
	"context"
	"errors"
	"time"

	"github.com/gocql/gocql"

	"github.com/mahaj/baithak/pkg/model"
)

type ChatStore struct {
	db *Session
}

func NewChatStore(db *Session) *ChatStore {
	return &ChatStore{db: db}
}

// Create inserts the chat and its per-member user_chats projection rows. The
// projection is what makes "list chats for user" a partition-key read.
func (s *ChatStore) Create(ctx context.Context, c *model.Chat) error {
	q := `INSERT INTO chats (id, name, is_group, admin_id, members, last_message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if err := s.db.Query(q,
		c.ID, c.Name, c.IsGroup, c.AdminID, c.Members,
		c.LastMessageID, c.CreatedAt, c.UpdatedAt,
	).WithContext(ctx).Exec(); err != nil {
		return err
	}

	for _, member := range c.Members {
		if err := s.linkUserChat(ctx, member, c.ID, c.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChatStore) FindByID(ctx context.Context, id string) (*model.Chat, error) {
	q := `SELECT id, name, is_group, admin_id, members, last_message_id, created_at, updated_at
		FROM chats WHERE id = ?`
	var c model.Chat
	err := s.db.Query(q, id).WithContext(ctx).Scan(
		&c.ID, &c.Name, &c.IsGroup, &c.AdminID, &c.Members,
		&c.LastMessageID, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListForUser returns every chat the user participates in, via the user_chats
// projection.
func (s *ChatStore) ListForUser(ctx context.Context, userID string) ([]model.Chat, error) {
	iter := s.db.Query(`SELECT chat_id FROM user_chats WHERE user_id = ?`, userID).
		WithContext(ctx).Iter()

	var chatIDs []string
	var chatID string
	for iter.Scan(&chatID) {
		chatIDs = append(chatIDs, chatID)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	chats := make([]model.Chat, 0, len(chatIDs))
	for _, id := range chatIDs {
		c, err := s.FindByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Projection row outlived the chat, skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, nil
}

// FindDirectBetween returns the existing one-on-one chat shared by two users,
// or ErrNotFound.
func (s *ChatStore) FindDirectBetween(ctx context.Context, userID, otherID string) (*model.Chat, error) {
	chats, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range chats {
		if !chats[i].IsGroup && chats[i].HasMember(otherID) {
			return &chats[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *ChatStore) Rename(ctx context.Context, id, name string) error {
	q := `UPDATE chats SET name = ?, updated_at = ? WHERE id = ?`
	return s.db.Query(q, name, time.Now(), id).WithContext(ctx).Exec()
}

func (s *ChatStore) SetLastMessage(ctx context.Context, id string, messageID int64) error {
	q := `UPDATE chats SET last_message_id = ?, updated_at = ? WHERE id = ?`
	return s.db.Query(q, messageID, time.Now(), id).WithContext(ctx).Exec()
}

func (s *ChatStore) AddMember(ctx context.Context, id, userID string) error {
	q := `UPDATE chats SET members = members + ?, updated_at = ? WHERE id = ?`
	if err := s.db.Query(q, []string{userID}, time.Now(), id).WithContext(ctx).Exec(); err != nil {
		return err
	}
	return s.linkUserChat(ctx, userID, id, time.Now())
}

func (s *ChatStore) RemoveMember(ctx context.Context, id, userID string) error {
	q := `UPDATE chats SET members = members - ?, updated_at = ? WHERE id = ?`
	if err := s.db.Query(q, []string{userID}, time.Now(), id).WithContext(ctx).Exec(); err != nil {
		return err
	}
	return s.unlinkUserChat(ctx, userID, id)
}

// Delete removes the chat and every member's projection row. Message cascade
// is the MessageStore's job.
func (s *ChatStore) Delete(ctx context.Context, c *model.Chat) error {
	if err := s.db.Query(`DELETE FROM chats WHERE id = ?`, c.ID).WithContext(ctx).Exec(); err != nil {
		return err
	}
	for _, member := range c.Members {
		if err := s.unlinkUserChat(ctx, member, c.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChatStore) linkUserChat(ctx context.Context, userID, chatID string, at time.Time) error {
	q := `INSERT INTO user_chats (user_id, chat_id, last_activity) VALUES (?, ?, ?)`
	return s.db.Query(q, userID, chatID, at).WithContext(ctx).Exec()
}

func (s *ChatStore) unlinkUserChat(ctx context.Context, userID, chatID string) error {
	q := `DELETE FROM user_chats WHERE user_id = ? AND chat_id = ?`
	return s.db.Query(q, userID, chatID).WithContext(ctx).Exec()
}
