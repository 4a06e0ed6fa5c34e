package store

import (
	"context"
	"time"
)

// CounterStore tracks per-user per-chat unread counts. Writes come from the
// archiver; the API reads counts and resets them on mark-read.
type CounterStore struct {
	db *Session
}

func NewCounterStore(db *Session) *CounterStore {
	return &CounterStore{db: db}
}

func (s *CounterStore) Increment(ctx context.Context, userID, chatID string) error {
	q := `UPDATE unread_counters SET unread_count = unread_count + 1 WHERE user_id = ? AND chat_id = ?`
	return s.db.Query(q, userID, chatID).WithContext(ctx).Exec()
}

func (s *CounterStore) Get(ctx context.Context, userID, chatID string) (int64, error) {
	var count int64
	q := `SELECT unread_count FROM unread_counters WHERE user_id = ? AND chat_id = ?`
	if err := s.db.Query(q, userID, chatID).WithContext(ctx).Scan(&count); err != nil {
		// No row means nothing unread.
		return 0, nil
	}
	return count, nil
}

// Reset clears the unread count. Deleting the row is how counters reset.
func (s *CounterStore) Reset(ctx context.Context, userID, chatID string) error {
	q := `DELETE FROM unread_counters WHERE user_id = ? AND chat_id = ?`
	return s.db.Query(q, userID, chatID).WithContext(ctx).Exec()
}

// TouchActivity bumps the user_chats projection after a message commits.
func (s *CounterStore) TouchActivity(ctx context.Context, userID, chatID string, at time.Time) error {
	q := `UPDATE user_chats SET last_activity = ? WHERE user_id = ? AND chat_id = ?`
	return s.db.Query(q, at, userID, chatID).WithContext(ctx).Exec()
}
