package store

import "fmt"

var tables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id text PRIMARY KEY,
		username text,
		email text,
		full_name text,
		avatar_url text,
		password_hash text,
		refresh_token text,
		created_at timestamp
	)`,
	`CREATE INDEX IF NOT EXISTS users_username_idx ON users (username)`,
	`CREATE INDEX IF NOT EXISTS users_email_idx ON users (email)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id text PRIMARY KEY,
		name text,
		is_group boolean,
		admin_id text,
		members set<text>,
		last_message_id bigint,
		created_at timestamp,
		updated_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS user_chats (
		user_id text,
		chat_id text,
		last_activity timestamp,
		PRIMARY KEY (user_id, chat_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		chat_id text,
		id bigint,
		sender_id text,
		content text,
		attachments list<text>,
		created_at timestamp,
		PRIMARY KEY (chat_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`,
	`CREATE TABLE IF NOT EXISTS unread_counters (
		user_id text,
		chat_id text,
		unread_count counter,
		PRIMARY KEY (user_id, chat_id)
	)`,
}

// EnsureKeyspace creates the chat keyspace. It must run on a session opened
// against the system keyspace.
func EnsureKeyspace(sys *Session, keyspace string) error {
	q := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`, keyspace)
	return sys.Query(q).Exec()
}

// EnsureSchema creates every table the service reads or writes.
// Note: in production, schema changes should be handled by migration tooling.
func EnsureSchema(s *Session) error {
	for _, ddl := range tables {
		if err := s.Query(ddl).Exec(); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
