package store

import (
	"context"
	"errors"

	"github.com/gocql/gocql"

	"github.com/mahaj/baithak/pkg/model"
)

// ErrNotFound is returned by every lookup that matches no row.
var ErrNotFound = errors.New("store: not found")

type UserStore struct {
	db *Session
}

func NewUserStore(db *Session) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	q := `INSERT INTO users (id, username, email, full_name, avatar_url, password_hash, refresh_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return s.db.Query(q,
		u.ID, u.Username, u.Email, u.FullName, u.AvatarURL,
		u.PasswordHash, u.RefreshToken, u.CreatedAt,
	).WithContext(ctx).Exec()
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	q := `SELECT id, username, email, full_name, avatar_url, password_hash, refresh_token, created_at
		FROM users WHERE id = ?`
	var u model.User
	err := s.db.Query(q, id).WithContext(ctx).Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.AvatarURL,
		&u.PasswordHash, &u.RefreshToken, &u.CreatedAt,
	)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindIdentity resolves a user to its sensitive-field-free snapshot.
func (s *UserStore) FindIdentity(ctx context.Context, id string) (*model.Identity, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ident := u.Identity()
	return &ident, nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findByIndexed(ctx, "username", username)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findByIndexed(ctx, "email", email)
}

func (s *UserStore) findByIndexed(ctx context.Context, column, value string) (*model.User, error) {
	q := `SELECT id, username, email, full_name, avatar_url, password_hash, refresh_token, created_at
		FROM users WHERE ` + column + ` = ?`
	var u model.User
	err := s.db.Query(q, value).WithContext(ctx).Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.AvatarURL,
		&u.PasswordHash, &u.RefreshToken, &u.CreatedAt,
	)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindIdentities resolves a batch of user IDs, silently skipping IDs with no
// backing row. Order follows the input.
func (s *UserStore) FindIdentities(ctx context.Context, ids []string) ([]model.Identity, error) {
	identities := make([]model.Identity, 0, len(ids))
	for _, id := range ids {
		ident, err := s.FindIdentity(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		identities = append(identities, *ident)
	}
	return identities, nil
}

func (s *UserStore) SetRefreshToken(ctx context.Context, id, token string) error {
	q := `UPDATE users SET refresh_token = ? WHERE id = ?`
	return s.db.Query(q, token, id).WithContext(ctx).Exec()
}
