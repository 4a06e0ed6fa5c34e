package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mahaj/baithak/pkg/auth"
	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/store"
)

var (
	// ErrUnauthenticated: no credential anywhere in the handshake.
	ErrUnauthenticated = errors.New("unauthenticated: token is missing")
	// ErrInvalidToken: credential present but malformed, expired or
	// mis-signed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownIdentity: valid token whose user no longer exists.
	ErrUnknownIdentity = errors.New("unknown identity")
)

// TokenVerifier validates an access token and yields its claims.
type TokenVerifier interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// UserFinder resolves a user ID to its sensitive-field-free identity
// snapshot.
type UserFinder interface {
	FindIdentity(ctx context.Context, id string) (*model.Identity, error)
}

// Resolver authenticates websocket handshakes. The credential is looked up
// in the accessToken cookie first, then the Authorization header, then the
// token query parameter.
type Resolver struct {
	tokens TokenVerifier
	users  UserFinder
}

func NewResolver(tokens TokenVerifier, users UserFinder) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// ExtractToken pulls the credential from the handshake request, preferring
// the cookie.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return r.URL.Query().Get("token")
}

// Resolve authenticates the handshake and returns the connection's identity.
// Failures map onto the taxonomy errors; callers surface them to the peer as
// a single socket_error event.
func (rs *Resolver) Resolve(ctx context.Context, r *http.Request) (*model.Identity, error) {
	token := ExtractToken(r)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := rs.tokens.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	ident, err := rs.users.FindIdentity(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	return ident, nil
}
