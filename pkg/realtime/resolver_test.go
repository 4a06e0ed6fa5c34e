package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/baithak/pkg/auth"
	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/store"
)

type fakeUsers struct {
	users map[string]model.Identity
}

func (f *fakeUsers) FindIdentity(_ context.Context, id string) (*model.Identity, error) {
	if ident, ok := f.users[id]; ok {
		return &ident, nil
	}
	return nil, store.ErrNotFound
}

func TestExtractTokenPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		build func() *http.Request
		want  string
	}{
		{
			name:  "no credential anywhere",
			build: func() *http.Request { return httptest.NewRequest("GET", "/ws", nil) },
			want:  "",
		},
		{
			name: "query parameter fallback",
			build: func() *http.Request {
				return httptest.NewRequest("GET", "/ws?token=from-query", nil)
			},
			want: "from-query",
		},
		{
			name: "authorization header beats query",
			build: func() *http.Request {
				r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
				r.Header.Set("Authorization", "Bearer from-header")
				return r
			},
			want: "from-header",
		},
		{
			name: "cookie beats everything",
			build: func() *http.Request {
				r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
				r.Header.Set("Authorization", "Bearer from-header")
				r.AddCookie(&http.Cookie{Name: "accessToken", Value: "from-cookie"})
				return r
			},
			want: "from-cookie",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExtractToken(tt.build()))
		})
	}
}

func TestResolveSuccess(t *testing.T) {
	req := require.New(t)
	issuer := auth.NewIssuer("secret", time.Hour)
	users := &fakeUsers{users: map[string]model.Identity{
		"u1": {ID: "u1", Username: "asha"},
	}}
	resolver := NewResolver(issuer, users)

	token, err := issuer.GenerateToken("u1")
	req.NoError(err)

	r := httptest.NewRequest("GET", "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "accessToken", Value: token})

	ident, err := resolver.Resolve(context.Background(), r)
	req.NoError(err)
	req.Equal("u1", ident.ID)
	req.Equal("asha", ident.Username)
}

func TestResolveFailures(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	users := &fakeUsers{users: map[string]model.Identity{
		"u1": {ID: "u1", Username: "asha"},
	}}
	resolver := NewResolver(issuer, users)

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "missing token",
			token:   func(t *testing.T) string { return "" },
			wantErr: ErrUnauthenticated,
		},
		{
			name:    "malformed token",
			token:   func(t *testing.T) string { return "garbage" },
			wantErr: ErrInvalidToken,
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				expired := auth.NewIssuer("secret", -time.Minute)
				tok, err := expired.GenerateToken("u1")
				require.NoError(t, err)
				return tok
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong signature",
			token: func(t *testing.T) string {
				other := auth.NewIssuer("other-secret", time.Hour)
				tok, err := other.GenerateToken("u1")
				require.NoError(t, err)
				return tok
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "valid token, deleted user",
			token: func(t *testing.T) string {
				tok, err := issuer.GenerateToken("gone")
				require.NoError(t, err)
				return tok
			},
			wantErr: ErrUnknownIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tok := tt.token(t); tok != "" {
				r.AddCookie(&http.Cookie{Name: "accessToken", Value: tok})
			}

			ident, err := resolver.Resolve(context.Background(), r)
			require.Nil(t, ident)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
