package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	req := require.New(t)
	issuer := NewIssuer("test-secret", time.Hour)

	token, err := issuer.GenerateToken("user-1")
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := issuer.ValidateToken(token)
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
}

func TestValidateTokenFailures(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name:  "malformed",
			token: func(t *testing.T) string { return "not.a.jwt" },
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				expired := NewIssuer("test-secret", -time.Minute)
				tok, err := expired.GenerateToken("user-1")
				require.NoError(t, err)
				return tok
			},
		},
		{
			name: "wrong signature",
			token: func(t *testing.T) string {
				other := NewIssuer("another-secret", time.Hour)
				tok, err := other.GenerateToken("user-1")
				require.NoError(t, err)
				return tok
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.ValidateToken(tt.token(t))
			require.Error(t, err)
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("s3cret-pass")
	req.NoError(err)
	req.NotEqual("s3cret-pass", hash)

	req.True(ComparePassword("s3cret-pass", hash))
	req.False(ComparePassword("wrong-pass", hash))
}
