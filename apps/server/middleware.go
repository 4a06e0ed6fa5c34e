package main

import (
	"context"
	"net/http"

	"github.com/mahaj/baithak/pkg/auth"
	"github.com/mahaj/baithak/pkg/realtime"
)

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Allow all for dev, or specific origin
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, PATCH, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware validates the access token (cookie, Authorization header or
// query parameter, same order as the socket handshake) and stores the claims
// in the request context.
func (a *api) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := realtime.ExtractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		claims, err := a.issuer.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), auth.UserKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUserID pulls the authenticated user ID out of the request context.
func currentUserID(r *http.Request) (string, bool) {
	claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
	if !ok {
		return "", false
	}
	return claims.UserID, true
}
