package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/baithak/pkg/model"
)

func TestRestClientLoginStoresToken(t *testing.T) {
	req := require.New(t)

	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/login":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data": loginResult{
					Token: "tok-123",
					User:  model.Identity{ID: "u1", Username: "asha"},
				},
			})
		case "/api/v1/chats":
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    []model.ChatSummary{{ID: "c1", Name: "general"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	rest := &restClient{base: ts.URL, http: ts.Client()}

	login, err := rest.login("asha", "pw")
	req.NoError(err)
	req.Equal("u1", login.User.ID)

	// Subsequent calls carry the token from the login response.
	chats, err := rest.listChats()
	req.NoError(err)
	req.Len(chats, 1)
	req.Equal("c1", chats[0].ID)
	req.Equal("Bearer tok-123", gotAuth)
}

func TestRestClientSurfacesAPIErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "invalid credentials",
		})
	}))
	defer ts.Close()

	rest := &restClient{base: ts.URL, http: ts.Client()}

	_, err := rest.login("asha", "wrong")
	require.ErrorContains(t, err, "invalid credentials")
}
