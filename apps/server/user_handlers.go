package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mahaj/baithak/pkg/auth"
	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/store"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=80"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

// RegisterHandler creates a user. An optional avatar file comes in the same
// multipart form as the fields.
func (a *api) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	req := registerRequest{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("full_name"),
		Password: r.FormValue("password"),
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := a.users.FindByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	if _, err := a.users.FindByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	avatarURL := ""
	if file, header, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		avatarURL, err = a.saveUpload(file, header)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		AvatarURL:    avatarURL,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := a.users.Create(r.Context(), user); err != nil {
		log.Printf("Failed to create user: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user.Identity(), "user registered successfully")
}

func (a *api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user *model.User
	var err error
	if req.Username != "" {
		user, err = a.users.FindByUsername(r.Context(), req.Username)
	} else {
		user, err = a.users.FindByEmail(r.Context(), req.Email)
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if !auth.ComparePassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := a.issuer.GenerateToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	if err := a.users.SetRefreshToken(r.Context(), user.ID, uuid.NewString()); err != nil {
		log.Printf("Failed to rotate refresh token for %s: %v", user.ID, err)
	}

	// The cookie is what the socket handshake reads first.
	http.SetCookie(w, &http.Cookie{
		Name:     "accessToken",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(a.tokenTTL),
	})

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user.Identity()}, "logged in")
}

func (a *api) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := a.users.SetRefreshToken(r.Context(), userID, ""); err != nil {
		log.Printf("Failed to clear refresh token for %s: %v", userID, err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:    "accessToken",
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
	writeJSON(w, http.StatusOK, nil, "logged out")
}

func (a *api) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ident, err := a.users.FindIdentity(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, ident, "")
}

// OnlineUsersHandler lists currently connected users, excluding the caller.
func (a *api) OnlineUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	online, err := a.presence.Online(r.Context())
	if err != nil {
		log.Printf("Failed to fetch online users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch online users")
		return
	}

	others := lo.Without(online, userID)
	identities, err := a.users.FindIdentities(r.Context(), others)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve users")
		return
	}
	writeJSON(w, http.StatusOK, identities, "")
}
