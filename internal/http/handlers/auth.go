package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"genstudio/internal/auth"
	"genstudio/internal/domain"
	"genstudio/internal/middleware"
	"genstudio/internal/validation"
)

const maxJSONBody = 1 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userDTO struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type authResponse struct {
	User  userDTO `json:"user"`
	Token string  `json:"token"`
}

func toUserDTO(u *domain.User) userDTO {
	return userDTO{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

// dummyHash is compared against when the email is unknown so both login
// failure paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("not-a-real-password")
	return h
})

func (a *App) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, domain.KindValidation, "Invalid request body")
		return req, false
	}
	return req, true
}

func (a *App) Signup(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeCredentials(w, r)
	if !ok {
		return
	}
	email, err := validation.Email(req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validation.Password(req.Password); err != nil {
		a.fail(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.Users.Create(r.Context(), email, hash)
	if errors.Is(err, domain.ErrConflict) {
		a.error(w, http.StatusBadRequest, domain.KindConflict, "Email already registered")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token, err := middleware.IssueToken(a.JWTSecret, user.ID, user.Email, a.JWTTTL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().Int64("user_id", user.ID).Msg("user signed up")
	a.ok(w, http.StatusCreated, "User created successfully", authResponse{User: toUserDTO(user), Token: token})
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeCredentials(w, r)
	if !ok {
		return
	}
	user, err := a.Users.GetByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.fail(w, r, err)
		return
	}
	hash := dummyHash()
	if user != nil {
		hash = user.PasswordHash
	}
	if cerr := auth.CheckPassword(hash, req.Password); user == nil || cerr != nil {
		if cerr != nil && !errors.Is(cerr, auth.ErrMismatch) {
			a.fail(w, r, cerr)
			return
		}
		a.error(w, http.StatusUnauthorized, domain.KindAuthentication, "Invalid email or password")
		return
	}
	token, err := middleware.IssueToken(a.JWTSecret, user.ID, user.Email, a.JWTTTL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Login successful", authResponse{User: toUserDTO(user), Token: token})
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == 0 {
		a.error(w, http.StatusUnauthorized, domain.KindAuthentication, middleware.MsgTokenMissing)
		return
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusUnauthorized, domain.KindAuthentication, "User not found")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	// Ids are reissued after a store reset; the email pins the token to its user.
	if email := middleware.UserEmailFromContext(r.Context()); email != "" && email != user.Email {
		a.error(w, http.StatusUnauthorized, domain.KindAuthentication, middleware.MsgTokenInvalid)
		return
	}
	a.ok(w, http.StatusOK, "", map[string]any{"user": toUserDTO(user)})
}
