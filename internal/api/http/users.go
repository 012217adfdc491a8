package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
)

// GET /users?role=
func ListUsersHandler(users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context(), r.URL.Query().Get("role"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

type updateUserRoleReq struct {
	Role string `json:"role"`
}

// PATCH /users/{userID}/role
func AdminUpdateUserRoleHandler(users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "userID") // id or username
		var req updateUserRoleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		err := users.SetRole(r.Context(), target, strings.ToLower(strings.TrimSpace(req.Role)))
		switch {
		case errors.Is(err, auth.ErrInvalidUser):
			http.Error(w, "invalid role", http.StatusBadRequest)
		case errors.Is(err, auth.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, auth.ErrLastAdmin):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case err != nil:
			respondError(w, err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// POST /users/change-password
func ChangePasswordHandler(users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req changePasswordReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		err := users.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
		switch {
		case errors.Is(err, auth.ErrInvalidUser):
			http.Error(w, "new password required", http.StatusBadRequest)
		case errors.Is(err, auth.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, auth.ErrInvalidCredentials):
			http.Error(w, "incorrect old password", http.StatusForbidden)
		case err != nil:
			respondError(w, err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
