package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/phontary/Dienstato-sub003/internal/api/middleware"
	"github.com/phontary/Dienstato-sub003/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	ExpiresAt string `json:"expires_at"`
}

// Login issues a session token for valid credentials.
func Login(authService *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.Email == "" || req.Password == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Email and password are required")
			return
		}

		session, user, err := authService.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Login failed")
			return
		}
		if session == nil {
			middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, "Invalid credentials")
			return
		}

		writeJSON(w, http.StatusCreated, loginResponse{
			Token:     session.Token,
			UserID:    user.ID,
			UserName:  user.Name,
			ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
}

// Logout removes the request's session.
func Logout(authService *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.SessionTokenFromRequest(r)
		if token == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "No session token")
			return
		}

		if err := authService.Logout(r.Context(), token); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Logout failed")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
