// Package http provides the HTTP handlers and routing for the vault API:
// registration, login and per-user entry management.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayermolov/vaultkeeper/internal/service"
)

// CredentialService defines the authentication operations required by the
// HTTP handlers.
type CredentialService interface {
	// Register creates a new user from a username/password pair.
	Register(ctx context.Context, username, password string) error
	// Verify checks a username/password pair and returns the
	// authenticated username.
	Verify(ctx context.Context, username, password string) (string, error)
}

// SessionIssuer mints bearer tokens for authenticated identities.
type SessionIssuer interface {
	Issue(username string) (string, error)
}

// AuthHandler handles HTTP requests for user registration and login.
type AuthHandler struct {
	// Credentials performs the underlying authentication operations.
	Credentials CredentialService
	// Sessions issues bearer tokens on successful login.
	Sessions SessionIssuer
	// Log receives backend failure detail never surfaced to clients.
	Log *zap.Logger
}

// credentialsRequest represents the JSON payload for registration and login.
type credentialsRequest struct {
	// Username is the login name.
	Username string `json:"username"`
	// Password is the plaintext master password; it is hashed immediately
	// and never stored.
	Password string `json:"password"`
}

// Register handles POST /api/register.
// It expects a JSON body with "username" and "password" and responds 201 on
// success, 400 on malformed input and 409 when the username is taken.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Log, service.ErrInvalidInput)
		return
	}

	if err := h.Credentials.Register(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

// Login handles POST /api/login.
// On success it issues a bearer token and responds 200 with the token and
// username; unknown usernames and wrong passwords both yield 401 with an
// identical body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Log, service.ErrInvalidCredentials)
		return
	}

	username, err := h.Credentials.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	token, err := h.Sessions.Issue(username)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"username": username,
	})
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to its status code and JSON error body.
// Backend failures are logged with detail and surfaced opaquely.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrMissingFields):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": service.ErrMissingFields.Error()})
	case errors.Is(err, service.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": service.ErrAlreadyExists.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": service.ErrInvalidCredentials.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": service.ErrUnauthorized.Error()})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": service.ErrNotFound.Error()})
	default:
		if log != nil {
			log.Error("internal failure", zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
