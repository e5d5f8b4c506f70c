/**
 * @description
 * HTTP handlers for registration and login. These are the only unauthenticated
 * endpoints besides the health check.
 */

package api

import (
	"net/http"
	"strings"

	"github.com/bankcards/bankcards-service/internal/domain"
)

// RegisterHandler handles new user registration.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "username, email, and a password of at least 8 characters are required")
		return
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

// LoginHandler handles credential verification and token issuance.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, token)
}
