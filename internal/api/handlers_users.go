/**
 * @description
 * HTTP handlers for reading user records. Users may read themselves; the list
 * endpoint is admin only.
 */

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// GetUserHandler fetches one user by id.
func (h *Handlers) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid user id")
		return
	}

	user, err := h.auth.GetUser(r.Context(), caller, userID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// ListUsersHandler lists all users.
func (h *Handlers) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	users, err := h.auth.ListUsers(r.Context(), caller)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}
