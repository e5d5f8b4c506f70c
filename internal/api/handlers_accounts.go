/**
 * @description
 * HTTP handlers for account provisioning, lookups, and deletion.
 */

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/domain"
)

// CreateAccountHandler provisions an account for a user. Admin only.
func (h *Handlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req domain.CreateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), caller, req)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// GetAccountHandler fetches one account.
func (h *Handlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid account id")
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), caller, accountID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// ListUserAccountsHandler lists a user's accounts.
func (h *Handlers) ListUserAccountsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid user id")
		return
	}

	accounts, err := h.accounts.ListUserAccounts(r.Context(), caller, userID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// DeleteAccountHandler removes an empty account with no ledger history.
func (h *Handlers) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid account id")
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), caller, accountID); err != nil {
		h.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
