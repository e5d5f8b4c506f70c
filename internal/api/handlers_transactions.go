/**
 * @description
 * HTTP handlers for the transfer endpoints and the transaction ledger reads.
 * Transfer handlers parse the request shape, hand it to the transfer service,
 * and echo back the created ledger row; the service owns all authorization
 * and validation.
 *
 * @dependencies
 * - net/http: Standard Go library.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/domain"
)

// TransferHandler handles account-number-to-account-number transfers.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req domain.TransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.transfers.Transfer(r.Context(), caller, req)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, record)
}

// CardToCardTransferHandler handles transfers between two of the caller's cards.
func (h *Handlers) CardToCardTransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req domain.CardToCardTransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.transfers.CardToCardTransfer(r.Context(), caller, req)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, record)
}

// CardToAccountTransferHandler handles transfers from the caller's card to any account.
func (h *Handlers) CardToAccountTransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req domain.CardToAccountTransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.transfers.CardToAccountTransfer(r.Context(), caller, req)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, record)
}

// GetTransactionHandler fetches one transaction by id.
func (h *Handlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid transaction id")
		return
	}

	view, err := h.transfers.GetTransaction(r.Context(), caller, transactionID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ListUserTransactionsHandler lists a user's transactions.
func (h *Handlers) ListUserTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid user id")
		return
	}

	views, err := h.transfers.ListUserTransactions(r.Context(), caller, userID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

// ListAccountTransactionsHandler lists transactions touching one account.
func (h *Handlers) ListAccountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	accountNumber := chi.URLParam(r, "accountNumber")
	if accountNumber == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "account number required")
		return
	}

	views, err := h.transfers.ListAccountTransactions(r.Context(), caller, accountNumber)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

// parseDateParam accepts RFC 3339 date-times and bare dates. A bare date used
// as a range end covers the whole day.
func parseDateParam(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

// ListUserTransactionsByDateRangeHandler lists a user's transactions within a window.
func (h *Handlers) ListUserTransactionsByDateRangeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid user id")
		return
	}

	start, err := parseDateParam(r.URL.Query().Get("startDate"), false)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_DATE", "invalid startDate")
		return
	}
	end, err := parseDateParam(r.URL.Query().Get("endDate"), true)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_DATE", "invalid endDate")
		return
	}
	if end.Before(start) {
		h.writeError(w, http.StatusBadRequest, "INVALID_DATE", "endDate precedes startDate")
		return
	}

	views, err := h.transfers.ListUserTransactionsByDateRange(r.Context(), caller, userID, start, end)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}
