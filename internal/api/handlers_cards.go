/**
 * @description
 * HTTP handlers for card provisioning, lookups, status changes, and deletion.
 * Responses only ever carry masked card numbers.
 */

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/domain"
)

// CreateCardHandler provisions a card on an account. Admin only.
func (h *Handlers) CreateCardHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req domain.CreateCardRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.cards.CreateCard(r.Context(), caller, req)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, view)
}

// GetCardHandler fetches one card as a masked view.
func (h *Handlers) GetCardHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid card id")
		return
	}

	view, err := h.cards.GetCard(r.Context(), caller, cardID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ListUserCardsHandler lists a user's cards.
func (h *Handlers) ListUserCardsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid user id")
		return
	}

	views, err := h.cards.ListUserCards(r.Context(), caller, userID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

// ListAccountCardsHandler lists the cards on one account.
func (h *Handlers) ListAccountCardsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid account id")
		return
	}

	views, err := h.cards.ListAccountCards(r.Context(), caller, accountID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

// UpdateCardStatusHandler changes a card's status via the ?status= query parameter.
func (h *Handlers) UpdateCardStatusHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid card id")
		return
	}
	status := domain.CardStatus(r.URL.Query().Get("status"))
	if status == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "status query parameter required")
		return
	}

	view, err := h.cards.UpdateCardStatus(r.Context(), caller, cardID, status)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// DeleteCardHandler removes a card. Admin only.
func (h *Handlers) DeleteCardHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid card id")
		return
	}

	if err := h.cards.DeleteCard(r.Context(), caller, cardID); err != nil {
		h.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
