/**
 * @description
 * This file contains the shared plumbing for the HTTP handlers: the handler
 * struct wiring, JSON response helpers, and the mapping from typed
 * application errors to stable error payloads. Every error response carries
 * an enumerable code so clients branch on codes, never on message text.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bankcards/bankcards-service/internal/app"
	"github.com/bankcards/bankcards-service/internal/cardcrypto"
	"github.com/bankcards/bankcards-service/internal/domain"
	"github.com/bankcards/bankcards-service/internal/store"
)

// Handlers holds the application services that handlers will use.
type Handlers struct {
	auth      *app.AuthService
	accounts  *app.AccountService
	cards     *app.CardService
	transfers *app.TransferService
	logger    *slog.Logger
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(
	auth *app.AuthService,
	accounts *app.AccountService,
	cards *app.CardService,
	transfers *app.TransferService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		auth:      auth,
		accounts:  accounts,
		cards:     cards,
		transfers: transfers,
		logger:    logger,
	}
}

// errorResponse is the shape of every error payload.
type errorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Balance  *int64 `json:"balance,omitempty"`
	Required *int64 `json:"required,omitempty"`
}

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Error("failed to encode response", "error", err)
		}
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeAppError translates typed service errors into HTTP responses.
func (h *Handlers) writeAppError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var insufficient *domain.InsufficientFundsError

	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
	case errors.Is(err, app.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrCardNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrDuplicateUser):
		h.writeError(w, http.StatusConflict, "DUPLICATE_USER", err.Error())
	case errors.Is(err, store.ErrAccountNotEmpty):
		h.writeError(w, http.StatusConflict, "ACCOUNT_NOT_EMPTY", err.Error())
	case errors.Is(err, store.ErrAccountHasHistory):
		h.writeError(w, http.StatusConflict, "ACCOUNT_HAS_HISTORY", err.Error())
	case errors.As(err, &insufficient):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:    insufficient.Error(),
			Code:     "INSUFFICIENT_FUNDS",
			Balance:  &insufficient.Balance,
			Required: &insufficient.Required,
		})
	case errors.As(err, &validation):
		h.writeError(w, http.StatusUnprocessableEntity, string(validation.Kind), validation.Message)
	case errors.Is(err, app.ErrCardNotActive):
		h.writeError(w, http.StatusUnprocessableEntity, "CARD_NOT_ACTIVE", err.Error())
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", err.Error())
	case errors.Is(err, app.ErrCardGenerationExhausted):
		h.logger.Error("card number generation exhausted")
		h.writeError(w, http.StatusInternalServerError, "GENERATION_EXHAUSTED", err.Error())
	case errors.Is(err, cardcrypto.ErrEncrypt):
		h.logger.Error("encryption failure", "error", err)
		h.writeError(w, http.StatusInternalServerError, "ENCRYPTION_ERROR", "encryption failed")
	case errors.Is(err, cardcrypto.ErrDecrypt):
		h.logger.Error("decryption failure", "error", err)
		h.writeError(w, http.StatusInternalServerError, "DECRYPTION_ERROR", "decryption failed")
	case errors.Is(err, app.ErrTransferFailed):
		h.writeError(w, http.StatusInternalServerError, "TRANSFER_FAILED", "transfer failed")
	default:
		h.logger.Error("unhandled error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

// identity pulls the authenticated caller out of the context or writes a 401.
func (h *Handlers) identity(w http.ResponseWriter, r *http.Request) (app.Identity, bool) {
	caller, ok := GetIdentity(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return app.Identity{}, false
	}
	return caller, true
}

// decode parses a JSON request body or writes a 400.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return false
	}
	return true
}
