/**
 * @description
 * Pure transfer validation rules. These functions operate on account snapshots
 * only and perform no I/O, so the store layer can re-run them against
 * row-locked snapshots right before mutating balances.
 *
 * The check order is fixed and pinned by tests: source status, destination
 * status, active card on the source, currency match, sufficient balance,
 * positive amount, self-transfer guard.
 */

package domain

import (
	"errors"
	"fmt"
)

// ValidationKind enumerates the rejection reasons a transfer can produce.
type ValidationKind string

const (
	ValidationAccountInactive    ValidationKind = "ACCOUNT_INACTIVE"
	ValidationActiveCardRequired ValidationKind = "ACTIVE_CARD_REQUIRED"
	ValidationCurrencyMismatch   ValidationKind = "CURRENCY_MISMATCH"
	ValidationInvalidAmount      ValidationKind = "INVALID_AMOUNT"
	ValidationSelfTransfer       ValidationKind = "SELF_TRANSFER"

	// ValidationInvalidCardStatus is produced outside ValidateTransfer, by
	// card status updates with an unknown target state.
	ValidationInvalidCardStatus ValidationKind = "INVALID_CARD_STATUS"
)

// ValidationError rejects a transfer for one enumerable reason. Callers branch
// on Kind rather than matching message text.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// InsufficientFundsError carries the figures a client needs to render a
// specific message.
type InsufficientFundsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, required %d", e.Balance, e.Required)
}

// IsValidationError reports whether err is a transfer validation rejection of
// any kind, including insufficient funds.
func IsValidationError(err error) bool {
	var ve *ValidationError
	var ife *InsufficientFundsError
	return errors.As(err, &ve) || errors.As(err, &ife)
}

// ValidateTransfer applies the full rule set to a candidate transfer.
// hasActiveCard reflects whether the source account holds at least one ACTIVE
// card; card-initiated transfers pass true because the originating card's
// status is verified separately.
func ValidateTransfer(from, to *Account, amount int64, hasActiveCard bool) error {
	if from.Status != AccountStatusActive {
		return &ValidationError{Kind: ValidationAccountInactive, Message: "source account is not active"}
	}
	if to.Status != AccountStatusActive {
		return &ValidationError{Kind: ValidationAccountInactive, Message: "destination account is not active"}
	}
	if !hasActiveCard {
		return &ValidationError{Kind: ValidationActiveCardRequired, Message: "source account has no active card"}
	}
	if from.Currency != to.Currency {
		return &ValidationError{Kind: ValidationCurrencyMismatch, Message: "currency mismatch between accounts"}
	}
	if from.Balance < amount {
		return &InsufficientFundsError{Balance: from.Balance, Required: amount}
	}
	if amount <= 0 {
		return &ValidationError{Kind: ValidationInvalidAmount, Message: "amount must be positive"}
	}
	if from.ID == to.ID {
		return &ValidationError{Kind: ValidationSelfTransfer, Message: "cannot transfer to the same account"}
	}
	return nil
}
