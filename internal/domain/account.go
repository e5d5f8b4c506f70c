/**
 * @description
 * Core domain models for the bankcards service. These structs represent the
 * entities persisted by the store layer and the views returned by the API.
 *
 * @notes
 * - Monetary amounts are `int64` values in the smallest currency unit, which
 *   avoids floating-point inaccuracies with financial data.
 * - Card numbers and CVVs never appear here in plaintext; entities carry the
 *   ciphertext tokens produced by the cardcrypto codec.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountType classifies what kind of product an account is.
type AccountType string

const (
	AccountTypeCurrent AccountType = "CURRENT"
	AccountTypeSavings AccountType = "SAVINGS"
	AccountTypeCredit  AccountType = "CREDIT"
	AccountTypeDeposit AccountType = "DEPOSIT"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusBlocked AccountStatus = "BLOCKED"
	AccountStatusClosed  AccountStatus = "CLOSED"
)

// Account is a balance-holding entity owned by exactly one user and
// denominated in a single currency. Balance only ever changes in
// debit/credit pairs inside one committed transfer.
type Account struct {
	ID            uuid.UUID     `json:"id"`
	AccountNumber string        `json:"account_number"`
	Balance       int64         `json:"balance"` // smallest currency unit
	Currency      string        `json:"currency"`
	Type          AccountType   `json:"type"`
	Status        AccountStatus `json:"status"`
	UserID        uuid.UUID     `json:"user_id"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CreateAccountRequest is the admin-facing payload for provisioning an account.
type CreateAccountRequest struct {
	UserID   uuid.UUID   `json:"user_id"`
	Currency string      `json:"currency"`
	Type     AccountType `json:"type"`
}
