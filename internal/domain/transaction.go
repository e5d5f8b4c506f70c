package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewTransactionReference builds the human-facing reference for a ledger row.
// It is derived from a fresh UUID so references are unique without another
// database round trip.
func NewTransactionReference() string {
	id := uuid.New()
	return fmt.Sprintf("TXN-%s", strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:16]))
}

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// TransactionStatus is the terminal state of a ledger entry. A transfer is
// atomically COMPLETED or it never appears in the ledger, so no intermediate
// statuses are persisted.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
)

// Transaction is one immutable, append-only ledger row recording a completed
// transfer between two accounts. Rows are never updated or deleted and must
// outlive the accounts they reference.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	Reference     string            `json:"reference"` // human-facing, e.g. TXN-1A2B3C4D
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description"`
	FromAccountID uuid.UUID         `json:"from_account_id"`
	ToAccountID   uuid.UUID         `json:"to_account_id"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TransactionView is the public projection of a ledger row, enriched with the
// account numbers of both sides.
type TransactionView struct {
	ID                uuid.UUID         `json:"id"`
	Reference         string            `json:"reference"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Type              TransactionType   `json:"type"`
	Status            TransactionStatus `json:"status"`
	Description       string            `json:"description"`
	FromAccountNumber string            `json:"from_account_number"`
	ToAccountNumber   string            `json:"to_account_number"`
	CreatedAt         time.Time         `json:"created_at"`
}

// TransferRequest moves funds between two accounts identified by number.
type TransferRequest struct {
	FromAccountNumber string `json:"from_account_number"`
	ToAccountNumber   string `json:"to_account_number"`
	Amount            int64  `json:"amount"`
	Description       string `json:"description,omitempty"`
}

// CardToCardTransferRequest moves funds between the accounts behind two cards.
type CardToCardTransferRequest struct {
	FromCardID  uuid.UUID `json:"from_card_id"`
	ToCardID    uuid.UUID `json:"to_card_id"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description,omitempty"`
}

// CardToAccountTransferRequest moves funds from the account behind a card to
// an arbitrary account number.
type CardToAccountTransferRequest struct {
	FromCardID      uuid.UUID `json:"from_card_id"`
	ToAccountNumber string    `json:"to_account_number"`
	Amount          int64     `json:"amount"`
	Description     string    `json:"description,omitempty"`
}
