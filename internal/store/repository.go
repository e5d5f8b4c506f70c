/**
 * @description
 * Data access contract for the bankcards service. The `Repository` interface
 * decouples the business logic in `internal/app` from PostgreSQL, letting
 * tests substitute stubs or an in-memory fake.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/domain"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrCardNotFound        = errors.New("card not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateUser       = errors.New("username or email already taken")
	ErrDuplicateCardNumber = errors.New("card number already exists")
	ErrAccountNotEmpty     = errors.New("account balance must be zero")
	ErrAccountHasHistory   = errors.New("account is referenced by ledger entries")
)

// Repository is the full persistence surface used by the application services.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	// Accounts
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error

	// Cards
	CreateCard(ctx context.Context, card *domain.Card) error
	FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	FindCardsByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error)
	FindCardsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Card, error)
	CardNumberExists(ctx context.Context, encryptedCardNumber string) (bool, error)
	UpdateCardStatus(ctx context.Context, cardID uuid.UUID, status domain.CardStatus) error
	DeleteCard(ctx context.Context, cardID uuid.UUID) error
	ExpireCards(ctx context.Context, now time.Time) (int64, error)

	// Transfers and ledger
	PerformTransfer(ctx context.Context, params TransferParams) (*domain.Transaction, error)
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionView, error)
	FindTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.TransactionView, error)
	FindTransactionsByAccountNumber(ctx context.Context, accountNumber string) ([]domain.TransactionView, error)
	FindTransactionsByUserAndDateRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]domain.TransactionView, error)
}

// TransferParams describes one atomic balance mutation plus its ledger entry.
// RequireActiveCard is set for the direct account-to-account path; card
// initiated transfers verify the originating card's status before reaching the
// store and pass false.
type TransferParams struct {
	FromAccountID     uuid.UUID
	ToAccountID       uuid.UUID
	Amount            int64
	Description       string
	RequireActiveCard bool
}
