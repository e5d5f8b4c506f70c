/**
 * @description
 * Account lifecycle. Accounts are provisioned by administrators for a named
 * owner; reads are owner-or-admin gated. Deletion is refused while the
 * account holds funds or appears in the ledger, because transactions are
 * append-only and must outlive the accounts they reference.
 */

package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/domain"
	"github.com/bankcards/bankcards-service/internal/store"
)

// AccountService handles account provisioning and lookups.
type AccountService struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(repo store.Repository, logger *slog.Logger) *AccountService {
	return &AccountService{repo: repo, logger: logger}
}

// newAccountNumber produces a random 20-digit account number. Uniqueness is
// enforced by the database constraint; a collision at this width is not worth
// a retry loop.
func newAccountNumber() (string, error) {
	digits := make([]byte, 20)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// CreateAccount provisions a new zero-balance account for the given owner.
// Admin only.
func (s *AccountService) CreateAccount(ctx context.Context, caller Identity, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindUserByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	number, err := newAccountNumber()
	if err != nil {
		return nil, fmt.Errorf("generate account number: %w", err)
	}

	account := &domain.Account{
		ID:            uuid.New(),
		AccountNumber: number,
		Balance:       0,
		Currency:      req.Currency,
		Type:          req.Type,
		Status:        domain.AccountStatusActive,
		UserID:        req.UserID,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account created", "account_id", account.ID, "user_id", account.UserID)
	return account, nil
}

// GetAccount fetches one account, owner-or-admin gated.
func (s *AccountService) GetAccount(ctx context.Context, caller Identity, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := RequireOwnerOrAdmin(caller, account.UserID); err != nil {
		return nil, err
	}
	return account, nil
}

// ListUserAccounts lists a user's accounts, owner-or-admin gated.
func (s *AccountService) ListUserAccounts(ctx context.Context, caller Identity, userID uuid.UUID) ([]domain.Account, error) {
	if err := RequireOwnerOrAdmin(caller, userID); err != nil {
		return nil, err
	}
	return s.repo.FindAccountsByUserID(ctx, userID)
}

// DeleteAccount removes an empty account with no ledger history. The store
// enforces both preconditions under a row lock.
func (s *AccountService) DeleteAccount(ctx context.Context, caller Identity, accountID uuid.UUID) error {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := RequireOwnerOrAdmin(caller, account.UserID); err != nil {
		return err
	}
	if err := s.repo.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("account deleted", "account_id", accountID)
	return nil
}
