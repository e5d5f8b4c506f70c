/**
 * @description
 * This file contains the core business logic for money movement. The
 * `TransferService` struct orchestrates the three transfer entry points,
 * coordinating between the database repository, the Redis rate limiter, and
 * the message broker.
 *
 * Key features:
 * - Resolves transfer endpoints by account number or by card.
 * - One authorization policy across all variants: the caller must own the
 *   source side or be an admin; the destination may belong to anyone.
 *   Card-to-card additionally requires both cards belong to the caller.
 * - Delegates atomicity to the store: balances mutate and the ledger row
 *   appears in one database transaction or not at all.
 * - Publishes transfer.completed events to RabbitMQ for asynchronous
 *   consumers.
 *
 * @dependencies
 * - github.com/google/uuid: Identifier handling.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/cardcrypto"
	"github.com/bankcards/bankcards-service/internal/domain"
	"github.com/bankcards/bankcards-service/internal/store"
	"github.com/bankcards/bankcards-service/pkg/rabbitmq"
)

const (
	transferRateScope  = "transfer"
	transferRateWindow = time.Minute
)

// RateLimiter is the slice of the Redis limiter the transfer path needs. A
// nil limiter disables rate limiting.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// TransferService provides the money-movement business logic.
type TransferService struct {
	repo          store.Repository
	codec         *cardcrypto.Codec
	eventProducer rabbitmq.Publisher
	limiter       RateLimiter
	rateLimit     int
	eventExchange string
	logger        *slog.Logger
}

// NewTransferService creates a new TransferService. limiter may be nil and
// rateLimit <= 0 disables rate limiting.
func NewTransferService(
	repo store.Repository,
	codec *cardcrypto.Codec,
	producer rabbitmq.Publisher,
	limiter RateLimiter,
	rateLimit int,
	eventExchange string,
	logger *slog.Logger,
) *TransferService {
	return &TransferService{
		repo:          repo,
		codec:         codec,
		eventProducer: producer,
		limiter:       limiter,
		rateLimit:     rateLimit,
		eventExchange: eventExchange,
		logger:        logger,
	}
}

// consumeRateLimit charges one transfer attempt against the caller's window.
func (s *TransferService) consumeRateLimit(ctx context.Context, caller Identity) error {
	if s.limiter == nil || s.rateLimit <= 0 {
		return nil
	}
	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, transferRateScope, caller.UserID.String(), s.rateLimit, transferRateWindow)
	if err != nil {
		// The limiter is protective, not load-bearing. A broken Redis must
		// not take transfers down with it.
		s.logger.Warn("rate limiter unavailable", "error", err)
		return nil
	}
	if count > s.rateLimit {
		s.logger.Info("transfer rate limited", "user_id", caller.UserID, "retry_after_s", retryAfter)
		return ErrRateLimited
	}
	return nil
}

// execute runs the locked store transfer and publishes the completion event.
func (s *TransferService) execute(ctx context.Context, params store.TransferParams) (*domain.Transaction, error) {
	record, err := s.repo.PerformTransfer(ctx, params)
	if err != nil {
		if domain.IsValidationError(err) ||
			errors.Is(err, store.ErrAccountNotFound) ||
			errors.Is(err, store.ErrCardNotFound) {
			return nil, err
		}
		s.logger.Error("transfer failed", "error", err,
			"from_account_id", params.FromAccountID, "to_account_id", params.ToAccountID)
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	s.logger.Info("transfer completed",
		"reference", record.Reference,
		"from_account_id", record.FromAccountID,
		"to_account_id", record.ToAccountID,
		"amount", record.Amount,
		"currency", record.Currency,
	)

	if s.eventProducer != nil {
		event := rabbitmq.TransferEvent{
			TransactionID: record.ID,
			Reference:     record.Reference,
			FromAccountID: record.FromAccountID,
			ToAccountID:   record.ToAccountID,
			Amount:        record.Amount,
			Currency:      record.Currency,
			Timestamp:     record.CreatedAt,
		}
		if err := s.eventProducer.PublishTransferCompleted(ctx, s.eventExchange, event); err != nil {
			// Already committed; the event is best-effort.
			s.logger.Warn("transfer event publish failed", "reference", record.Reference, "error", err)
		}
	}
	return record, nil
}

// Transfer moves funds between two accounts identified by account number. The
// source account must carry at least one active card.
func (s *TransferService) Transfer(ctx context.Context, caller Identity, req domain.TransferRequest) (*domain.Transaction, error) {
	if err := s.consumeRateLimit(ctx, caller); err != nil {
		return nil, err
	}

	from, err := s.repo.FindAccountByNumber(ctx, req.FromAccountNumber)
	if err != nil {
		return nil, err
	}
	if err := RequireOwnerOrAdmin(caller, from.UserID); err != nil {
		return nil, err
	}
	to, err := s.repo.FindAccountByNumber(ctx, req.ToAccountNumber)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Transfer to %s", to.AccountNumber)
	}

	return s.execute(ctx, store.TransferParams{
		FromAccountID:     from.ID,
		ToAccountID:       to.ID,
		Amount:            req.Amount,
		Description:       description,
		RequireActiveCard: true,
	})
}

// resolveSourceCard loads a card, checks caller ownership of its account, and
// requires the card itself to be active.
func (s *TransferService) resolveSourceCard(ctx context.Context, caller Identity, cardID uuid.UUID) (*domain.Card, *domain.Account, error) {
	card, err := s.repo.FindCardByID(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}
	account, err := s.repo.FindAccountByID(ctx, card.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if err := RequireOwnerOrAdmin(caller, account.UserID); err != nil {
		return nil, nil, err
	}
	if card.Status != domain.CardStatusActive {
		return nil, nil, ErrCardNotActive
	}
	return card, account, nil
}

// CardToCardTransfer moves funds between the accounts behind two cards. Both
// cards must belong to the caller unless the caller is an admin.
func (s *TransferService) CardToCardTransfer(ctx context.Context, caller Identity, req domain.CardToCardTransferRequest) (*domain.Transaction, error) {
	if err := s.consumeRateLimit(ctx, caller); err != nil {
		return nil, err
	}

	_, from, err := s.resolveSourceCard(ctx, caller, req.FromCardID)
	if err != nil {
		return nil, err
	}

	toCard, err := s.repo.FindCardByID(ctx, req.ToCardID)
	if err != nil {
		return nil, err
	}
	to, err := s.repo.FindAccountByID(ctx, toCard.AccountID)
	if err != nil {
		return nil, err
	}
	if err := RequireOwnerOrAdmin(caller, to.UserID); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Transfer to card %s", s.codec.Mask(toCard.EncryptedCardNumber))
	}

	return s.execute(ctx, store.TransferParams{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        req.Amount,
		Description:   description,
	})
}

// CardToAccountTransfer moves funds from the account behind the caller's card
// to any account identified by number.
func (s *TransferService) CardToAccountTransfer(ctx context.Context, caller Identity, req domain.CardToAccountTransferRequest) (*domain.Transaction, error) {
	if err := s.consumeRateLimit(ctx, caller); err != nil {
		return nil, err
	}

	_, from, err := s.resolveSourceCard(ctx, caller, req.FromCardID)
	if err != nil {
		return nil, err
	}
	to, err := s.repo.FindAccountByNumber(ctx, req.ToAccountNumber)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Transfer to %s", to.AccountNumber)
	}

	return s.execute(ctx, store.TransferParams{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        req.Amount,
		Description:   description,
	})
}

// GetTransaction fetches one ledger row. The caller must own either side of
// the transfer or be an admin.
func (s *TransferService) GetTransaction(ctx context.Context, caller Identity, transactionID uuid.UUID) (*domain.TransactionView, error) {
	view, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if caller.Admin {
		return view, nil
	}
	for _, number := range []string{view.FromAccountNumber, view.ToAccountNumber} {
		account, err := s.repo.FindAccountByNumber(ctx, number)
		if err != nil {
			continue
		}
		if account.UserID == caller.UserID {
			return view, nil
		}
	}
	return nil, ErrForbidden
}

// ListUserTransactions lists ledger rows touching any of a user's accounts,
// newest first.
func (s *TransferService) ListUserTransactions(ctx context.Context, caller Identity, userID uuid.UUID) ([]domain.TransactionView, error) {
	if err := RequireOwnerOrAdmin(caller, userID); err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByUserID(ctx, userID)
}

// ListAccountTransactions lists ledger rows touching one account, gated on
// the account's owner.
func (s *TransferService) ListAccountTransactions(ctx context.Context, caller Identity, accountNumber string) ([]domain.TransactionView, error) {
	account, err := s.repo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if err := RequireOwnerOrAdmin(caller, account.UserID); err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByAccountNumber(ctx, accountNumber)
}

// ListUserTransactionsByDateRange lists a user's ledger rows inside the
// inclusive [start, end] window, newest first.
func (s *TransferService) ListUserTransactionsByDateRange(ctx context.Context, caller Identity, userID uuid.UUID, start, end time.Time) ([]domain.TransactionView, error) {
	if err := RequireOwnerOrAdmin(caller, userID); err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByUserAndDateRange(ctx, userID, start, end)
}
