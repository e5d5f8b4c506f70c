/**
 * @description
 * The balance-mutation protocol. A transfer is one database transaction that
 * locks both account rows, re-validates the business rules against the locked
 * snapshots, applies the debit/credit pair, and inserts the ledger row. Either
 * everything commits or nothing does: the ledger can never contain a row whose
 * balance mutation did not also commit.
 *
 * Rows are locked in ascending account-id order so that concurrent transfers
 * over overlapping account pairs cannot deadlock.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bankcards/bankcards-service/internal/domain"
)

// transferTimeout bounds the lock-mutate-insert window so a stalled database
// surfaces as an error instead of a hung request.
const transferTimeout = 5 * time.Second

const lockAccountQuery = accountSelect + ` WHERE id = $1 FOR UPDATE`

// PerformTransfer executes one atomic transfer and returns the created ledger
// row. Validation rejections come back as domain typed errors with no state
// change.
func (r *PostgresRepository) PerformTransfer(ctx context.Context, params TransferParams) (*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	from, to, err := lockAccountPair(ctx, tx, params.FromAccountID, params.ToAccountID)
	if err != nil {
		return nil, err
	}

	hasActiveCard := true
	if params.RequireActiveCard {
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM cards WHERE account_id = $1 AND status = $2)
		`, from.ID, domain.CardStatusActive).Scan(&hasActiveCard)
		if err != nil {
			return nil, err
		}
	}

	if err := domain.ValidateTransfer(from, to, params.Amount, hasActiveCard); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE id = $2`, params.Amount, from.ID,
	); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2`, params.Amount, to.ID,
	); err != nil {
		return nil, err
	}

	record := &domain.Transaction{
		ID:            uuid.New(),
		Reference:     domain.NewTransactionReference(),
		Amount:        params.Amount,
		Currency:      from.Currency,
		Type:          domain.TransactionTypeTransfer,
		Status:        domain.TransactionStatusCompleted,
		Description:   params.Description,
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (
			id, reference, amount, currency, type, status, description,
			from_account_id, to_account_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`,
		record.ID, record.Reference, record.Amount, record.Currency, record.Type,
		record.Status, record.Description, record.FromAccountID, record.ToAccountID,
	).Scan(&record.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// lockAccountPair acquires FOR UPDATE locks on both accounts in ascending id
// order and returns the snapshots keyed back to from/to. A self-transfer
// locks the single row once; the validator rejects it afterwards so the
// rejection order stays deterministic.
func lockAccountPair(ctx context.Context, tx pgx.Tx, fromID, toID uuid.UUID) (from, to *domain.Account, err error) {
	lock := func(id uuid.UUID) (*domain.Account, error) {
		var account domain.Account
		err := tx.QueryRow(ctx, lockAccountQuery, id).Scan(
			&account.ID, &account.AccountNumber, &account.Balance, &account.Currency,
			&account.Type, &account.Status, &account.UserID, &account.CreatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrAccountNotFound
			}
			return nil, err
		}
		return &account, nil
	}

	if fromID == toID {
		account, err := lock(fromID)
		if err != nil {
			return nil, nil, err
		}
		return account, account, nil
	}

	first, second := fromID, toID
	if second.String() < first.String() {
		first, second = second, first
	}

	a, err := lock(first)
	if err != nil {
		return nil, nil, err
	}
	b, err := lock(second)
	if err != nil {
		return nil, nil, err
	}

	if a.ID == fromID {
		return a, b, nil
	}
	return b, a, nil
}

const transactionViewSelect = `
	SELECT t.id, t.reference, t.amount, t.currency, t.type, t.status, t.description,
	       fa.account_number, ta.account_number, t.created_at
	FROM transactions t
	JOIN accounts fa ON fa.id = t.from_account_id
	JOIN accounts ta ON ta.id = t.to_account_id`

func scanTransactionView(row pgx.Row) (*domain.TransactionView, error) {
	var view domain.TransactionView
	err := row.Scan(
		&view.ID, &view.Reference, &view.Amount, &view.Currency, &view.Type,
		&view.Status, &view.Description, &view.FromAccountNumber, &view.ToAccountNumber,
		&view.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &view, nil
}

// FindTransactionByID retrieves one ledger row with both account numbers.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionView, error) {
	return scanTransactionView(r.db.QueryRow(ctx, transactionViewSelect+` WHERE t.id = $1`, transactionID))
}

// FindTransactionsByUserID lists ledger rows touching any of a user's
// accounts, newest first.
func (r *PostgresRepository) FindTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.TransactionView, error) {
	query := transactionViewSelect + `
		WHERE fa.user_id = $1 OR ta.user_id = $1
		ORDER BY t.created_at DESC`
	return r.collectTransactionViews(ctx, query, userID)
}

// FindTransactionsByAccountNumber lists ledger rows touching one account,
// newest first.
func (r *PostgresRepository) FindTransactionsByAccountNumber(ctx context.Context, accountNumber string) ([]domain.TransactionView, error) {
	query := transactionViewSelect + `
		WHERE fa.account_number = $1 OR ta.account_number = $1
		ORDER BY t.created_at DESC`
	return r.collectTransactionViews(ctx, query, accountNumber)
}

// FindTransactionsByUserAndDateRange lists a user's ledger rows inside the
// inclusive [start, end] window, newest first.
func (r *PostgresRepository) FindTransactionsByUserAndDateRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]domain.TransactionView, error) {
	query := transactionViewSelect + `
		WHERE (fa.user_id = $1 OR ta.user_id = $1)
		  AND t.created_at >= $2 AND t.created_at <= $3
		ORDER BY t.created_at DESC`
	return r.collectTransactionViews(ctx, query, userID, start, end)
}

func (r *PostgresRepository) collectTransactionViews(ctx context.Context, query string, args ...any) ([]domain.TransactionView, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []domain.TransactionView
	for rows.Next() {
		var view domain.TransactionView
		if err := rows.Scan(
			&view.ID, &view.Reference, &view.Amount, &view.Currency, &view.Type,
			&view.Status, &view.Description, &view.FromAccountNumber, &view.ToAccountNumber,
			&view.CreatedAt,
		); err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, rows.Err()
}
