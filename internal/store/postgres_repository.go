/**
 * @description
 * PostgreSQL implementation of the `Repository` interface. All SQL lives
 * here; the business logic above never sees pgx types.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pooling.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bankcards/bankcards-service/internal/domain"
)

const uniqueViolationCode = "23505"

// PostgresRepository is the concrete pgx-backed Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository wraps a connection pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// CreateUser inserts a new user row.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, full_name, is_admin, status)
		VALUES ($1, lower(btrim($2)), lower(btrim($3)), $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.FullName, user.Admin, user.Status,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	return err
}

// FindUserByID retrieves a user by primary key.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, btrim(username), email, password_hash, full_name, is_admin, status, created_at
		FROM users WHERE id = $1
	`
	return r.scanUser(r.db.QueryRow(ctx, query, userID))
}

// FindUserByUsername retrieves a user by unique username.
func (r *PostgresRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, btrim(username), email, password_hash, full_name, is_admin, status, created_at
		FROM users WHERE lower(btrim(username)) = lower(btrim($1))
	`
	return r.scanUser(r.db.QueryRow(ctx, query, username))
}

// ListUsers returns every user, newest first.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	query := `
		SELECT id, btrim(username), email, password_hash, full_name, is_admin, status, created_at
		FROM users ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.FullName, &user.Admin, &user.Status, &user.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.FullName, &user.Admin, &user.Status, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateAccount inserts a new account row.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, account_number, balance, currency, type, status, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		account.ID, account.AccountNumber, account.Balance, account.Currency,
		account.Type, account.Status, account.UserID,
	)
	return err
}

// FindAccountByID retrieves an account by primary key.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := accountSelect + ` WHERE id = $1`
	return r.scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// FindAccountByNumber retrieves an account by its unique account number.
func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := accountSelect + ` WHERE account_number = $1`
	return r.scanAccount(r.db.QueryRow(ctx, query, accountNumber))
}

const accountSelect = `
	SELECT id, account_number, balance, currency, type, status, user_id, created_at
	FROM accounts`

func (r *PostgresRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
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

// FindAccountsByUserID lists all accounts owned by a user, newest first.
func (r *PostgresRepository) FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	query := accountSelect + ` WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID, &account.AccountNumber, &account.Balance, &account.Currency,
			&account.Type, &account.Status, &account.UserID, &account.CreatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// DeleteAccount removes an account only when its balance is zero and no ledger
// row references it. Ledger rows are append-only audit records and must
// survive account deletion attempts.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	if balance != 0 {
		return ErrAccountNotEmpty
	}

	var referenced bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions WHERE from_account_id = $1 OR to_account_id = $1
		)
	`, accountID).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return ErrAccountHasHistory
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cards WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateCard inserts a new card row. The number and CVV columns hold
// ciphertext tokens only.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.Card) error {
	query := `
		INSERT INTO cards (
			id, encrypted_card_number, encrypted_cvv, expiry_date,
			card_holder_name, type, status, daily_limit, account_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		card.ID, card.EncryptedCardNumber, card.EncryptedCVV, card.ExpiryDate,
		card.CardHolderName, card.Type, card.Status, card.DailyLimit, card.AccountID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateCardNumber
	}
	return err
}

const cardSelect = `
	SELECT id, encrypted_card_number, encrypted_cvv, expiry_date,
	       card_holder_name, type, status, daily_limit, account_id, created_at
	FROM cards`

func scanCard(row pgx.Row) (*domain.Card, error) {
	var card domain.Card
	err := row.Scan(
		&card.ID, &card.EncryptedCardNumber, &card.EncryptedCVV, &card.ExpiryDate,
		&card.CardHolderName, &card.Type, &card.Status, &card.DailyLimit,
		&card.AccountID, &card.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// FindCardByID retrieves a card by primary key.
func (r *PostgresRepository) FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	return scanCard(r.db.QueryRow(ctx, cardSelect+` WHERE id = $1`, cardID))
}

// FindCardsByAccountID lists all cards on one account.
func (r *PostgresRepository) FindCardsByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error) {
	rows, err := r.db.Query(ctx, cardSelect+` WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCards(rows)
}

// FindCardsByUserID lists all cards across a user's accounts.
func (r *PostgresRepository) FindCardsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	query := `
		SELECT c.id, c.encrypted_card_number, c.encrypted_cvv, c.expiry_date,
		       c.card_holder_name, c.type, c.status, c.daily_limit, c.account_id, c.created_at
		FROM cards c
		JOIN accounts a ON a.id = c.account_id
		WHERE a.user_id = $1
		ORDER BY c.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCards(rows)
}

func collectCards(rows pgx.Rows) ([]domain.Card, error) {
	var cards []domain.Card
	for rows.Next() {
		var card domain.Card
		if err := rows.Scan(
			&card.ID, &card.EncryptedCardNumber, &card.EncryptedCVV, &card.ExpiryDate,
			&card.CardHolderName, &card.Type, &card.Status, &card.DailyLimit,
			&card.AccountID, &card.CreatedAt,
		); err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// CardNumberExists checks presence by ciphertext token; plaintext numbers are
// never indexed.
func (r *PostgresRepository) CardNumberExists(ctx context.Context, encryptedCardNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cards WHERE encrypted_card_number = $1)`,
		encryptedCardNumber,
	).Scan(&exists)
	return exists, err
}

// UpdateCardStatus sets a card's lifecycle state.
func (r *PostgresRepository) UpdateCardStatus(ctx context.Context, cardID uuid.UUID, status domain.CardStatus) error {
	result, err := r.db.Exec(ctx, `UPDATE cards SET status = $1 WHERE id = $2`, status, cardID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// DeleteCard removes a card row.
func (r *PostgresRepository) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM cards WHERE id = $1`, cardID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// ExpireCards flips every ACTIVE card whose expiry date has passed to EXPIRED
// and returns the number of affected rows. Run by the daily sweep.
func (r *PostgresRepository) ExpireCards(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE cards SET status = $1
		WHERE status = $2 AND expiry_date < $3
	`, domain.CardStatusExpired, domain.CardStatusActive, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
