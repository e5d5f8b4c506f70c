package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/domain"
	"github.com/bankcards/bankcards-service/internal/store"
)

// memRepo is an in-memory store.Repository for service tests. PerformTransfer
// mirrors the production protocol: it takes per-account locks in ascending id
// order, re-validates against the locked state, then mutates and appends the
// ledger row.
type memRepo struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*domain.User
	accounts     map[uuid.UUID]*domain.Account
	cards        map[uuid.UUID]*domain.Card
	transactions []*domain.Transaction

	accountLocks map[uuid.UUID]*sync.Mutex

	// cardNumberExists overrides the ciphertext lookup when set.
	cardNumberExists func(encrypted string) (bool, error)
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:        make(map[uuid.UUID]*domain.User),
		accounts:     make(map[uuid.UUID]*domain.Account),
		cards:        make(map[uuid.UUID]*domain.Card),
		accountLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *memRepo) addUser(user *domain.User) { r.users[user.ID] = user }

func (r *memRepo) addAccount(account *domain.Account) {
	r.accounts[account.ID] = account
	r.accountLocks[account.ID] = &sync.Mutex{}
}

func (r *memRepo) addCard(card *domain.Card) { r.cards[card.ID] = card }

func (r *memRepo) CreateUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, user.Username) || strings.EqualFold(existing.Email, user.Email) {
			return store.ErrDuplicateUser
		}
	}
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *memRepo) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memRepo) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Username, username) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *memRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, user := range r.users {
		out = append(out, *user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) CreateAccount(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account.CreatedAt = time.Now()
	r.accounts[account.ID] = account
	r.accountLocks[account.ID] = &sync.Mutex{}
	return nil
}

func (r *memRepo) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *memRepo) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.AccountNumber == accountNumber {
			copied := *account
			return &copied, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (r *memRepo) FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Account
	for _, account := range r.accounts {
		if account.UserID == userID {
			out = append(out, *account)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	if account.Balance != 0 {
		return store.ErrAccountNotEmpty
	}
	for _, tx := range r.transactions {
		if tx.FromAccountID == accountID || tx.ToAccountID == accountID {
			return store.ErrAccountHasHistory
		}
	}
	delete(r.accounts, accountID)
	return nil
}

func (r *memRepo) CreateCard(ctx context.Context, card *domain.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	card.CreatedAt = time.Now()
	r.cards[card.ID] = card
	return nil
}

func (r *memRepo) FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[cardID]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	copied := *card
	return &copied, nil
}

func (r *memRepo) FindCardsByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Card
	for _, card := range r.cards {
		if card.AccountID == accountID {
			out = append(out, *card)
		}
	}
	return out, nil
}

func (r *memRepo) FindCardsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Card
	for _, card := range r.cards {
		account, ok := r.accounts[card.AccountID]
		if ok && account.UserID == userID {
			out = append(out, *card)
		}
	}
	return out, nil
}

func (r *memRepo) CardNumberExists(ctx context.Context, encryptedCardNumber string) (bool, error) {
	if r.cardNumberExists != nil {
		return r.cardNumberExists(encryptedCardNumber)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, card := range r.cards {
		if card.EncryptedCardNumber == encryptedCardNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) UpdateCardStatus(ctx context.Context, cardID uuid.UUID, status domain.CardStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[cardID]
	if !ok {
		return store.ErrCardNotFound
	}
	card.Status = status
	return nil
}

func (r *memRepo) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cards[cardID]; !ok {
		return store.ErrCardNotFound
	}
	delete(r.cards, cardID)
	return nil
}

func (r *memRepo) ExpireCards(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired int64
	for _, card := range r.cards {
		if card.Status == domain.CardStatusActive && card.ExpiryDate.Before(now) {
			card.Status = domain.CardStatusExpired
			expired++
		}
	}
	return expired, nil
}

func (r *memRepo) lockAccounts(ids ...uuid.UUID) func() {
	seen := make(map[uuid.UUID]bool)
	var ordered []uuid.UUID
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })

	var locked []*sync.Mutex
	for _, id := range ordered {
		r.mu.Lock()
		lock := r.accountLocks[id]
		r.mu.Unlock()
		if lock != nil {
			lock.Lock()
			locked = append(locked, lock)
		}
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

func (r *memRepo) PerformTransfer(ctx context.Context, params store.TransferParams) (*domain.Transaction, error) {
	unlock := r.lockAccounts(params.FromAccountID, params.ToAccountID)
	defer unlock()

	r.mu.Lock()
	from, fromOK := r.accounts[params.FromAccountID]
	to, toOK := r.accounts[params.ToAccountID]
	hasActiveCard := !params.RequireActiveCard
	if params.RequireActiveCard && fromOK {
		for _, card := range r.cards {
			if card.AccountID == from.ID && card.Status == domain.CardStatusActive {
				hasActiveCard = true
				break
			}
		}
	}
	r.mu.Unlock()

	if !fromOK || !toOK {
		return nil, store.ErrAccountNotFound
	}
	if err := domain.ValidateTransfer(from, to, params.Amount, hasActiveCard); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	from.Balance -= params.Amount
	to.Balance += params.Amount
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
		CreatedAt:     time.Now(),
	}
	r.transactions = append(r.transactions, record)
	copied := *record
	return &copied, nil
}

func (r *memRepo) view(tx *domain.Transaction) domain.TransactionView {
	view := domain.TransactionView{
		ID:          tx.ID,
		Reference:   tx.Reference,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Type:        tx.Type,
		Status:      tx.Status,
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
	}
	if from, ok := r.accounts[tx.FromAccountID]; ok {
		view.FromAccountNumber = from.AccountNumber
	}
	if to, ok := r.accounts[tx.ToAccountID]; ok {
		view.ToAccountNumber = to.AccountNumber
	}
	return view
}

func (r *memRepo) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.transactions {
		if tx.ID == transactionID {
			view := r.view(tx)
			return &view, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (r *memRepo) accountOwnedBy(accountID, userID uuid.UUID) bool {
	account, ok := r.accounts[accountID]
	return ok && account.UserID == userID
}

func (r *memRepo) FindTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.TransactionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TransactionView
	for i := len(r.transactions) - 1; i >= 0; i-- {
		tx := r.transactions[i]
		if r.accountOwnedBy(tx.FromAccountID, userID) || r.accountOwnedBy(tx.ToAccountID, userID) {
			out = append(out, r.view(tx))
		}
	}
	return out, nil
}

func (r *memRepo) FindTransactionsByAccountNumber(ctx context.Context, accountNumber string) ([]domain.TransactionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TransactionView
	for i := len(r.transactions) - 1; i >= 0; i-- {
		view := r.view(r.transactions[i])
		if view.FromAccountNumber == accountNumber || view.ToAccountNumber == accountNumber {
			out = append(out, view)
		}
	}
	return out, nil
}

func (r *memRepo) FindTransactionsByUserAndDateRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]domain.TransactionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TransactionView
	for i := len(r.transactions) - 1; i >= 0; i-- {
		tx := r.transactions[i]
		if tx.CreatedAt.Before(start) || tx.CreatedAt.After(end) {
			continue
		}
		if r.accountOwnedBy(tx.FromAccountID, userID) || r.accountOwnedBy(tx.ToAccountID, userID) {
			out = append(out, r.view(tx))
		}
	}
	return out, nil
}

var _ store.Repository = (*memRepo)(nil)
