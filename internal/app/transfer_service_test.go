package app

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/cardcrypto"
	"github.com/bankcards/bankcards-service/internal/domain"
	"github.com/bankcards/bankcards-service/internal/store"
	"github.com/bankcards/bankcards-service/pkg/rabbitmq"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	events []rabbitmq.TransferEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (p *recordingPublisher) PublishTransferCompleted(ctx context.Context, exchange string, event rabbitmq.TransferEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

// fakeLimiter plays back a fixed count or error.
type fakeLimiter struct {
	count int
	err   error
}

func (l *fakeLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if l.err != nil {
		return 0, 0, l.err
	}
	return l.count, 1, nil
}

type transferFixture struct {
	repo      *memRepo
	service   *TransferService
	publisher *recordingPublisher

	alice, bob     *domain.User
	acctA, acctB   *domain.Account
	cardA, cardB   *domain.Card
	aliceID, bobID Identity
}

func testCodec(t *testing.T) *cardcrypto.Codec {
	t.Helper()
	codec, err := cardcrypto.New("0123456789abcdef0123456789abcdef", slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	return codec
}

func encryptOrFail(t *testing.T, codec *cardcrypto.Codec, plaintext string) string {
	t.Helper()
	token, err := codec.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

// newTransferFixture seeds two users, one active account each with an active
// card, and a transfer service with codec, publisher, and no limiter.
func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	repo := newMemRepo()
	codec := testCodec(t)
	publisher := &recordingPublisher{}

	alice := &domain.User{ID: uuid.New(), Username: "alice", Status: domain.UserStatusActive}
	bob := &domain.User{ID: uuid.New(), Username: "bob", Status: domain.UserStatusActive}
	repo.addUser(alice)
	repo.addUser(bob)

	acctA := &domain.Account{
		ID: uuid.New(), AccountNumber: "11110000111100001111",
		Balance: 100, Currency: "USD",
		Type: domain.AccountTypeCurrent, Status: domain.AccountStatusActive,
		UserID: alice.ID,
	}
	acctB := &domain.Account{
		ID: uuid.New(), AccountNumber: "22220000222200002222",
		Balance: 0, Currency: "USD",
		Type: domain.AccountTypeCurrent, Status: domain.AccountStatusActive,
		UserID: bob.ID,
	}
	repo.addAccount(acctA)
	repo.addAccount(acctB)

	cardA := &domain.Card{
		ID:                  uuid.New(),
		EncryptedCardNumber: encryptOrFail(t, codec, "4000111122223333"),
		EncryptedCVV:        encryptOrFail(t, codec, "123"),
		ExpiryDate:          time.Now().Add(365 * 24 * time.Hour),
		Status:              domain.CardStatusActive,
		AccountID:           acctA.ID,
	}
	cardB := &domain.Card{
		ID:                  uuid.New(),
		EncryptedCardNumber: encryptOrFail(t, codec, "4000444455556666"),
		EncryptedCVV:        encryptOrFail(t, codec, "456"),
		ExpiryDate:          time.Now().Add(365 * 24 * time.Hour),
		Status:              domain.CardStatusActive,
		AccountID:           acctB.ID,
	}
	repo.addCard(cardA)
	repo.addCard(cardB)

	service := NewTransferService(repo, codec, publisher, nil, 0, "bankcards_events", slog.Default())

	return &transferFixture{
		repo:      repo,
		service:   service,
		publisher: publisher,
		alice:     alice,
		bob:       bob,
		acctA:     acctA,
		acctB:     acctB,
		cardA:     cardA,
		cardB:     cardB,
		aliceID:   Identity{UserID: alice.ID},
		bobID:     Identity{UserID: bob.ID},
	}
}

func (f *transferFixture) balances(t *testing.T) (int64, int64) {
	t.Helper()
	a, err := f.repo.FindAccountByID(context.Background(), f.acctA.ID)
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.repo.FindAccountByID(context.Background(), f.acctB.ID)
	if err != nil {
		t.Fatal(err)
	}
	return a.Balance, b.Balance
}

func (f *transferFixture) assertUntouched(t *testing.T) {
	t.Helper()
	a, b := f.balances(t)
	if a != 100 || b != 0 {
		t.Errorf("balances changed to %d/%d on a rejected transfer", a, b)
	}
	if len(f.repo.transactions) != 0 {
		t.Errorf("ledger has %d rows after a rejected transfer", len(f.repo.transactions))
	}
}

func TestTransferSuccess(t *testing.T) {
	f := newTransferFixture(t)

	record, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
		FromAccountNumber: f.acctA.AccountNumber,
		ToAccountNumber:   f.acctB.AccountNumber,
		Amount:            100,
	})
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}

	a, b := f.balances(t)
	if a != 0 || b != 100 {
		t.Errorf("balances = %d/%d, want 0/100", a, b)
	}
	if len(f.repo.transactions) != 1 {
		t.Fatalf("ledger has %d rows, want 1", len(f.repo.transactions))
	}
	if record.Status != domain.TransactionStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", record.Status)
	}
	if record.Currency != "USD" || record.Amount != 100 {
		t.Errorf("record carries %d %s, want 100 USD", record.Amount, record.Currency)
	}
	if record.Description != "Transfer to "+f.acctB.AccountNumber {
		t.Errorf("default description = %q", record.Description)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.publisher.events))
	}
	if f.publisher.events[0].Reference != record.Reference {
		t.Error("published event does not reference the ledger row")
	}
}

func TestTransferKeepsCallerDescription(t *testing.T) {
	f := newTransferFixture(t)

	record, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
		FromAccountNumber: f.acctA.AccountNumber,
		ToAccountNumber:   f.acctB.AccountNumber,
		Amount:            10,
		Description:       "rent",
	})
	if err != nil {
		t.Fatal(err)
	}
	if record.Description != "rent" {
		t.Errorf("description = %q, want caller's", record.Description)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	f := newTransferFixture(t)
	f.acctA.Balance = 50

	_, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
		FromAccountNumber: f.acctA.AccountNumber,
		ToAccountNumber:   f.acctB.AccountNumber,
		Amount:            100,
	})
	var ife *domain.InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("error = %v, want InsufficientFundsError", err)
	}
	if ife.Balance != 50 || ife.Required != 100 {
		t.Errorf("carries balance=%d required=%d, want 50/100", ife.Balance, ife.Required)
	}

	a, b := f.balances(t)
	if a != 50 || b != 0 {
		t.Errorf("balances = %d/%d, want untouched 50/0", a, b)
	}
	if len(f.repo.transactions) != 0 {
		t.Error("rejected transfer created a ledger row")
	}
	if len(f.publisher.events) != 0 {
		t.Error("rejected transfer published an event")
	}
}

func TestTransferRejectsNonOwner(t *testing.T) {
	f := newTransferFixture(t)

	_, err := f.service.Transfer(context.Background(), f.bobID, domain.TransferRequest{
		FromAccountNumber: f.acctA.AccountNumber,
		ToAccountNumber:   f.acctB.AccountNumber,
		Amount:            10,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
	f.assertUntouched(t)
}

func TestTransferAdminMayMoveAnyFunds(t *testing.T) {
	f := newTransferFixture(t)
	admin := Identity{UserID: uuid.New(), Admin: true}

	if _, err := f.service.Transfer(context.Background(), admin, domain.TransferRequest{
		FromAccountNumber: f.acctA.AccountNumber,
		ToAccountNumber:   f.acctB.AccountNumber,
		Amount:            10,
	}); err != nil {
		t.Errorf("admin transfer rejected: %v", err)
	}
}

func TestTransferValidationRejections(t *testing.T) {
	t.Run("non-positive amount", func(t *testing.T) {
		f := newTransferFixture(t)
		for _, amount := range []int64{0, -10} {
			_, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
				FromAccountNumber: f.acctA.AccountNumber,
				ToAccountNumber:   f.acctB.AccountNumber,
				Amount:            amount,
			})
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Kind != domain.ValidationInvalidAmount {
				t.Errorf("amount=%d: error = %v, want INVALID_AMOUNT", amount, err)
			}
		}
		f.assertUntouched(t)
	})

	t.Run("self transfer", func(t *testing.T) {
		f := newTransferFixture(t)
		_, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
			FromAccountNumber: f.acctA.AccountNumber,
			ToAccountNumber:   f.acctA.AccountNumber,
			Amount:            10,
		})
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Kind != domain.ValidationSelfTransfer {
			t.Errorf("error = %v, want SELF_TRANSFER", err)
		}
		f.assertUntouched(t)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		f := newTransferFixture(t)
		f.acctB.Currency = "EUR"
		_, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
			FromAccountNumber: f.acctA.AccountNumber,
			ToAccountNumber:   f.acctB.AccountNumber,
			Amount:            10,
		})
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Kind != domain.ValidationCurrencyMismatch {
			t.Errorf("error = %v, want CURRENCY_MISMATCH", err)
		}
		f.assertUntouched(t)
	})

	t.Run("blocked source account", func(t *testing.T) {
		f := newTransferFixture(t)
		f.acctA.Status = domain.AccountStatusBlocked
		_, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
			FromAccountNumber: f.acctA.AccountNumber,
			ToAccountNumber:   f.acctB.AccountNumber,
			Amount:            10,
		})
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Kind != domain.ValidationAccountInactive {
			t.Errorf("error = %v, want ACCOUNT_INACTIVE", err)
		}
	})

	t.Run("no active card on source", func(t *testing.T) {
		f := newTransferFixture(t)
		f.cardA.Status = domain.CardStatusBlocked
		_, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
			FromAccountNumber: f.acctA.AccountNumber,
			ToAccountNumber:   f.acctB.AccountNumber,
			Amount:            10,
		})
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Kind != domain.ValidationActiveCardRequired {
			t.Errorf("error = %v, want ACTIVE_CARD_REQUIRED", err)
		}
		f.assertUntouched(t)
	})

	t.Run("unknown destination", func(t *testing.T) {
		f := newTransferFixture(t)
		_, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
			FromAccountNumber: f.acctA.AccountNumber,
			ToAccountNumber:   "00000000000000000000",
			Amount:            10,
		})
		if !errors.Is(err, store.ErrAccountNotFound) {
			t.Errorf("error = %v, want ErrAccountNotFound", err)
		}
		f.assertUntouched(t)
	})
}

func TestCardToCardTransfer(t *testing.T) {
	t.Run("cross-user destination forbidden", func(t *testing.T) {
		f := newTransferFixture(t)
		_, err := f.service.CardToCardTransfer(context.Background(), f.aliceID, domain.CardToCardTransferRequest{
			FromCardID: f.cardA.ID,
			ToCardID:   f.cardB.ID,
			Amount:     10,
		})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
		f.assertUntouched(t)
	})

	t.Run("blocked source card", func(t *testing.T) {
		f := newTransferFixture(t)
		f.cardB.AccountID = f.acctA.ID // both cards on alice's side
		f.cardA.Status = domain.CardStatusBlocked
		_, err := f.service.CardToCardTransfer(context.Background(), f.aliceID, domain.CardToCardTransferRequest{
			FromCardID: f.cardA.ID,
			ToCardID:   f.cardB.ID,
			Amount:     10,
		})
		if !errors.Is(err, ErrCardNotActive) {
			t.Errorf("error = %v, want ErrCardNotActive", err)
		}
	})

	t.Run("admin may bridge users", func(t *testing.T) {
		f := newTransferFixture(t)
		admin := Identity{UserID: uuid.New(), Admin: true}
		record, err := f.service.CardToCardTransfer(context.Background(), admin, domain.CardToCardTransferRequest{
			FromCardID: f.cardA.ID,
			ToCardID:   f.cardB.ID,
			Amount:     25,
		})
		if err != nil {
			t.Fatalf("admin card-to-card rejected: %v", err)
		}
		if record.Description != "Transfer to card **** **** **** 6666" {
			t.Errorf("default description = %q", record.Description)
		}
		a, b := f.balances(t)
		if a != 75 || b != 25 {
			t.Errorf("balances = %d/%d, want 75/25", a, b)
		}
	})
}

func TestCardToAccountTransfer(t *testing.T) {
	f := newTransferFixture(t)

	record, err := f.service.CardToAccountTransfer(context.Background(), f.aliceID, domain.CardToAccountTransferRequest{
		FromCardID:      f.cardA.ID,
		ToAccountNumber: f.acctB.AccountNumber,
		Amount:          40,
	})
	if err != nil {
		t.Fatalf("CardToAccountTransfer returned error: %v", err)
	}
	if record.Description != "Transfer to "+f.acctB.AccountNumber {
		t.Errorf("default description = %q", record.Description)
	}
	a, b := f.balances(t)
	if a != 60 || b != 40 {
		t.Errorf("balances = %d/%d, want 60/40", a, b)
	}
}

func TestCardToAccountRejectsForeignCard(t *testing.T) {
	f := newTransferFixture(t)

	_, err := f.service.CardToAccountTransfer(context.Background(), f.bobID, domain.CardToAccountTransferRequest{
		FromCardID:      f.cardA.ID,
		ToAccountNumber: f.acctB.AccountNumber,
		Amount:          10,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
	f.assertUntouched(t)
}

func TestTransferRateLimited(t *testing.T) {
	f := newTransferFixture(t)
	f.service.limiter = &fakeLimiter{count: 31}
	f.service.rateLimit = 30

	_, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
		FromAccountNumber: f.acctA.AccountNumber,
		ToAccountNumber:   f.acctB.AccountNumber,
		Amount:            10,
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
	f.assertUntouched(t)
}

func TestTransferProceedsWhenLimiterDown(t *testing.T) {
	f := newTransferFixture(t)
	f.service.limiter = &fakeLimiter{err: errors.New("redis down")}
	f.service.rateLimit = 30

	if _, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
		FromAccountNumber: f.acctA.AccountNumber,
		ToAccountNumber:   f.acctB.AccountNumber,
		Amount:            10,
	}); err != nil {
		t.Errorf("transfer rejected while limiter down: %v", err)
	}
}

func TestGetTransactionAuthorization(t *testing.T) {
	f := newTransferFixture(t)

	record, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
		FromAccountNumber: f.acctA.AccountNumber,
		ToAccountNumber:   f.acctB.AccountNumber,
		Amount:            10,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Either side may read it.
	for _, caller := range []Identity{f.aliceID, f.bobID, {UserID: uuid.New(), Admin: true}} {
		if _, err := f.service.GetTransaction(context.Background(), caller, record.ID); err != nil {
			t.Errorf("caller %v denied: %v", caller, err)
		}
	}

	// A third party may not.
	if _, err := f.service.GetTransaction(context.Background(), Identity{UserID: uuid.New()}, record.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestListTransactions(t *testing.T) {
	f := newTransferFixture(t)

	for i := 0; i < 3; i++ {
		if _, err := f.service.Transfer(context.Background(), f.aliceID, domain.TransferRequest{
			FromAccountNumber: f.acctA.AccountNumber,
			ToAccountNumber:   f.acctB.AccountNumber,
			Amount:            10,
		}); err != nil {
			t.Fatal(err)
		}
	}

	views, err := f.service.ListUserTransactions(context.Background(), f.aliceID, f.alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 3 {
		t.Errorf("user listing has %d rows, want 3", len(views))
	}

	if _, err := f.service.ListUserTransactions(context.Background(), f.bobID, f.alice.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("cross-user listing error = %v, want ErrForbidden", err)
	}

	byAccount, err := f.service.ListAccountTransactions(context.Background(), f.bobID, f.acctB.AccountNumber)
	if err != nil {
		t.Fatal(err)
	}
	if len(byAccount) != 3 {
		t.Errorf("account listing has %d rows, want 3", len(byAccount))
	}

	window, err := f.service.ListUserTransactionsByDateRange(
		context.Background(), f.aliceID, f.alice.ID,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(window) != 3 {
		t.Errorf("windowed listing has %d rows, want 3", len(window))
	}

	empty, err := f.service.ListUserTransactionsByDateRange(
		context.Background(), f.aliceID, f.alice.ID,
		time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("out-of-window listing has %d rows, want 0", len(empty))
	}
}
