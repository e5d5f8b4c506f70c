package app

import (
	"context"
	"sync"
	"testing"

	"github.com/bankcards/bankcards-service/internal/domain"
)

// TestConcurrentTransfersConserveFunds runs opposed transfers over the same
// account pair from many goroutines and checks that money is neither created
// nor destroyed, and that the ledger row count matches the number of
// successful transfers.
func TestConcurrentTransfersConserveFunds(t *testing.T) {
	f := newTransferFixture(t)
	f.acctA.Balance = 10_000
	f.acctB.Balance = 10_000

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	run := func(req domain.TransferRequest, caller Identity) {
		defer wg.Done()
		for i := 0; i < perWorker; i++ {
			if _, err := f.service.Transfer(context.Background(), caller, req); err == nil {
				mu.Lock()
				completed++
				mu.Unlock()
			} else if !domain.IsValidationError(err) {
				t.Errorf("unexpected transfer error: %v", err)
			}
		}
	}

	aToB := domain.TransferRequest{
		FromAccountNumber: f.acctA.AccountNumber,
		ToAccountNumber:   f.acctB.AccountNumber,
		Amount:            7,
	}
	bToA := domain.TransferRequest{
		FromAccountNumber: f.acctB.AccountNumber,
		ToAccountNumber:   f.acctA.AccountNumber,
		Amount:            3,
	}

	for w := 0; w < workers/2; w++ {
		wg.Add(2)
		go run(aToB, f.aliceID)
		go run(bToA, f.bobID)
	}
	wg.Wait()

	a, b := f.balances(t)
	if a+b != 20_000 {
		t.Errorf("total balance = %d, want 20000", a+b)
	}
	if a < 0 || b < 0 {
		t.Errorf("negative balance after concurrent transfers: %d/%d", a, b)
	}
	if len(f.repo.transactions) != completed {
		t.Errorf("ledger has %d rows, want %d completed transfers", len(f.repo.transactions), completed)
	}
}
