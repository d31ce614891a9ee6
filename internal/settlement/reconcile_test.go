package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/chain"
)

func TestReconcileCorrectsDrift(t *testing.T) {
	fc := &fakeChain{
		broadcastID: "w1",
		incoming: []chain.IncomingTx{
			{Hash: "d1", AmountNano: 10 * ton, Comment: "tg:555555555"},
		},
	}
	e, store := newTestEngine(t, fc)
	acc := newTestAccount(t, store, 555555555, 0)

	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}
	if _, err := e.RequestWithdrawal(context.Background(), "w1", acc.TelegramID, testDest, 3*ton); err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}
	if _, err := e.ReserveTaskBudget(acc.TelegramID, "promo", ton, 2); err != nil {
		t.Fatalf("ReserveTaskBudget failed: %v", err)
	}

	// Expected active: 10 deposited - 3 withdrawn - 2 reserved = 5.
	if bal := activeBalance(t, store, acc.ID); bal != 5*ton {
		t.Fatalf("setup balance = %d, want %d", bal, 5*ton)
	}

	// Corrupt the stored balance, then reconcile.
	if _, err := store.SetActive(acc.ID, 42*ton); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	res, err := e.Reconcile(context.Background(), acc.TelegramID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if res.NewNano != 5*ton {
		t.Errorf("reconciled balance = %d, want %d", res.NewNano, 5*ton)
	}
	if res.DeltaNano != 5*ton-42*ton {
		t.Errorf("delta = %d, want %d", res.DeltaNano, 5*ton-42*ton)
	}
	if bal := activeBalance(t, store, acc.ID); bal != 5*ton {
		t.Errorf("stored balance = %d, want %d", bal, 5*ton)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	fc := &fakeChain{incoming: []chain.IncomingTx{
		{Hash: "d1", AmountNano: 4 * ton, Comment: "tg:555555555"},
	}}
	e, store := newTestEngine(t, fc)
	acc := newTestAccount(t, store, 555555555, 0)

	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}

	first, err := e.Reconcile(context.Background(), acc.TelegramID)
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	second, err := e.Reconcile(context.Background(), acc.TelegramID)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if second.DeltaNano != 0 {
		t.Errorf("second delta = %d, want 0 (first was %d)", second.DeltaNano, first.DeltaNano)
	}
}

func TestReconcileIgnoresFailedWithdrawals(t *testing.T) {
	fc := &fakeChain{
		broadcastErr: chain.Permanentf("rejected"),
		incoming: []chain.IncomingTx{
			{Hash: "d1", AmountNano: 4 * ton, Comment: "tg:555555555"},
		},
	}
	e, store := newTestEngine(t, fc)
	acc := newTestAccount(t, store, 555555555, 0)

	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}
	// Fails permanently at broadcast, so it never moved funds.
	if _, err := e.RequestWithdrawal(context.Background(), "w1", acc.TelegramID, testDest, 3*ton); err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}

	res, err := e.Reconcile(context.Background(), acc.TelegramID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if res.NewNano != 4*ton {
		t.Errorf("reconciled balance = %d, want %d (failed withdrawal excluded)", res.NewNano, 4*ton)
	}
}

func TestReconcileUnknownAccount(t *testing.T) {
	e, _ := newTestEngine(t, &fakeChain{})
	if _, err := e.Reconcile(context.Background(), 12345); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestReconcileExcludesCancelledTasks(t *testing.T) {
	fc := &fakeChain{incoming: []chain.IncomingTx{
		{Hash: "d1", AmountNano: 10 * ton, Comment: "tg:555555555"},
	}}
	e, store := newTestEngine(t, fc)
	acc := newTestAccount(t, store, 555555555, 0)

	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}
	task, err := e.ReserveTaskBudget(acc.TelegramID, "promo", 2*ton, 2)
	if err != nil {
		t.Fatalf("ReserveTaskBudget failed: %v", err)
	}
	if _, err := e.CancelTask(task.ID); err != nil {
		t.Fatalf("CancelTask failed: %v", err)
	}

	res, err := e.Reconcile(context.Background(), acc.TelegramID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if res.DeltaNano != 0 {
		t.Errorf("delta = %d, want 0 after cancel refunded the reservation", res.DeltaNano)
	}
	if res.NewNano != 10*ton {
		t.Errorf("balance = %d, want %d", res.NewNano, 10*ton)
	}
}
