package settlement

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/chain"
	ledgerdb "github.com/RustamRomanov/BlackMirrowMarket/internal/database"
)

func TestScanDepositsCreditsMatched(t *testing.T) {
	fc := &fakeChain{incoming: []chain.IncomingTx{
		{Hash: "d1", Source: testDest, AmountNano: 2 * ton, Comment: "tg:555555555"},
	}}
	e, store := newTestEngine(t, fc)
	acc := newTestAccount(t, store, 555555555, 0)

	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}

	if bal := activeBalance(t, store, acc.ID); bal != 2*ton {
		t.Errorf("balance = %d, want %d", bal, 2*ton)
	}
	deposits, err := store.ListDepositsByAccount(acc.ID)
	if err != nil {
		t.Fatalf("ListDepositsByAccount failed: %v", err)
	}
	if len(deposits) != 1 {
		t.Fatalf("deposit count = %d, want 1", len(deposits))
	}
	if deposits[0].Status != ledgerdb.DepositCredited {
		t.Errorf("status = %s, want credited", deposits[0].Status)
	}
	if deposits[0].CreditedAt == nil {
		t.Error("credited deposit has no credit timestamp")
	}
}

func TestScanDepositsIdempotent(t *testing.T) {
	fc := &fakeChain{incoming: []chain.IncomingTx{
		{Hash: "d1", AmountNano: 2 * ton, Comment: "tg:555555555"},
	}}
	e, store := newTestEngine(t, fc)
	acc := newTestAccount(t, store, 555555555, 0)

	for i := 0; i < 3; i++ {
		if err := e.ScanDeposits(context.Background()); err != nil {
			t.Fatalf("scan %d failed: %v", i, err)
		}
	}

	if bal := activeBalance(t, store, acc.ID); bal != 2*ton {
		t.Errorf("balance after repeated scans = %d, want a single credit of %d", bal, 2*ton)
	}
	deposits, err := store.ListDepositsByAccount(acc.ID)
	if err != nil {
		t.Fatalf("ListDepositsByAccount failed: %v", err)
	}
	if len(deposits) != 1 {
		t.Errorf("deposit count = %d, want 1", len(deposits))
	}
}

func TestScanDepositsPlainNumericComment(t *testing.T) {
	fc := &fakeChain{incoming: []chain.IncomingTx{
		{Hash: "d2", AmountNano: ton, Comment: "555555555"},
	}}
	e, store := newTestEngine(t, fc)
	acc := newTestAccount(t, store, 555555555, 0)

	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}
	if bal := activeBalance(t, store, acc.ID); bal != ton {
		t.Errorf("balance = %d, want %d", bal, ton)
	}
}

func TestScanDepositsUnmatchedThenResolved(t *testing.T) {
	fc := &fakeChain{incoming: []chain.IncomingTx{
		{Hash: "d1", AmountNano: 3 * ton, Comment: "tg:777777777"},
	}}
	e, store := newTestEngine(t, fc)

	// No account for the named id yet.
	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}
	unmatched, err := store.UnmatchedDeposits()
	if err != nil {
		t.Fatalf("UnmatchedDeposits failed: %v", err)
	}
	if len(unmatched) != 1 {
		t.Fatalf("unmatched count = %d, want 1", len(unmatched))
	}

	// User registers after sending.
	acc := newTestAccount(t, store, 777777777, 0)
	if err := e.ResolveUnmatched(context.Background()); err != nil {
		t.Fatalf("ResolveUnmatched failed: %v", err)
	}

	if bal := activeBalance(t, store, acc.ID); bal != 3*ton {
		t.Errorf("balance = %d, want %d after late match", bal, 3*ton)
	}
	unmatched, err = store.UnmatchedDeposits()
	if err != nil {
		t.Fatalf("UnmatchedDeposits failed: %v", err)
	}
	if len(unmatched) != 0 {
		t.Errorf("unmatched count = %d after resolve, want 0", len(unmatched))
	}
}

func TestScanDepositsNoUsableComment(t *testing.T) {
	fc := &fakeChain{incoming: []chain.IncomingTx{
		{Hash: "d1", AmountNano: ton, Comment: "thanks!"},
	}}
	e, store := newTestEngine(t, fc)

	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}
	// Recorded for audit, never matched, and the resolve pass skips it.
	if err := e.ResolveUnmatched(context.Background()); err != nil {
		t.Fatalf("ResolveUnmatched failed: %v", err)
	}
	unmatched, err := store.UnmatchedDeposits()
	if err != nil {
		t.Fatalf("UnmatchedDeposits failed: %v", err)
	}
	if len(unmatched) != 0 {
		t.Errorf("comment-less deposit appears in resolvable set")
	}
}

func TestScanDepositsRejectsZeroValue(t *testing.T) {
	fc := &fakeChain{incoming: []chain.IncomingTx{
		{Hash: "d1", AmountNano: 0, Comment: "tg:555555555"},
	}}
	e, store := newTestEngine(t, fc)
	acc := newTestAccount(t, store, 555555555, 0)

	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}
	if bal := activeBalance(t, store, acc.ID); bal != 0 {
		t.Errorf("zero-value deposit credited %d", bal)
	}
}

func TestScanDepositsRawBodyFallback(t *testing.T) {
	body := base64.StdEncoding.EncodeToString(append([]byte{0, 0, 0, 0}, []byte("tg:555555555")...))
	fc := &fakeChain{incoming: []chain.IncomingTx{
		{Hash: "d1", AmountNano: ton, RawBody: body},
	}}
	e, store := newTestEngine(t, fc)
	acc := newTestAccount(t, store, 555555555, 0)

	if err := e.ScanDeposits(context.Background()); err != nil {
		t.Fatalf("ScanDeposits failed: %v", err)
	}
	if bal := activeBalance(t, store, acc.ID); bal != ton {
		t.Errorf("balance = %d, want %d from raw body comment", bal, ton)
	}
}
