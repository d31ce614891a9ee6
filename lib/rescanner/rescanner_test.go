package rescanner

import (
	"context"
	"testing"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/chain"
)

type fakeClient struct {
	history []chain.IncomingTx
	lists   []int
}

func (f *fakeClient) GetBalance(ctx context.Context, address string) (int64, error) { return 0, nil }
func (f *fakeClient) GetSeqno(ctx context.Context, address string) (uint32, error) { return 0, nil }
func (f *fakeClient) Broadcast(ctx context.Context, signed []byte) (string, error) { return "", nil }
func (f *fakeClient) GetTransactionStatus(ctx context.Context, txID string) (chain.TxStatus, error) {
	return chain.StatusNotFound, nil
}

func (f *fakeClient) ListIncoming(ctx context.Context, address string, limit int) ([]chain.IncomingTx, error) {
	f.lists = append(f.lists, limit)
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

type countingRecorder struct {
	seen map[string]int
}

func (r *countingRecorder) RecordIncoming(tx chain.IncomingTx) error {
	if r.seen == nil {
		r.seen = make(map[string]int)
	}
	r.seen[tx.Hash]++
	return nil
}

func makeHistory(n int) []chain.IncomingTx {
	out := make([]chain.IncomingTx, n)
	for i := range out {
		out[i] = chain.IncomingTx{Hash: "tx-" + string(rune('0'+i%10)) + string(rune('a'+i/10)), AmountNano: 1}
	}
	return out
}

func TestPerformRescanWalksHistory(t *testing.T) {
	client := &fakeClient{history: makeHistory(25)}
	rec := &countingRecorder{}

	err := PerformRescan(context.Background(), RescanConfig{
		Client:        client,
		WalletAddress: "0:00",
		Recorder:      rec,
		BatchSize:     10,
		MaxDepth:      100,
	})
	if err != nil {
		t.Fatalf("PerformRescan failed: %v", err)
	}

	// First window of 10 is full, so the walk widens until the 25-entry
	// history runs out.
	if len(client.lists) < 2 {
		t.Errorf("listing calls = %d, want widening retries", len(client.lists))
	}
	if len(rec.seen) != 25 {
		t.Errorf("distinct transfers recorded = %d, want 25", len(rec.seen))
	}
}

func TestPerformRescanStopsAtMaxDepth(t *testing.T) {
	client := &fakeClient{history: makeHistory(100)}
	rec := &countingRecorder{}

	err := PerformRescan(context.Background(), RescanConfig{
		Client:        client,
		WalletAddress: "0:00",
		Recorder:      rec,
		BatchSize:     10,
		MaxDepth:      20,
	})
	if err != nil {
		t.Fatalf("PerformRescan failed: %v", err)
	}
	for _, limit := range client.lists {
		if limit > 20 {
			t.Errorf("listing asked for %d, past the depth cap of 20", limit)
		}
	}
}

func TestPerformRescanValidation(t *testing.T) {
	if err := PerformRescan(context.Background(), RescanConfig{}); err == nil {
		t.Error("empty config accepted")
	}
	if err := PerformRescan(context.Background(), RescanConfig{Client: &fakeClient{}, Recorder: &countingRecorder{}}); err == nil {
		t.Error("missing wallet address accepted")
	}
}
