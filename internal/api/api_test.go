package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/chain"
	ledgerdb "github.com/RustamRomanov/BlackMirrowMarket/internal/database"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/settlement"
)

const (
	testPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"
	testWallet = "0:1111111111111111111111111111111111111111111111111111111111111111"
	testDest   = "0:2222222222222222222222222222222222222222222222222222222222222222"
)

// fakeChain answers every call with fixed values.
type fakeChain struct {
	balance int64
	seqno   uint32
	txID    string
}

func (f *fakeChain) GetBalance(ctx context.Context, address string) (int64, error) {
	return f.balance, nil
}

func (f *fakeChain) GetSeqno(ctx context.Context, address string) (uint32, error) {
	return f.seqno, nil
}

func (f *fakeChain) Broadcast(ctx context.Context, signed []byte) (string, error) {
	return f.txID, nil
}

func (f *fakeChain) GetTransactionStatus(ctx context.Context, txID string) (chain.TxStatus, error) {
	return chain.StatusNotFound, nil
}

func (f *fakeChain) ListIncoming(ctx context.Context, address string, limit int) ([]chain.IncomingTx, error) {
	return nil, nil
}

func newTestServer(t *testing.T, cfg settlement.Config, fc chain.Client) (*httptest.Server, *ledgerdb.Store) {
	t.Helper()
	store, err := ledgerdb.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	engine := settlement.New(store, fc, cfg)

	viper.Set("jwt_secret", "test-secret")
	viper.Set("allowed_origin", "http://localhost")
	if err := InitJWTKey(); err != nil {
		t.Fatalf("InitJWTKey failed: %v", err)
	}

	srv := httptest.NewServer(NewAPI(engine).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body interface{}, token string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestCreateWithdrawalEndpoint(t *testing.T) {
	srv, store := newTestServer(t, settlement.Config{
		RecoveryPhrase: testPhrase,
		WalletAddress:  testWallet,
	}, &fakeChain{txID: "abc"})

	acc := &ledgerdb.Account{TelegramID: 111111111}
	if err := store.CreateAccount(acc); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if _, err := store.CreditActive(acc.ID, 10_000_000_000); err != nil {
		t.Fatalf("CreditActive failed: %v", err)
	}

	resp := postJSON(t, srv.URL+"/api/withdrawals", WithdrawalRequestBody{
		IdempotencyKey: "k1",
		TelegramID:     111111111,
		ToAddress:      testDest,
		AmountNano:     4_000_000_000,
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out WithdrawalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.Status != ledgerdb.WithdrawalSent {
		t.Errorf("status = %s, want sent", out.Status)
	}
	if out.ChainTxID != "abc" {
		t.Errorf("chain tx id = %q, want abc", out.ChainTxID)
	}
}

func TestWithdrawalEndpointErrorMapping(t *testing.T) {
	srv, store := newTestServer(t, settlement.Config{
		RecoveryPhrase: testPhrase,
		WalletAddress:  testWallet,
	}, &fakeChain{})

	acc := &ledgerdb.Account{TelegramID: 111111111}
	if err := store.CreateAccount(acc); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	tests := []struct {
		name string
		body WithdrawalRequestBody
		want int
	}{
		{"bad address", WithdrawalRequestBody{TelegramID: 111111111, ToAddress: "junk", AmountNano: 1}, http.StatusBadRequest},
		{"zero amount", WithdrawalRequestBody{TelegramID: 111111111, ToAddress: testDest, AmountNano: 0}, http.StatusBadRequest},
		{"unknown account", WithdrawalRequestBody{TelegramID: 42, ToAddress: testDest, AmountNano: 1}, http.StatusNotFound},
		{"insufficient funds", WithdrawalRequestBody{TelegramID: 111111111, ToAddress: testDest, AmountNano: 1}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/withdrawals", tt.body, "")
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestDegradedEngineAnswers503(t *testing.T) {
	srv, _ := newTestServer(t, settlement.Config{}, &fakeChain{})

	resp := postJSON(t, srv.URL+"/api/withdrawals", WithdrawalRequestBody{
		TelegramID: 1, ToAddress: testDest, AmountNano: 1,
	}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 from degraded engine", resp.StatusCode)
	}
}

func TestHealthReportsDegradedState(t *testing.T) {
	srv, _ := newTestServer(t, settlement.Config{}, &fakeChain{})

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out["payments_enabled"] != false {
		t.Error("degraded engine reports payments enabled")
	}
	if out["config_error"] == nil {
		t.Error("degraded engine hides its config error")
	}
}

func TestAdminEndpointRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, settlement.Config{
		RecoveryPhrase: testPhrase,
		WalletAddress:  testWallet,
	}, &fakeChain{balance: 100_000_000_000, txID: "op"})

	body := OperatorWithdrawalBody{ToAddress: testDest, AmountNano: 1_000_000_000}

	resp := postJSON(t, srv.URL+"/api/admin/withdrawals", body, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", resp.StatusCode)
	}

	token, err := GenerateJWT("operator")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	resp = postJSON(t, srv.URL+"/api/admin/withdrawals", body, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", resp.StatusCode)
	}
}

func TestRequiresJSONContentType(t *testing.T) {
	srv, _ := newTestServer(t, settlement.Config{}, &fakeChain{})

	resp, err := http.Post(srv.URL+"/api/withdrawals", "text/plain", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", resp.StatusCode)
	}
}
