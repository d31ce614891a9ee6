package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TonAPI is the tonapi.io backend.
type TonAPI struct {
	http *resty.Client
}

// NewTonAPI builds the tonapi.io backend. apiKey may be empty for the
// public rate-limited tier.
func NewTonAPI(baseURL, apiKey string, timeout time.Duration) *TonAPI {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &TonAPI{http: c}
}

func (t *TonAPI) Name() string { return "tonapi" }

// flexInt64 accepts both string and numeric JSON encodings; tonapi is
// not consistent about which one it returns for amounts.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(v)
	return nil
}

func (t *TonAPI) GetBalance(ctx context.Context, address string) (int64, error) {
	var out struct {
		Balance flexInt64 `json:"balance"`
	}
	resp, err := t.http.R().SetContext(ctx).SetResult(&out).
		Get("/v2/accounts/" + address)
	if err != nil {
		return 0, fmt.Errorf("tonapi account request: %w", err)
	}
	if resp.IsError() {
		return 0, classifyHTTP(resp.StatusCode(), string(resp.Body()))
	}
	return int64(out.Balance), nil
}

func (t *TonAPI) GetSeqno(ctx context.Context, address string) (uint32, error) {
	var out struct {
		Success bool `json:"success"`
		Stack   []struct {
			Type string `json:"type"`
			Num  string `json:"num"`
		} `json:"stack"`
	}
	resp, err := t.http.R().SetContext(ctx).SetResult(&out).
		Get("/v2/blockchain/accounts/" + address + "/methods/seqno")
	if err != nil {
		return 0, fmt.Errorf("tonapi seqno request: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		// Uninitialized account: the contract does not exist yet and
		// its first transaction uses seqno 0.
		return 0, nil
	}
	if resp.IsError() {
		return 0, classifyHTTP(resp.StatusCode(), string(resp.Body()))
	}
	if !out.Success || len(out.Stack) == 0 {
		return 0, nil
	}
	raw := out.Stack[0].Num
	var v uint64
	var parseErr error
	if strings.HasPrefix(raw, "0x") {
		v, parseErr = strconv.ParseUint(raw[2:], 16, 32)
	} else {
		v, parseErr = strconv.ParseUint(raw, 10, 32)
	}
	if parseErr != nil {
		return 0, fmt.Errorf("tonapi seqno parse %q: %w", raw, parseErr)
	}
	return uint32(v), nil
}

func (t *TonAPI) Broadcast(ctx context.Context, signed []byte) (string, error) {
	payload := map[string]string{"boc": base64.StdEncoding.EncodeToString(signed)}
	resp, err := t.http.R().SetContext(ctx).SetBody(payload).
		Post("/v2/blockchain/message")
	if err != nil {
		return "", fmt.Errorf("tonapi broadcast request: %w", err)
	}
	if resp.IsError() {
		return "", classifyHTTP(resp.StatusCode(), string(resp.Body()))
	}
	// tonapi accepts the message without reporting an id; the caller
	// keys the transaction by the message hash it computed locally.
	return "", nil
}

func (t *TonAPI) GetTransactionStatus(ctx context.Context, txID string) (TxStatus, error) {
	var out struct {
		Success *bool `json:"success"`
	}
	resp, err := t.http.R().SetContext(ctx).SetResult(&out).
		Get("/v2/blockchain/transactions/" + txID)
	if err != nil {
		return StatusNotFound, fmt.Errorf("tonapi transaction request: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return StatusNotFound, nil
	}
	if resp.IsError() {
		return StatusNotFound, classifyHTTP(resp.StatusCode(), string(resp.Body()))
	}
	if out.Success != nil && !*out.Success {
		return StatusFailed, nil
	}
	return StatusAccepted, nil
}

func (t *TonAPI) ListIncoming(ctx context.Context, address string, limit int) ([]IncomingTx, error) {
	resp, err := t.http.R().SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get("/v2/blockchain/accounts/" + address + "/transactions")
	if err != nil {
		return nil, fmt.Errorf("tonapi transactions request: %w", err)
	}
	if resp.IsError() {
		return nil, classifyHTTP(resp.StatusCode(), string(resp.Body()))
	}

	var out struct {
		Transactions []struct {
			Hash  string `json:"hash"`
			InMsg *struct {
				Value  flexInt64 `json:"value"`
				Source *struct {
					Address string `json:"address"`
				} `json:"source"`
				DecodedBody json.RawMessage `json:"decoded_body"`
				RawBody     string          `json:"raw_body"`
				MsgData     json.RawMessage `json:"msg_data"`
			} `json:"in_msg"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("tonapi transactions decode: %w", err)
	}

	txs := make([]IncomingTx, 0, len(out.Transactions))
	for _, tx := range out.Transactions {
		if tx.InMsg == nil || int64(tx.InMsg.Value) <= 0 {
			continue
		}
		in := IncomingTx{
			Hash:       tx.Hash,
			AmountNano: int64(tx.InMsg.Value),
			RawBody:    tx.InMsg.RawBody,
		}
		if tx.InMsg.Source != nil {
			in.Source = tx.InMsg.Source.Address
		}
		in.Comment = firstText(tx.InMsg.DecodedBody, tx.InMsg.MsgData)
		txs = append(txs, in)
	}
	return txs, nil
}

// firstText digs a text comment out of whichever field shape the
// backend used for this message.
func firstText(blobs ...json.RawMessage) string {
	for _, blob := range blobs {
		if len(blob) == 0 {
			continue
		}
		// Sometimes the body is just a JSON string.
		var s string
		if err := json.Unmarshal(blob, &s); err == nil && s != "" {
			return s
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(blob, &m); err != nil {
			continue
		}
		for _, key := range []string{"text", "comment", "body"} {
			if v, ok := m[key]; ok {
				if err := json.Unmarshal(v, &s); err == nil && s != "" {
					return s
				}
			}
		}
	}
	return ""
}

var _ Backend = (*TonAPI)(nil)
