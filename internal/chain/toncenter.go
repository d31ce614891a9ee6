package chain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TonCenter is the toncenter.com backend, used as the fallback behind
// tonapi. Its sendBoc endpoint works without an API key, which is what
// makes it a useful last resort for broadcasts.
type TonCenter struct {
	http *resty.Client
}

func NewTonCenter(baseURL, apiKey string, timeout time.Duration) *TonCenter {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &TonCenter{http: c}
}

func (t *TonCenter) Name() string { return "toncenter" }

func (t *TonCenter) GetBalance(ctx context.Context, address string) (int64, error) {
	var out struct {
		Ok     bool   `json:"ok"`
		Error  string `json:"error"`
		Result string `json:"result"`
	}
	resp, err := t.http.R().SetContext(ctx).SetResult(&out).
		SetQueryParam("address", address).
		Get("/api/v2/getAddressBalance")
	if err != nil {
		return 0, fmt.Errorf("toncenter balance request: %w", err)
	}
	if resp.IsError() {
		return 0, classifyHTTP(resp.StatusCode(), string(resp.Body()))
	}
	if !out.Ok {
		return 0, Permanentf("toncenter balance: %s", out.Error)
	}
	v, err := strconv.ParseInt(out.Result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("toncenter balance parse %q: %w", out.Result, err)
	}
	return v, nil
}

func (t *TonCenter) GetSeqno(ctx context.Context, address string) (uint32, error) {
	var out struct {
		Ok     bool   `json:"ok"`
		Error  string `json:"error"`
		Result struct {
			ExitCode int             `json:"exit_code"`
			Stack    [][]interface{} `json:"stack"`
		} `json:"result"`
	}
	resp, err := t.http.R().SetContext(ctx).
		SetBody(map[string]interface{}{
			"address": address,
			"method":  "seqno",
			"stack":   []interface{}{},
		}).
		SetResult(&out).
		Post("/api/v2/runGetMethod")
	if err != nil {
		return 0, fmt.Errorf("toncenter seqno request: %w", err)
	}
	if resp.IsError() {
		return 0, classifyHTTP(resp.StatusCode(), string(resp.Body()))
	}
	if !out.Ok || out.Result.ExitCode != 0 || len(out.Result.Stack) == 0 {
		// seqno method missing means the wallet contract is not
		// deployed yet.
		return 0, nil
	}
	entry := out.Result.Stack[0]
	if len(entry) < 2 {
		return 0, nil
	}
	raw, ok := entry[1].(string)
	if !ok {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "0x")
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("toncenter seqno parse %q: %w", raw, err)
	}
	return uint32(v), nil
}

func (t *TonCenter) Broadcast(ctx context.Context, signed []byte) (string, error) {
	var out struct {
		Ok     bool   `json:"ok"`
		Error  string `json:"error"`
		Result struct {
			Hash string `json:"hash"`
		} `json:"result"`
	}
	resp, err := t.http.R().SetContext(ctx).
		SetBody(map[string]string{"boc": base64.StdEncoding.EncodeToString(signed)}).
		SetResult(&out).
		Post("/api/v2/sendBocReturnHash")
	if err != nil {
		return "", fmt.Errorf("toncenter broadcast request: %w", err)
	}
	if resp.IsError() {
		return "", classifyHTTP(resp.StatusCode(), string(resp.Body()))
	}
	if !out.Ok {
		return "", Permanentf("toncenter broadcast rejected: %s", out.Error)
	}
	return out.Result.Hash, nil
}

// GetTransactionStatus is not answerable through toncenter's v2 API by
// message hash alone; the fallback declines and the preferred backend
// stays authoritative for status.
func (t *TonCenter) GetTransactionStatus(ctx context.Context, txID string) (TxStatus, error) {
	return StatusNotFound, errUnsupported
}

func (t *TonCenter) ListIncoming(ctx context.Context, address string, limit int) ([]IncomingTx, error) {
	var out struct {
		Ok     bool   `json:"ok"`
		Error  string `json:"error"`
		Result []struct {
			TransactionID struct {
				Hash string `json:"hash"`
			} `json:"transaction_id"`
			InMsg *struct {
				Value   string `json:"value"`
				Source  string `json:"source"`
				Message string `json:"message"`
				MsgData struct {
					Body string `json:"body"`
					Text string `json:"text"`
				} `json:"msg_data"`
			} `json:"in_msg"`
		} `json:"result"`
	}
	resp, err := t.http.R().SetContext(ctx).
		SetQueryParam("address", address).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		Get("/api/v2/getTransactions")
	if err != nil {
		return nil, fmt.Errorf("toncenter transactions request: %w", err)
	}
	if resp.IsError() {
		return nil, classifyHTTP(resp.StatusCode(), string(resp.Body()))
	}
	if !out.Ok {
		return nil, Permanentf("toncenter transactions: %s", out.Error)
	}

	txs := make([]IncomingTx, 0, len(out.Result))
	for _, tx := range out.Result {
		if tx.InMsg == nil {
			continue
		}
		amount, err := strconv.ParseInt(tx.InMsg.Value, 10, 64)
		if err != nil || amount <= 0 {
			continue
		}
		comment := tx.InMsg.Message
		if comment == "" {
			comment = tx.InMsg.MsgData.Text
		}
		txs = append(txs, IncomingTx{
			Hash:       tx.TransactionID.Hash,
			Source:     tx.InMsg.Source,
			AmountNano: amount,
			Comment:    comment,
			RawBody:    tx.InMsg.MsgData.Body,
		})
	}
	return txs, nil
}

var _ Backend = (*TonCenter)(nil)
