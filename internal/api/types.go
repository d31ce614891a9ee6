package api

import ledgerdb "github.com/RustamRomanov/BlackMirrowMarket/internal/database"

type WithdrawalRequestBody struct {
	IdempotencyKey string `json:"idempotency_key"`
	TelegramID     int64  `json:"telegram_id"`
	ToAddress      string `json:"to_address"`
	AmountNano     int64  `json:"amount_nano"`
}

type OperatorWithdrawalBody struct {
	IdempotencyKey string `json:"idempotency_key"`
	ToAddress      string `json:"to_address"`
	AmountNano     int64  `json:"amount_nano"`
	Notes          string `json:"notes"`
}

type WithdrawalResponse struct {
	ID             uint   `json:"id"`
	IdempotencyKey string `json:"idempotency_key"`
	ToAddress      string `json:"to_address"`
	AmountNano     int64  `json:"amount_nano"`
	Status         string `json:"status"`
	ChainTxID      string `json:"chain_tx_id,omitempty"`
	ErrorDetail    string `json:"error_detail,omitempty"`
	AttemptCount   int    `json:"attempt_count"`
}

type WalletBalanceResponse struct {
	Address     string `json:"address"`
	BalanceNano int64  `json:"balance_nano"`
}

type AccountBalanceResponse struct {
	TelegramID   int64 `json:"telegram_id"`
	ActiveNano   int64 `json:"active_nano"`
	EscrowNano   int64 `json:"escrow_nano"`
	ReferralNano int64 `json:"referral_nano"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func withdrawalResponse(w *ledgerdb.WithdrawalRequest) WithdrawalResponse {
	resp := WithdrawalResponse{
		ID:             w.ID,
		IdempotencyKey: w.IdempotencyKey,
		ToAddress:      w.ToAddress,
		AmountNano:     w.AmountNano,
		Status:         w.Status,
		ErrorDetail:    w.ErrorDetail,
		AttemptCount:   w.AttemptCount,
	}
	if w.ChainTxID != nil {
		resp.ChainTxID = *w.ChainTxID
	}
	return resp
}
