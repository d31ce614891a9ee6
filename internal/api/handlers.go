package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func (a *API) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	rec, err := a.Engine.RequestWithdrawal(r.Context(), req.IdempotencyKey, req.TelegramID, req.ToAddress, req.AmountNano)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalResponse(rec))
}

func (a *API) handleOperatorWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req OperatorWithdrawalBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	rec, err := a.Engine.RequestOperatorWithdrawal(r.Context(), req.IdempotencyKey, req.ToAddress, req.AmountNano, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalResponse(rec))
}

func (a *API) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	list, err := a.Engine.Store().ListWithdrawals(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]WithdrawalResponse, 0, len(list))
	for i := range list {
		out = append(out, withdrawalResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid withdrawal id"})
		return
	}
	rec, err := a.Engine.Store().GetWithdrawal(uint(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalResponse(rec))
}

func (a *API) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := a.Engine.WalletBalance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletBalanceResponse{
		Address:     a.Engine.WalletAddress(),
		BalanceNano: balance,
	})
}

func (a *API) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	telegramID, err := strconv.ParseInt(mux.Vars(r)["telegram_id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid telegram id"})
		return
	}
	account, err := a.Engine.Store().FindAccountByTelegramID(telegramID)
	if err != nil {
		writeError(w, err)
		return
	}
	if account == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "account not found"})
		return
	}
	balance, err := a.Engine.Store().GetOrCreateBalance(account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountBalanceResponse{
		TelegramID:   telegramID,
		ActiveNano:   balance.ActiveNano,
		EscrowNano:   balance.EscrowNano,
		ReferralNano: balance.ReferralNano,
	})
}

func (a *API) handleAccountDeposits(w http.ResponseWriter, r *http.Request) {
	telegramID, err := strconv.ParseInt(mux.Vars(r)["telegram_id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid telegram id"})
		return
	}
	account, err := a.Engine.Store().FindAccountByTelegramID(telegramID)
	if err != nil {
		writeError(w, err)
		return
	}
	if account == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "account not found"})
		return
	}
	deposits, err := a.Engine.Store().ListDepositsByAccount(account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposits)
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	telegramID, err := strconv.ParseInt(mux.Vars(r)["telegram_id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid telegram id"})
		return
	}
	res, err := a.Engine.Reconcile(r.Context(), telegramID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleHealth reports liveness plus whether payments are enabled, so a
// probe can distinguish a degraded deployment from a dead one.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]interface{}{
		"status":           "ok",
		"payments_enabled": a.Engine.Enabled(),
	}
	if err := a.Engine.ConfigError(); err != nil {
		resp["config_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
