// Package api exposes the settlement engine over HTTP: withdrawal
// submission, balance reads, reconciliation, and audit listings.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ledgerdb "github.com/RustamRomanov/BlackMirrowMarket/internal/database"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/settlement"
)

type API struct {
	Engine *settlement.Engine
}

func NewAPI(engine *settlement.Engine) *API {
	return &API{Engine: engine}
}

// Router builds the HTTP route table. Admin routes sit behind JWT;
// every route gets CORS, panic recovery, and request logging.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()

	public := func(h http.HandlerFunc) http.HandlerFunc {
		return ApplyMiddleware(h, a.JSONContentTypeMiddleware, a.LoggingMiddleware, a.ErrorMiddleware, a.CORSMiddleware)
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return ApplyMiddleware(h, a.JSONContentTypeMiddleware, a.JWTMiddleware, a.LoggingMiddleware, a.ErrorMiddleware, a.CORSMiddleware)
	}

	r.HandleFunc("/api/withdrawals", public(a.handleCreateWithdrawal)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/withdrawals", public(a.handleListWithdrawals)).Methods(http.MethodGet)
	r.HandleFunc("/api/withdrawals/{id}", public(a.handleGetWithdrawal)).Methods(http.MethodGet)
	r.HandleFunc("/api/wallet/balance", public(a.handleWalletBalance)).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{telegram_id}/balance", public(a.handleAccountBalance)).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{telegram_id}/deposits", public(a.handleAccountDeposits)).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{telegram_id}/reconcile", admin(a.handleReconcile)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/admin/withdrawals", admin(a.handleOperatorWithdrawal)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/health", public(a.handleHealth)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine sentinels to HTTP status codes. A degraded
// engine answers 503 with its configuration error so callers can tell
// "down for config reasons" apart from "bad request".
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, settlement.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrInvalidAddress):
		status = http.StatusBadRequest
	case errors.Is(err, settlement.ErrAccountNotFound),
		errors.Is(err, ledgerdb.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, settlement.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
