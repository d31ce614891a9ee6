package settlement

import (
	"context"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
)

// ReconcileResult reports one balance correction.
type ReconcileResult struct {
	AccountID uint  `json:"account_id"`
	OldNano   int64 `json:"old_nano"`
	NewNano   int64 `json:"new_nano"`
	DeltaNano int64 `json:"delta_nano"`
}

// Recompute derives an account's active balance from first principles:
// everything credited in, minus everything sent or confirmed out, minus
// budget still reserved by the account's open tasks. Withdrawals in
// pending or failed states never moved funds, so they do not subtract.
func (e *Engine) Recompute(accountID uint) (int64, error) {
	deposits, err := e.store.SumCreditedDeposits(accountID)
	if err != nil {
		return 0, err
	}
	withdrawals, err := e.store.SumSentWithdrawals(accountID)
	if err != nil {
		return 0, err
	}
	reserved, err := e.store.SumReservedBudgets(accountID)
	if err != nil {
		return 0, err
	}
	return deposits - withdrawals - reserved, nil
}

// Reconcile replaces the stored active balance with the recomputed one.
// Running it twice in a row yields a zero delta on the second run.
func (e *Engine) Reconcile(_ context.Context, telegramID int64) (*ReconcileResult, error) {
	account, err := e.store.FindAccountByTelegramID(telegramID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	balance, err := e.store.GetOrCreateBalance(account.ID)
	if err != nil {
		return nil, err
	}
	expected, err := e.Recompute(account.ID)
	if err != nil {
		return nil, err
	}

	res := &ReconcileResult{
		AccountID: account.ID,
		OldNano:   balance.ActiveNano,
		NewNano:   expected,
		DeltaNano: expected - balance.ActiveNano,
	}
	if res.DeltaNano == 0 {
		return res, nil
	}

	if _, err := e.store.SetActive(account.ID, expected); err != nil {
		return nil, err
	}
	metricReconcileCorrections.Inc()
	logger.WithFields(map[string]interface{}{
		"account": account.ID,
		"old":     res.OldNano,
		"new":     res.NewNano,
		"delta":   res.DeltaNano,
	}).Warn("balance drift corrected")
	return res, nil
}
