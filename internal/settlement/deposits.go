package settlement

import (
	"context"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/chain"
	ledgerdb "github.com/RustamRomanov/BlackMirrowMarket/internal/database"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
)

// ScanDeposits lists recent incoming transfers to the custodial wallet
// and credits the ones whose comment resolves to a known account. Every
// observed transfer is persisted exactly once, keyed by its chain
// transaction hash, so repeated scans over overlapping windows never
// double-credit.
func (e *Engine) ScanDeposits(ctx context.Context) error {
	if err := e.readyToScan(); err != nil {
		return err
	}

	incoming, err := e.chain.ListIncoming(ctx, e.walletAddr.ToRaw(), e.cfg.DepositScanLimit)
	if err != nil {
		return err
	}
	for _, tx := range incoming {
		if err := e.recordDeposit(tx); err != nil {
			logger.Errorf("recording deposit %s: %v", tx.Hash, err)
		}
	}
	return nil
}

// RecordIncoming persists one observed transfer through the same
// idempotent path the scanner uses. Backfill passes feed it directly.
func (e *Engine) RecordIncoming(tx chain.IncomingTx) error {
	return e.recordDeposit(tx)
}

func (e *Engine) recordDeposit(tx chain.IncomingTx) error {
	seen, err := e.store.DepositExists(tx.Hash)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	comment := tx.Comment
	if comment == "" {
		comment = DecodeRawBody(tx.RawBody)
	}

	rec := &ledgerdb.DepositRecord{
		ChainTxID:   tx.Hash,
		FromAddress: tx.Source,
		AmountNano:  tx.AmountNano,
		Status:      ledgerdb.DepositUnmatched,
	}

	if tx.AmountNano <= 0 {
		// Dust and bounced zero-value messages are recorded so the scan
		// stays idempotent, but never credited.
		rec.Status = ledgerdb.DepositRejected
		return e.store.CreateDeposit(rec)
	}

	if id, ok := ExtractAccountID(comment); ok {
		rec.ExtractedID = &id
		account, err := e.store.FindAccountByTelegramID(id)
		if err != nil {
			return err
		}
		if account != nil {
			rec.AccountID = &account.ID
		}
	}

	// Persist before crediting: if the credit fails the record stays
	// unmatched and the resolve pass retries it, while the unique hash
	// still blocks a second insert.
	if err := e.store.CreateDeposit(rec); err != nil {
		return err
	}
	if rec.AccountID != nil {
		return e.creditDeposit(rec)
	}
	if rec.ExtractedID != nil {
		logger.Warnf("deposit %s names account %d which does not exist yet", rec.ChainTxID, *rec.ExtractedID)
	} else {
		logger.Warnf("deposit %s of %d nano has no usable comment (%q)", rec.ChainTxID, rec.AmountNano, comment)
	}
	return nil
}

func (e *Engine) creditDeposit(rec *ledgerdb.DepositRecord) error {
	if _, err := e.store.CreditActive(*rec.AccountID, rec.AmountNano); err != nil {
		return err
	}
	now := e.now()
	rec.Status = ledgerdb.DepositCredited
	rec.CreditedAt = &now
	if err := e.store.SaveDeposit(rec); err != nil {
		return err
	}
	metricDepositsCredited.Inc()
	logger.WithFields(map[string]interface{}{
		"tx":      rec.ChainTxID,
		"account": *rec.AccountID,
		"amount":  rec.AmountNano,
	}).Info("deposit credited")
	return nil
}

// ResolveUnmatched retries attribution for deposits whose comment named
// an account that did not exist at scan time. Users sometimes send
// first and register after.
func (e *Engine) ResolveUnmatched(_ context.Context) error {
	pending, err := e.store.UnmatchedDeposits()
	if err != nil {
		return err
	}
	for i := range pending {
		rec := &pending[i]
		account, err := e.store.FindAccountByTelegramID(*rec.ExtractedID)
		if err != nil {
			return err
		}
		if account == nil {
			continue
		}
		rec.AccountID = &account.ID
		if err := e.creditDeposit(rec); err != nil {
			logger.Errorf("crediting late-matched deposit %s: %v", rec.ChainTxID, err)
		}
	}
	return nil
}
