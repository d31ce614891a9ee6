package settlement

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/chain"
	ledgerdb "github.com/RustamRomanov/BlackMirrowMarket/internal/database"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
	"github.com/RustamRomanov/BlackMirrowMarket/lib/boc"
	"github.com/RustamRomanov/BlackMirrowMarket/lib/transaction"
)

// RequestWithdrawal creates (or returns, for a repeated idempotency
// key) an outbound payment for a user account and makes the first send
// attempt. Funds are debited only after the chain accepts the
// broadcast; a request that never reaches sent leaves the balance
// untouched.
func (e *Engine) RequestWithdrawal(ctx context.Context, idempotencyKey string, telegramID int64, toAddress string, amountNano int64) (*ledgerdb.WithdrawalRequest, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	lock := e.keyLock(idempotencyKey)
	lock.Lock()
	defer lock.Unlock()

	// Idempotency contract: a known key returns the existing record
	// unchanged, with no new debit and no new send.
	existing, err := e.store.FindWithdrawalByKey(idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if err := e.readyToSend(); err != nil {
		return nil, err
	}
	if amountNano <= 0 {
		return nil, ErrInvalidAmount
	}
	dest, err := boc.ParseAddress(toAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

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
	if balance.ActiveNano < amountNano {
		return nil, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientFunds, balance.ActiveNano, amountNano)
	}

	// Record first, with no balance mutation: if the process dies here
	// the pending sweep picks the request up, and no money has moved.
	req := &ledgerdb.WithdrawalRequest{
		IdempotencyKey: idempotencyKey,
		AccountID:      &account.ID,
		ToAddress:      dest.ToFriendly(true),
		AmountNano:     amountNano,
		Status:         ledgerdb.WithdrawalPending,
	}
	if err := e.store.CreateWithdrawal(req); err != nil {
		return nil, err
	}

	// The deposit scanner matches on this same identifier, so a user
	// bouncing funds back keeps their attribution.
	comment := strconv.FormatInt(telegramID, 10)
	if err := e.attemptSend(ctx, req, dest, comment); err != nil {
		logger.Warnf("withdrawal %d first send attempt failed: %v", req.ID, err)
	}
	return req, nil
}

// RequestOperatorWithdrawal pays out directly from the custodial wallet
// with no beneficiary account; sufficiency is checked against the
// on-chain wallet balance instead of a ledger balance, and no ledger
// debit ever happens for it.
func (e *Engine) RequestOperatorWithdrawal(ctx context.Context, idempotencyKey string, toAddress string, amountNano int64, notes string) (*ledgerdb.WithdrawalRequest, error) {
	if idempotencyKey == "" {
		idempotencyKey = "operator-" + uuid.NewString()
	}

	lock := e.keyLock(idempotencyKey)
	lock.Lock()
	defer lock.Unlock()

	existing, err := e.store.FindWithdrawalByKey(idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if err := e.readyToSend(); err != nil {
		return nil, err
	}
	if amountNano <= 0 {
		return nil, ErrInvalidAmount
	}
	dest, err := boc.ParseAddress(toAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	walletBalance, err := e.chain.GetBalance(ctx, e.walletAddr.ToRaw())
	if err != nil {
		return nil, fmt.Errorf("checking wallet balance: %w", err)
	}
	if walletBalance < amountNano {
		return nil, fmt.Errorf("%w: wallet holds %d, requested %d", ErrInsufficientFunds, walletBalance, amountNano)
	}

	req := &ledgerdb.WithdrawalRequest{
		IdempotencyKey: idempotencyKey,
		ToAddress:      dest.ToFriendly(true),
		AmountNano:     amountNano,
		Status:         ledgerdb.WithdrawalPending,
		Notes:          notes,
	}
	if err := e.store.CreateWithdrawal(req); err != nil {
		return nil, err
	}

	if err := e.attemptSend(ctx, req, dest, ""); err != nil {
		logger.Warnf("operator withdrawal %d first send attempt failed: %v", req.ID, err)
	}
	return req, nil
}

// attemptSend drives one pending request through the serialized
// fetch-seqno, build, sign, broadcast section and performs the single
// debit on success. Broadcasts for the one custodial wallet must never
// race: two transfers built with the same sequence number would make
// the contract reject one of them.
func (e *Engine) attemptSend(ctx context.Context, req *ledgerdb.WithdrawalRequest, dest *boc.Address, comment string) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	// The pending sweep and a synchronous first attempt can both pick
	// up the same record; whichever gets here second must see the
	// other's result instead of its own stale copy, or the transfer
	// would broadcast and debit twice.
	fresh, err := e.store.GetWithdrawal(req.ID)
	if err != nil {
		return err
	}
	*req = *fresh
	if req.Status != ledgerdb.WithdrawalPending || req.ChainTxID != nil {
		return nil
	}

	req.AttemptCount++

	fail := func(cause error, terminal bool) error {
		req.ErrorDetail = cause.Error()
		if terminal {
			req.Status = ledgerdb.WithdrawalFailed
			metricWithdrawalsFailed.Inc()
		}
		if saveErr := e.store.SaveWithdrawal(req); saveErr != nil {
			logger.Errorf("saving withdrawal %d after failure: %v", req.ID, saveErr)
		}
		return cause
	}

	seqno, err := e.chain.GetSeqno(ctx, e.walletAddr.ToRaw())
	if err != nil {
		return fail(fmt.Errorf("fetching seqno: %w", err), chain.IsPermanent(err))
	}

	signed, err := transaction.BuildTransfer(e.keys, transaction.Transfer{
		WalletAddress: e.walletAddr,
		Destination:   dest,
		AmountNano:    req.AmountNano,
		Seqno:         seqno,
		Comment:       comment,
		ValidUntil:    uint32(e.now().Add(e.cfg.TransferTTL).Unix()),
	})
	if err != nil {
		// A build or sign failure is not transient; retrying with the
		// same inputs cannot succeed.
		return fail(fmt.Errorf("building transfer: %w", err), true)
	}

	txID, err := e.chain.Broadcast(ctx, signed.Bytes)
	if err != nil {
		metricBroadcasts.WithLabelValues("error").Inc()
		return fail(fmt.Errorf("broadcast: %w", err), chain.IsPermanent(err))
	}
	if txID == "" {
		txID = hex.EncodeToString(signed.Hash[:])
	}
	metricBroadcasts.WithLabelValues("ok").Inc()

	// The chain accepted the message: this is the pending-to-sent
	// transition and the only place a debit happens.
	if req.AccountID != nil {
		if b, err := e.store.ForceDebitActive(*req.AccountID, req.AmountNano); err != nil {
			logger.Errorf("debit for withdrawal %d failed after successful broadcast: %v", req.ID, err)
		} else if b.ActiveNano < 0 {
			// A concurrent spend passed validation before this debit.
			// The funds already left the wallet, so the debit stands;
			// the overdraw must be seen, not absorbed.
			logger.Errorf("account %d overdrawn to %d nano by withdrawal %d", *req.AccountID, b.ActiveNano, req.ID)
		}
	}
	req.Status = ledgerdb.WithdrawalSent
	req.ChainTxID = &txID
	req.ErrorDetail = ""
	if err := e.store.SaveWithdrawal(req); err != nil {
		return fmt.Errorf("saving sent withdrawal %d: %w", req.ID, err)
	}
	logger.WithFields(map[string]interface{}{
		"withdrawal": req.ID,
		"tx":         txID,
		"amount":     req.AmountNano,
		"seqno":      seqno,
	}).Info("withdrawal broadcast accepted")
	return nil
}

// ProcessPendingWithdrawals retries requests stuck in pending with no
// chain id. Both an attempt ceiling and a wall-clock age ceiling bound
// the retries; past either the record fails — funds were never moved,
// so no compensating credit is needed.
func (e *Engine) ProcessPendingWithdrawals(ctx context.Context) error {
	if err := e.readyToSend(); err != nil {
		return err
	}

	pending, err := e.store.PendingUnsent(10)
	if err != nil {
		return err
	}
	for i := range pending {
		req := &pending[i]

		age := e.now().Sub(req.CreatedAt)
		if age > e.cfg.WithdrawalMaxAge || req.AttemptCount >= e.cfg.WithdrawalMaxAttempts {
			req.Status = ledgerdb.WithdrawalFailed
			req.ErrorDetail = fmt.Sprintf("gave up after %d attempts over %s; funds were never debited", req.AttemptCount, age.Round(1e9))
			metricWithdrawalsFailed.Inc()
			if err := e.store.SaveWithdrawal(req); err != nil {
				logger.Errorf("saving expired withdrawal %d: %v", req.ID, err)
			}
			continue
		}

		dest, err := boc.ParseAddress(req.ToAddress)
		if err != nil {
			req.Status = ledgerdb.WithdrawalFailed
			req.ErrorDetail = "stored destination no longer parses: " + err.Error()
			if err := e.store.SaveWithdrawal(req); err != nil {
				logger.Errorf("saving invalid withdrawal %d: %v", req.ID, err)
			}
			continue
		}

		comment := ""
		if req.AccountID != nil {
			if tid, err := e.telegramIDForAccount(*req.AccountID); err == nil {
				comment = strconv.FormatInt(tid, 10)
			}
		}
		if err := e.attemptSend(ctx, req, dest, comment); err != nil {
			logger.Warnf("retry of withdrawal %d failed: %v", req.ID, err)
		}
	}
	return nil
}

// UpdatePendingTransactions polls the chain for a verdict on each sent
// request. A rejection after a successful broadcast is the one path
// that credits funds back, because the debit already happened at
// broadcast time.
func (e *Engine) UpdatePendingTransactions(ctx context.Context) error {
	sent, err := e.store.SentUnconfirmed()
	if err != nil {
		return err
	}
	for i := range sent {
		req := &sent[i]
		status, err := e.chain.GetTransactionStatus(ctx, *req.ChainTxID)
		if err != nil {
			logger.Warnf("status check for withdrawal %d (%s): %v", req.ID, *req.ChainTxID, err)
			continue
		}
		switch status {
		case chain.StatusAccepted:
			req.Status = ledgerdb.WithdrawalConfirmed
			if err := e.store.SaveWithdrawal(req); err != nil {
				logger.Errorf("saving confirmed withdrawal %d: %v", req.ID, err)
			}
		case chain.StatusFailed:
			req.Status = ledgerdb.WithdrawalFailed
			req.ErrorDetail = "chain rejected transaction after broadcast; funds credited back"
			if req.AccountID != nil {
				if _, err := e.store.CreditActive(*req.AccountID, req.AmountNano); err != nil {
					logger.Errorf("compensating credit for withdrawal %d failed: %v", req.ID, err)
					continue
				}
			}
			metricWithdrawalsFailed.Inc()
			if err := e.store.SaveWithdrawal(req); err != nil {
				logger.Errorf("saving rejected withdrawal %d: %v", req.ID, err)
			}
		case chain.StatusNotFound:
			// Still propagating; leave it for the next sweep.
		}
	}
	return nil
}

func (e *Engine) telegramIDForAccount(accountID uint) (int64, error) {
	acc, err := e.store.AccountByID(accountID)
	if err != nil {
		return 0, err
	}
	return acc.TelegramID, nil
}
