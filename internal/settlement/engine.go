// Package settlement is the core of the payment engine: the idempotent
// withdrawal state machine, the deposit scanner, and balance
// reconciliation. It owns every balance mutation in the system.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/chain"
	ledgerdb "github.com/RustamRomanov/BlackMirrowMarket/internal/database"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/wallet"
	"github.com/RustamRomanov/BlackMirrowMarket/lib/boc"
)

var (
	ErrNotConfigured     = errors.New("settlement: engine is not configured")
	ErrInvalidAmount     = errors.New("settlement: amount must be positive")
	ErrInvalidAddress    = errors.New("settlement: malformed destination address")
	ErrAccountNotFound   = errors.New("settlement: account not found")
	ErrInsufficientFunds = errors.New("settlement: insufficient funds")
)

// Config carries the values the engine needs; mechanism (env, file) is
// the caller's concern.
type Config struct {
	RecoveryPhrase string
	WalletAddress  string

	WithdrawalMaxAttempts int
	WithdrawalMaxAge      time.Duration
	DepositScanLimit      int
	// TransferTTL bounds how long a signed message stays valid on chain.
	TransferTTL time.Duration

	AppCommissionPercent      int64
	ReferralCommissionPercent int64
}

func (c *Config) applyDefaults() {
	if c.WithdrawalMaxAttempts <= 0 {
		c.WithdrawalMaxAttempts = 5
	}
	if c.WithdrawalMaxAge <= 0 {
		c.WithdrawalMaxAge = 10 * time.Minute
	}
	if c.DepositScanLimit <= 0 {
		c.DepositScanLimit = 100
	}
	if c.TransferTTL <= 0 {
		c.TransferTTL = 5 * time.Minute
	}
	if c.AppCommissionPercent <= 0 {
		c.AppCommissionPercent = 10
	}
	if c.ReferralCommissionPercent <= 0 {
		c.ReferralCommissionPercent = 5
	}
}

// Engine is the settlement engine. It is built exactly once at startup
// from validated configuration and passed by handle to whatever needs
// it; there is no lazy re-initialization.
type Engine struct {
	store *ledgerdb.Store
	chain chain.Client
	cfg   Config

	keys       *wallet.Keypair // nil when the recovery phrase is absent or invalid
	walletAddr *boc.Address    // nil when the wallet address is absent or invalid
	configErr  error           // sticky reason the engine is degraded

	// sendMu serializes the fetch-seqno, build, sign, broadcast critical
	// section. The wallet contract accepts exactly one transaction per
	// sequence number, and the engine owns exactly one signing wallet.
	sendMu sync.Mutex

	keyMu    sync.Mutex
	keyLocks map[string]*sync.Mutex

	now func() time.Time
}

// New builds the engine. Missing or invalid wallet configuration never
// fails construction: the engine comes up degraded and every payment
// operation reports the configuration error, so the surrounding system
// keeps running without payment features.
func New(store *ledgerdb.Store, chainClient chain.Client, cfg Config) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		store:    store,
		chain:    chainClient,
		cfg:      cfg,
		keyLocks: make(map[string]*sync.Mutex),
		now:      time.Now,
	}

	if cfg.WalletAddress == "" {
		e.configErr = fmt.Errorf("%w: wallet address is not set", ErrNotConfigured)
		logger.Warn("wallet address is not set, settlement engine is disabled")
	} else if addr, err := boc.ParseAddress(cfg.WalletAddress); err != nil {
		e.configErr = fmt.Errorf("%w: wallet address: %v", ErrNotConfigured, err)
		logger.Errorf("invalid wallet address: %v", err)
	} else {
		e.walletAddr = addr
	}

	if cfg.RecoveryPhrase == "" {
		if e.configErr == nil {
			e.configErr = fmt.Errorf("%w: recovery phrase is not set", ErrNotConfigured)
		}
		logger.Warn("recovery phrase is not set, outbound transfers are disabled")
	} else if keys, err := wallet.Derive(cfg.RecoveryPhrase); err != nil {
		if e.configErr == nil {
			e.configErr = fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		logger.Errorf("recovery phrase rejected: %v", err)
	} else {
		e.keys = keys
	}

	return e
}

// Enabled reports whether outbound transfers can be made.
func (e *Engine) Enabled() bool {
	return e.keys != nil && e.walletAddr != nil
}

// ConfigError returns why the engine is degraded, or nil.
func (e *Engine) ConfigError() error {
	return e.configErr
}

// Store exposes the ledger store for read-only audit queries.
func (e *Engine) Store() *ledgerdb.Store {
	return e.store
}

// readyToSend gates every operation that could move money out.
func (e *Engine) readyToSend() error {
	if !e.Enabled() {
		return e.configErr
	}
	return nil
}

// readyToScan gates deposit observation, which needs only the address.
func (e *Engine) readyToScan() error {
	if e.walletAddr == nil {
		return e.configErr
	}
	return nil
}

// keyLock returns the narrow per-idempotency-key lock. It is separate
// from sendMu on purpose: dedup lookups for different keys may run
// concurrently with an in-flight broadcast.
func (e *Engine) keyLock(key string) *sync.Mutex {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	l, ok := e.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		e.keyLocks[key] = l
	}
	return l
}

// WalletAddress returns the custodial wallet address in user-friendly
// form, or empty when not configured.
func (e *Engine) WalletAddress() string {
	if e.walletAddr == nil {
		return ""
	}
	return e.walletAddr.ToFriendly(true)
}

// WalletBalance returns the custodial wallet's on-chain balance.
func (e *Engine) WalletBalance(ctx context.Context) (int64, error) {
	if err := e.readyToScan(); err != nil {
		return 0, err
	}
	return e.chain.GetBalance(ctx, e.walletAddr.ToRaw())
}
