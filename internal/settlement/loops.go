package settlement

import (
	"context"
	"time"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
)

// Loops holds the sweep cadences for Run. Zero values fall back to the
// defaults below.
type Loops struct {
	StatusSweepInterval  time.Duration
	DepositScanInterval  time.Duration
	PendingSweepInterval time.Duration
}

func (l *Loops) applyDefaults() {
	if l.StatusSweepInterval <= 0 {
		l.StatusSweepInterval = 30 * time.Second
	}
	if l.DepositScanInterval <= 0 {
		l.DepositScanInterval = 60 * time.Second
	}
	if l.PendingSweepInterval <= 0 {
		l.PendingSweepInterval = 60 * time.Second
	}
}

// Run drives the three background sweeps until the context is
// cancelled: confirming sent withdrawals, scanning for deposits, and
// retrying stuck pending withdrawals. Errors are logged and the loop
// keeps going; a flaky chain endpoint must not stop settlement.
func (e *Engine) Run(ctx context.Context, loops Loops) {
	loops.applyDefaults()
	if !e.Enabled() {
		logger.Warn("settlement loops not started: " + e.configErr.Error())
		<-ctx.Done()
		return
	}

	status := time.NewTicker(loops.StatusSweepInterval)
	defer status.Stop()
	deposits := time.NewTicker(loops.DepositScanInterval)
	defer deposits.Stop()
	pending := time.NewTicker(loops.PendingSweepInterval)
	defer pending.Stop()

	logger.Infof("settlement loops started (status %s, deposits %s, pending %s)",
		loops.StatusSweepInterval, loops.DepositScanInterval, loops.PendingSweepInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("settlement loops stopped")
			return
		case <-status.C:
			if err := e.UpdatePendingTransactions(ctx); err != nil {
				logger.Errorf("status sweep: %v", err)
			}
		case <-deposits.C:
			if err := e.ScanDeposits(ctx); err != nil {
				logger.Errorf("deposit scan: %v", err)
			}
			if err := e.ResolveUnmatched(ctx); err != nil {
				logger.Errorf("unmatched resolve: %v", err)
			}
		case <-pending.C:
			if err := e.ProcessPendingWithdrawals(ctx); err != nil {
				logger.Errorf("pending sweep: %v", err)
			}
		}
	}
}
