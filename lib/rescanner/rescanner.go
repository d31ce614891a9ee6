// Package rescanner walks back through the custodial wallet's transfer
// history and replays every incoming transfer through the deposit
// recorder. The recorder is idempotent, so a backfill over ground the
// regular scanner already covered is harmless; its purpose is catching
// deposits that arrived while the daemon was down.
package rescanner

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
)

// PerformRescan runs one backfill pass. The listing endpoints page from
// newest to oldest, so the pass widens its request window until it has
// seen MaxDepth transactions or the history runs out.
func PerformRescan(ctx context.Context, config RescanConfig) error {
	config.applyDefaults()

	if config.Client == nil || config.Recorder == nil {
		return fmt.Errorf("rescanner: client or recorder is nil, cannot proceed")
	}
	if config.WalletAddress == "" {
		return fmt.Errorf("rescanner: wallet address is empty")
	}

	logger.Info("Starting deposit backfill")

	// A wallet that synced recently does not need a deep walk.
	lastBackfill := viper.GetString("last_backfill_time")
	depth := config.MaxDepth
	if lastBackfill != "" {
		if t, err := time.Parse(time.RFC3339, lastBackfill); err == nil && time.Since(t) < 8*time.Hour {
			depth = config.BatchSize
		}
	}

	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	seen := 0
	window := config.BatchSize
	for {
		txs, err := config.Client.ListIncoming(ctx, config.WalletAddress, window)
		if err != nil {
			return fmt.Errorf("rescanner: listing transfers: %w", err)
		}
		for _, tx := range txs {
			if err := config.Recorder.RecordIncoming(tx); err != nil {
				logger.Errorf("backfill of %s failed: %v", tx.Hash, err)
			}
		}
		seen = len(txs)

		// Fewer results than requested means the history is exhausted.
		if seen < window || seen >= depth {
			break
		}
		window *= 2
		if window > depth {
			window = depth
		}
	}

	viper.Set("last_backfill_time", time.Now().Format(time.RFC3339))
	if err := viper.WriteConfig(); err != nil {
		logger.Warnf("could not persist last backfill time: %v", err)
	}

	logger.Infof("Deposit backfill completed, walked %d transfers", seen)
	return nil
}
