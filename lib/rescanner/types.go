package rescanner

import (
	"time"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/chain"
)

// Recorder consumes observed transfers. The settlement engine's
// idempotent deposit path satisfies it.
type Recorder interface {
	RecordIncoming(tx chain.IncomingTx) error
}

type RescanConfig struct {
	Client        chain.Client
	WalletAddress string
	Recorder      Recorder
	// MaxDepth caps how many transactions one backfill walks through.
	MaxDepth int
	// BatchSize is how many transactions each listing request asks for.
	BatchSize int
	Timeout   time.Duration
}

func (c *RescanConfig) applyDefaults() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 1000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
}
