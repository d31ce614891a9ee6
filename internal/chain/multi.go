package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
)

// Backend is one concrete chain API. Backends are single-shot; retry
// and fallback policy lives in Multi.
type Backend interface {
	Client
	Name() string
}

// Multi tries an ordered list of backends behind one retry policy. The
// fallback order is data: first backend is preferred, the rest are
// tried in sequence on transient failure.
type Multi struct {
	backends    []Backend
	maxAttempts int
	backoff     time.Duration
}

// NewMulti builds the fallback client. maxAttempts bounds full passes
// over the backend list.
func NewMulti(backends []Backend, maxAttempts int) *Multi {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Multi{backends: backends, maxAttempts: maxAttempts, backoff: 2 * time.Second}
}

// do runs op against each backend in order, repeating up to maxAttempts
// rounds on transient failure. A permanent rejection stops immediately.
func (m *Multi) do(ctx context.Context, what string, op func(Backend) error) error {
	if len(m.backends) == 0 {
		return Permanentf("chain: no backends configured")
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		for _, b := range m.backends {
			err := op(b)
			if err == nil {
				return nil
			}
			if errors.Is(err, errUnsupported) {
				continue
			}
			if IsPermanent(err) {
				return err
			}
			logger.Warnf("%s via %s failed (attempt %d/%d): %v", what, b.Name(), attempt, m.maxAttempts, err)
			lastErr = err
		}
		if attempt < m.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.backoff):
			}
		}
	}
	if lastErr == nil {
		lastErr = errUnsupported
	}
	return fmt.Errorf("chain: %s failed after %d attempts: %w", what, m.maxAttempts, lastErr)
}

func (m *Multi) GetBalance(ctx context.Context, address string) (int64, error) {
	var out int64
	err := m.do(ctx, "get balance", func(b Backend) error {
		v, err := b.GetBalance(ctx, address)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (m *Multi) GetSeqno(ctx context.Context, address string) (uint32, error) {
	var out uint32
	err := m.do(ctx, "get seqno", func(b Backend) error {
		v, err := b.GetSeqno(ctx, address)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (m *Multi) Broadcast(ctx context.Context, signed []byte) (string, error) {
	var out string
	err := m.do(ctx, "broadcast", func(b Backend) error {
		v, err := b.Broadcast(ctx, signed)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (m *Multi) GetTransactionStatus(ctx context.Context, txID string) (TxStatus, error) {
	out := StatusNotFound
	err := m.do(ctx, "get transaction status", func(b Backend) error {
		v, err := b.GetTransactionStatus(ctx, txID)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (m *Multi) ListIncoming(ctx context.Context, address string, limit int) ([]IncomingTx, error) {
	var out []IncomingTx
	err := m.do(ctx, "list incoming transactions", func(b Backend) error {
		v, err := b.ListIncoming(ctx, address, limit)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

var _ Client = (*Multi)(nil)
