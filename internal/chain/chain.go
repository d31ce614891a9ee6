// Package chain abstracts all reads and writes against the TON
// blockchain. Calls go through an ordered list of HTTP backends with
// bounded retries; distinguishing transient from permanent failure is
// this package's job, not the caller's.
package chain

import (
	"context"
)

// TxStatus is the chain's view of a broadcast transaction.
type TxStatus int

const (
	StatusNotFound TxStatus = iota
	StatusAccepted
	StatusFailed
)

func (s TxStatus) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusFailed:
		return "failed"
	default:
		return "not_found"
	}
}

// IncomingTx is one observed incoming transfer. Comment carries the
// decoded text when the backend exposed it; RawBody the base64 payload
// when only the raw message body was available.
type IncomingTx struct {
	Hash       string
	Source     string
	AmountNano int64
	Comment    string
	RawBody    string
}

// Client is the read/write surface the settlement engine needs from the
// chain. Broadcast may return an empty id with a nil error when the
// backend accepted the message without reporting one; callers fall back
// to the locally computed message hash.
type Client interface {
	GetBalance(ctx context.Context, address string) (int64, error)
	GetSeqno(ctx context.Context, address string) (uint32, error)
	Broadcast(ctx context.Context, signed []byte) (string, error)
	GetTransactionStatus(ctx context.Context, txID string) (TxStatus, error)
	ListIncoming(ctx context.Context, address string, limit int) ([]IncomingTx, error)
}
