// Package transaction constructs signed wallet transfer messages for
// broadcast. Building is pure: no I/O, and identical inputs always
// produce identical bytes.
package transaction

import (
	"errors"
	"fmt"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/wallet"
	"github.com/RustamRomanov/BlackMirrowMarket/lib/boc"
)

// subwalletID is the standard wallet v4r2 subwallet identifier.
const subwalletID = 698983191

// maxCommentBytes keeps the comment payload within a single cell after
// the 32-bit text op tag.
const maxCommentBytes = 120

var ErrCommentTooLong = errors.New("transaction: comment too long")

// Transfer describes one outbound wallet transfer.
type Transfer struct {
	WalletAddress *boc.Address // the custodial wallet itself
	Destination   *boc.Address
	AmountNano    int64
	Seqno         uint32
	Comment       string
	// ValidUntil is the unix expiry the wallet contract enforces. It is
	// an explicit input so that building stays deterministic.
	ValidUntil uint32
}

// SignedMessage is a serialized external message ready for broadcast.
// Hash is the representation hash of the message root cell, usable as a
// transaction identifier when the broadcast endpoint does not return
// one.
type SignedMessage struct {
	Bytes []byte
	Hash  [32]byte
}

// BuildTransfer produces the signed external message for a wallet v4r2
// transfer: internal transfer message, wrapped in the seqno-tagged
// wallet body, signed over the body hash, wrapped in an external-in
// envelope addressed to the wallet's own address.
func BuildTransfer(kp *wallet.Keypair, t Transfer) (*SignedMessage, error) {
	if t.WalletAddress == nil || t.Destination == nil {
		return nil, fmt.Errorf("transaction: missing address")
	}
	if t.AmountNano <= 0 {
		return nil, fmt.Errorf("transaction: non-positive amount %d", t.AmountNano)
	}

	msg, err := internalMessage(t)
	if err != nil {
		return nil, fmt.Errorf("building internal message: %w", err)
	}

	body, err := walletBody(t, msg)
	if err != nil {
		return nil, fmt.Errorf("building wallet body: %w", err)
	}

	bodyHash := body.Hash()
	signature := kp.Sign(bodyHash[:])

	signed, err := boc.NewBuilder().
		StoreBytes(signature).
		StoreBuilder(cellContents(body)).
		EndCell()
	if err != nil {
		return nil, fmt.Errorf("building signed body: %w", err)
	}

	external, err := boc.NewBuilder().
		StoreUint(2, 2). // ext_in_msg_info$10
		StoreAddress(nil).
		StoreAddress(t.WalletAddress).
		StoreCoins(0).   // import fee
		StoreBit(false). // no state init
		StoreBit(true).  // body as reference
		StoreRef(signed).
		EndCell()
	if err != nil {
		return nil, fmt.Errorf("building external envelope: %w", err)
	}

	raw, err := boc.Serialize(external)
	if err != nil {
		return nil, err
	}
	return &SignedMessage{Bytes: raw, Hash: external.Hash()}, nil
}

// internalMessage builds the transfer message carried inside the wallet
// body: destination, value, and the optional text comment payload.
func internalMessage(t Transfer) (*boc.Cell, error) {
	b := boc.NewBuilder().
		StoreBit(false).     // int_msg_info$0
		StoreBit(true).      // ihr_disabled
		StoreBit(true).      // bounce
		StoreBit(false).     // bounced
		StoreAddress(nil).   // src filled in by the chain
		StoreAddress(t.Destination).
		StoreCoins(t.AmountNano).
		StoreBit(false). // no extra currencies
		StoreCoins(0).   // ihr fee
		StoreCoins(0).   // fwd fee
		StoreUint(0, 64). // created_lt
		StoreUint(0, 32). // created_at
		StoreBit(false)  // no state init

	if t.Comment == "" {
		return b.StoreBit(false).EndCell()
	}

	if len(t.Comment) > maxCommentBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrCommentTooLong, len(t.Comment))
	}
	comment, err := boc.NewBuilder().
		StoreUint(0, 32). // text comment op
		StoreBytes([]byte(t.Comment)).
		EndCell()
	if err != nil {
		return nil, err
	}
	return b.StoreBit(true).StoreRef(comment).EndCell()
}

// walletBody wraps the message in the v4r2 order envelope the contract
// checks the signature and seqno against.
func walletBody(t Transfer, msg *boc.Cell) (*boc.Cell, error) {
	return boc.NewBuilder().
		StoreUint(subwalletID, 32).
		StoreUint(uint64(t.ValidUntil), 32).
		StoreUint(uint64(t.Seqno), 32).
		StoreUint(0, 8). // op: simple send
		StoreUint(3, 8). // mode: pay fees separately, ignore errors
		StoreRef(msg).
		EndCell()
}

// cellContents re-opens a finished cell as a builder so its bits and
// refs can be inlined into a parent.
func cellContents(c *boc.Cell) *boc.Builder {
	b := boc.NewBuilder()
	data := c.Data()
	for i := 0; i < c.Bits(); i++ {
		b.StoreBit(data[i/8]&(1<<(7-uint(i%8))) != 0)
	}
	for _, r := range c.Refs() {
		b.StoreRef(r)
	}
	return b
}
