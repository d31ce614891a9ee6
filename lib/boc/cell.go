// Package boc implements the cell tree structure TON uses to encode
// messages, together with its bag-of-cells wire serialization.
package boc

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

const (
	// MaxCellBits is the data capacity of a single cell.
	MaxCellBits = 1023
	// MaxCellRefs is the maximum number of child references per cell.
	MaxCellRefs = 4
)

var (
	ErrCellOverflow = errors.New("boc: cell data capacity exceeded")
	ErrTooManyRefs  = errors.New("boc: cell reference limit exceeded")
)

// Cell is a finished, immutable node of the cell graph.
type Cell struct {
	bits int
	data []byte // packed MSB-first, bits valid
	refs []*Cell
}

// Bits returns the number of data bits stored in the cell.
func (c *Cell) Bits() int { return c.bits }

// Refs returns the cell's child references.
func (c *Cell) Refs() []*Cell { return c.refs }

// Data returns the packed cell data without the completion tag.
func (c *Cell) Data() []byte {
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out
}

// Depth is the height of the cell subtree, zero for a leaf.
func (c *Cell) Depth() uint16 {
	var d uint16
	for _, r := range c.refs {
		if rd := r.Depth() + 1; rd > d {
			d = rd
		}
	}
	return d
}

// descriptors returns the d1/d2 bytes of the standard cell representation.
func (c *Cell) descriptors() (byte, byte) {
	d1 := byte(len(c.refs))
	d2 := byte(c.bits/8 + (c.bits+7)/8)
	return d1, d2
}

// augmentedData returns the cell data with the completion tag applied
// when the bit length is not byte aligned.
func (c *Cell) augmentedData() []byte {
	out := make([]byte, (c.bits+7)/8)
	copy(out, c.data)
	if c.bits%8 != 0 {
		out[len(out)-1] |= 1 << (7 - uint(c.bits%8))
	}
	return out
}

// Hash computes the standard representation hash of the cell. It is the
// value wallet contracts sign over and the chain keys transactions by.
func (c *Cell) Hash() [32]byte {
	d1, d2 := c.descriptors()
	repr := []byte{d1, d2}
	repr = append(repr, c.augmentedData()...)
	for _, r := range c.refs {
		var depth [2]byte
		binary.BigEndian.PutUint16(depth[:], r.Depth())
		repr = append(repr, depth[:]...)
	}
	for _, r := range c.refs {
		h := r.Hash()
		repr = append(repr, h[:]...)
	}
	return sha256.Sum256(repr)
}

// Builder assembles a cell bottom-up. All Store methods return the
// builder for chaining and record the first error encountered; EndCell
// reports it.
type Builder struct {
	bits int
	data []byte
	refs []*Cell
	err  error
}

// NewBuilder returns an empty cell builder.
func NewBuilder() *Builder {
	return &Builder{data: make([]byte, 0, 128)}
}

// StoreBit appends a single bit.
func (b *Builder) StoreBit(bit bool) *Builder {
	if b.err != nil {
		return b
	}
	if b.bits+1 > MaxCellBits {
		b.err = ErrCellOverflow
		return b
	}
	if b.bits%8 == 0 {
		b.data = append(b.data, 0)
	}
	if bit {
		b.data[b.bits/8] |= 1 << (7 - uint(b.bits%8))
	}
	b.bits++
	return b
}

// StoreUint appends value as a big-endian unsigned integer of the given width.
func (b *Builder) StoreUint(value uint64, bits int) *Builder {
	if b.err != nil {
		return b
	}
	if bits < 0 || bits > 64 {
		b.err = fmt.Errorf("boc: invalid uint width %d", bits)
		return b
	}
	for i := bits - 1; i >= 0; i-- {
		b.StoreBit(value&(1<<uint(i)) != 0)
	}
	return b
}

// StoreBigUint appends an arbitrary-precision unsigned integer of the given width.
func (b *Builder) StoreBigUint(value *big.Int, bits int) *Builder {
	if b.err != nil {
		return b
	}
	if value.Sign() < 0 || value.BitLen() > bits {
		b.err = fmt.Errorf("boc: value does not fit in %d bits", bits)
		return b
	}
	for i := bits - 1; i >= 0; i-- {
		b.StoreBit(value.Bit(i) == 1)
	}
	return b
}

// StoreCoins appends a nano-TON amount in the VarUInteger 16 encoding:
// a 4-bit byte length followed by the big-endian value.
func (b *Builder) StoreCoins(amount int64) *Builder {
	if b.err != nil {
		return b
	}
	if amount < 0 {
		b.err = fmt.Errorf("boc: negative coin amount %d", amount)
		return b
	}
	if amount == 0 {
		return b.StoreUint(0, 4)
	}
	v := big.NewInt(amount)
	byteLen := (v.BitLen() + 7) / 8
	b.StoreUint(uint64(byteLen), 4)
	return b.StoreBigUint(v, byteLen*8)
}

// StoreBytes appends raw bytes, byte-aligned content only.
func (b *Builder) StoreBytes(data []byte) *Builder {
	if b.err != nil {
		return b
	}
	for _, by := range data {
		b.StoreUint(uint64(by), 8)
	}
	return b
}

// StoreAddress appends a TON address. A nil address is encoded as addr_none.
func (b *Builder) StoreAddress(addr *Address) *Builder {
	if b.err != nil {
		return b
	}
	if addr == nil {
		// addr_none$00
		return b.StoreUint(0, 2)
	}
	// addr_std$10, no anycast
	b.StoreUint(2, 2)
	b.StoreBit(false)
	b.StoreUint(uint64(uint8(addr.Workchain)), 8)
	return b.StoreBytes(addr.Hash[:])
}

// StoreRef attaches a child cell.
func (b *Builder) StoreRef(c *Cell) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.refs) >= MaxCellRefs {
		b.err = ErrTooManyRefs
		return b
	}
	b.refs = append(b.refs, c)
	return b
}

// StoreBuilder inlines the bits and refs of another builder.
func (b *Builder) StoreBuilder(other *Builder) *Builder {
	if b.err != nil {
		return b
	}
	if other.err != nil {
		b.err = other.err
		return b
	}
	for i := 0; i < other.bits; i++ {
		b.StoreBit(other.data[i/8]&(1<<(7-uint(i%8))) != 0)
	}
	for _, r := range other.refs {
		b.StoreRef(r)
	}
	return b
}

// EndCell finishes the builder, returning the immutable cell.
func (b *Builder) EndCell() (*Cell, error) {
	if b.err != nil {
		return nil, b.err
	}
	data := make([]byte, len(b.data))
	copy(data, b.data)
	refs := make([]*Cell, len(b.refs))
	copy(refs, b.refs)
	return &Cell{bits: b.bits, data: data, refs: refs}, nil
}

// MustEndCell is EndCell for cells built from trusted constants.
func (b *Builder) MustEndCell() *Cell {
	c, err := b.EndCell()
	if err != nil {
		panic(err)
	}
	return c
}
