package boc

import (
	"bytes"
	"errors"
	"testing"
)

func TestBuilderBitPacking(t *testing.T) {
	cell, err := NewBuilder().
		StoreBit(true).
		StoreBit(false).
		StoreBit(true).
		EndCell()
	if err != nil {
		t.Fatalf("EndCell failed: %v", err)
	}
	if cell.Bits() != 3 {
		t.Errorf("Bits() = %d, want 3", cell.Bits())
	}
	// 101 packed from the high bit: 1010_0000
	if cell.Data()[0] != 0xA0 {
		t.Errorf("data[0] = %#x, want 0xA0", cell.Data()[0])
	}
}

func TestBuilderStoreUint(t *testing.T) {
	cell, err := NewBuilder().StoreUint(0x12345678, 32).EndCell()
	if err != nil {
		t.Fatalf("EndCell failed: %v", err)
	}
	want := []byte{0x12, 0x34, 0x56, 0x78}
	if !bytes.Equal(cell.Data(), want) {
		t.Errorf("data = %x, want %x", cell.Data(), want)
	}
}

func TestBuilderOverflow(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 128; i++ {
		b.StoreUint(0xFF, 8)
	}
	// 1024 bits is one past the cell limit.
	if _, err := b.EndCell(); !errors.Is(err, ErrCellOverflow) {
		t.Errorf("EndCell error = %v, want ErrCellOverflow", err)
	}
}

func TestBuilderRefLimit(t *testing.T) {
	child := NewBuilder().MustEndCell()
	b := NewBuilder()
	for i := 0; i < 5; i++ {
		b.StoreRef(child)
	}
	if _, err := b.EndCell(); !errors.Is(err, ErrTooManyRefs) {
		t.Errorf("EndCell error = %v, want ErrTooManyRefs", err)
	}
}

func TestBuilderErrorLatches(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 130; i++ {
		b.StoreUint(0, 8)
	}
	// Stores after the overflow must not clear the error.
	b.StoreBit(true)
	if _, err := b.EndCell(); err == nil {
		t.Error("expected latched error, got nil")
	}
}

func TestCellHashDeterministic(t *testing.T) {
	build := func() *Cell {
		inner := NewBuilder().StoreUint(7, 16).MustEndCell()
		return NewBuilder().StoreUint(42, 32).StoreRef(inner).MustEndCell()
	}
	a, b := build(), build()
	if a.Hash() != b.Hash() {
		t.Error("identical cells produced different hashes")
	}
}

func TestCellHashDistinguishes(t *testing.T) {
	a := NewBuilder().StoreUint(1, 32).MustEndCell()
	b := NewBuilder().StoreUint(2, 32).MustEndCell()
	if a.Hash() == b.Hash() {
		t.Error("different cells produced the same hash")
	}
}

func TestCellDepth(t *testing.T) {
	leaf := NewBuilder().MustEndCell()
	mid := NewBuilder().StoreRef(leaf).MustEndCell()
	root := NewBuilder().StoreRef(mid).MustEndCell()

	if leaf.Depth() != 0 {
		t.Errorf("leaf depth = %d, want 0", leaf.Depth())
	}
	if root.Depth() != 2 {
		t.Errorf("root depth = %d, want 2", root.Depth())
	}
}

func TestStoreCoins(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		// leading 4 bits encode the byte length of the value
		wantBits int
	}{
		{"zero", 0, 4},
		{"one nano", 1, 12},
		{"one coin", 1_000_000_000, 4 + 4*8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell, err := NewBuilder().StoreCoins(tt.amount).EndCell()
			if err != nil {
				t.Fatalf("EndCell failed: %v", err)
			}
			if cell.Bits() != tt.wantBits {
				t.Errorf("Bits() = %d, want %d", cell.Bits(), tt.wantBits)
			}
		})
	}
}
