package boc

import (
	"encoding/binary"
	"fmt"
)

// bocMagic is the serialized bag-of-cells prefix (generic variant).
var bocMagic = []byte{0xb5, 0xee, 0x9c, 0x72}

// Serialize encodes the cell graph rooted at root into the bag-of-cells
// wire format the chain accepts over sendBoc. The encoding is a pure
// function of the cell graph: identical trees always yield identical
// bytes, listing cells parent-first with duplicates collapsed by hash.
func Serialize(root *Cell) ([]byte, error) {
	cells, index, err := topoOrder(root)
	if err != nil {
		return nil, err
	}
	if len(cells) > 0xff {
		// s=1 keeps ref indexes to a single byte; a wallet transfer
		// never comes close to this limit.
		return nil, fmt.Errorf("boc: too many cells (%d)", len(cells))
	}

	var cellData []byte
	for _, c := range cells {
		d1, d2 := c.descriptors()
		cellData = append(cellData, d1, d2)
		cellData = append(cellData, c.augmentedData()...)
		for _, r := range c.refs {
			cellData = append(cellData, byte(index[r.Hash()]))
		}
	}

	offBytes := 1
	for size := len(cellData); size >= 1<<(8*offBytes); {
		offBytes++
	}

	out := make([]byte, 0, len(cellData)+16)
	out = append(out, bocMagic...)
	out = append(out, byte(1))        // flags empty, ref size 1 byte
	out = append(out, byte(offBytes)) // offset size
	out = append(out, byte(len(cells)))
	out = append(out, 1) // one root
	out = append(out, 0) // no absent cells
	out = append(out, encodeUint(uint64(len(cellData)), offBytes)...)
	out = append(out, 0) // root index
	out = append(out, cellData...)
	return out, nil
}

func encodeUint(v uint64, size int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[8-size:]
}

// topoOrder lists cells root-first with every parent preceding its
// children, deduplicated by representation hash.
func topoOrder(root *Cell) ([]*Cell, map[[32]byte]int, error) {
	// Discover distinct cells in DFS order first; shared subtrees
	// collapse to one node keyed by hash.
	var discovered []*Cell
	byHash := make(map[[32]byte]*Cell)
	indegree := make(map[[32]byte]int)

	var visit func(c *Cell)
	visit = func(c *Cell) {
		h := c.Hash()
		if _, ok := byHash[h]; ok {
			return
		}
		byHash[h] = c
		discovered = append(discovered, c)
		for _, r := range c.refs {
			visit(r)
		}
	}
	visit(root)

	for _, c := range discovered {
		for _, r := range c.refs {
			indegree[r.Hash()]++
		}
	}

	// Kahn's algorithm, seeded with the root; discovery order breaks ties
	// so the output stays deterministic.
	var ordered []*Cell
	queue := []*Cell{root}
	queued := map[[32]byte]bool{root.Hash(): true}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		ordered = append(ordered, c)
		for _, r := range c.refs {
			h := r.Hash()
			indegree[h]--
			if indegree[h] == 0 && !queued[h] {
				queued[h] = true
				queue = append(queue, byHash[h])
			}
		}
	}
	if len(ordered) != len(discovered) {
		return nil, nil, fmt.Errorf("boc: cell graph is not a DAG")
	}

	index := make(map[[32]byte]int, len(ordered))
	for i, c := range ordered {
		index[c.Hash()] = i
	}
	return ordered, index, nil
}
