package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// diagEps is how far a correlation diagonal entry may stray from 1.
const diagEps = 1e-6

// Block is one LD block: an ordered set of variant indices assumed
// correlated only among themselves, plus the symmetric correlation matrix
// over exactly those variants. Blocks are read-only once a Partition accepts
// them.
type Block struct {
	ID   int
	Vars []int         // variant indices in genome-wide ordering
	Corr *mat.SymDense // len(Vars) x len(Vars) correlation matrix
}

// Size returns the number of variants in the block.
func (b *Block) Size() int {
	return len(b.Vars)
}

// Check validates a single block against the variant count of the full set.
func (b *Block) Check(variantCount int) error {
	if len(b.Vars) < 1 {
		return &InvalidPartitionError{Block: b.ID, Reason: "block is empty"}
	}
	if b.Corr == nil {
		return &InvalidPartitionError{Block: b.ID, Reason: "missing correlation matrix"}
	}

	if n := b.Corr.SymmetricDim(); n != len(b.Vars) {
		return &InvalidPartitionError{
			Block:  b.ID,
			Reason: "correlation matrix dimension does not match block variant count",
		}
	}

	for _, idx := range b.Vars {
		if idx < 0 || idx >= variantCount {
			return &InvalidPartitionError{Block: b.ID, Reason: "variant index out of range"}
		}
	}

	for i := 0; i < len(b.Vars); i++ {
		if math.Abs(b.Corr.At(i, i)-1) > diagEps {
			return &InvalidPartitionError{Block: b.ID, Reason: "correlation diagonal is not 1"}
		}
		for j := i; j < len(b.Vars); j++ {
			r := b.Corr.At(i, j)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return &InvalidPartitionError{Block: b.ID, Reason: "non-finite correlation entry"}
			}
			if r < -1-diagEps || r > 1+diagEps {
				return &InvalidPartitionError{Block: b.ID, Reason: "correlation entry outside [-1,1]"}
			}
		}
	}

	return nil
}

// Partition is the block decomposition of the full variant set. Invariant:
// every variant belongs to exactly one block.
type Partition struct {
	Variants []Variant
	Blocks   []*Block
}

// NewPartition validates the blocks against the variant set and returns the
// partition. Any violation surfaces as *InvalidPartitionError before an
// engine ever iterates.
func NewPartition(variants []Variant, blocks []*Block) (*Partition, error) {
	if len(variants) < 1 {
		return nil, &InvalidPartitionError{Block: -1, Reason: "no variants"}
	}

	for _, v := range variants {
		if err := v.Check(); err != nil {
			return nil, &InvalidPartitionError{Block: -1, Reason: err.Error()}
		}
	}

	seen := make([]bool, len(variants))
	for _, b := range blocks {
		if err := b.Check(len(variants)); err != nil {
			return nil, err
		}
		for _, idx := range b.Vars {
			if seen[idx] {
				return nil, &InvalidPartitionError{Block: b.ID, Reason: "variant assigned to two blocks"}
			}
			seen[idx] = true
		}
	}

	for idx, ok := range seen {
		if !ok {
			return nil, &InvalidPartitionError{
				Block:  -1,
				Reason: fmt.Sprintf("variant %d not assigned to any block", idx),
			}
		}
	}

	return &Partition{Variants: variants, Blocks: blocks}, nil
}

// NewContiguousPartition builds blocks from consecutive runs of variants.
// sizes gives each block's variant count in order; corrs the matching
// correlation matrices.
func NewContiguousPartition(variants []Variant, sizes []int, corrs []*mat.SymDense) (*Partition, error) {
	if len(sizes) != len(corrs) {
		return nil, &InvalidPartitionError{Block: -1, Reason: "block size and matrix counts differ"}
	}

	blocks := make([]*Block, len(sizes))
	at := 0
	for i, sz := range sizes {
		if sz < 1 || at+sz > len(variants) {
			return nil, &InvalidPartitionError{Block: i, Reason: "block boundaries do not fit variant count"}
		}
		vars := make([]int, sz)
		for j := range vars {
			vars[j] = at + j
		}
		blocks[i] = &Block{ID: i, Vars: vars, Corr: corrs[i]}
		at += sz
	}

	if at != len(variants) {
		return nil, &InvalidPartitionError{Block: -1, Reason: "block boundaries leave variants unassigned"}
	}

	return NewPartition(variants, blocks)
}

// Boundaries splits n variants into contiguous block sizes of at most
// maxSize each. Callers with externally supplied boundaries skip this and
// hand their own sizes to NewContiguousPartition.
func Boundaries(n int, maxSize int) []int {
	if n < 1 || maxSize < 1 {
		return nil
	}

	count := (n + maxSize - 1) / maxSize
	sizes := make([]int, 0, count)
	for n > 0 {
		sz := maxSize
		if n < sz {
			sz = n
		}
		sizes = append(sizes, sz)
		n -= sz
	}
	return sizes
}
