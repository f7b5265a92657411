// Package chainmmr implements the client's chain authentication structures:
// an append-only merkle mountain range over block header hashes (spec.md §3
// "Chain MMR") plus per-note inclusion-path verification against a block's
// note tree. Both generalize the pairwise SHA-256 merkle helpers the teacher
// wrote in core/merkle_tree_operations.go to the engine's BLAKE3 digest type
// and to an append-only forest instead of a single fixed tree.
package chainmmr

import (
	"fmt"
	"math/bits"

	"rollupclient/digest"
)

// MMR is an append-only merkle mountain range: leaves are appended in order
// and the structure maintains one peak per set bit in the leaf count,
// exactly mirroring how a binary counter merges carries. This keeps proof
// generation and peak bagging to a simple power-of-two merkle tree per peak.
type MMR struct {
	leaves []digest.Hash
}

// NewMMR returns an empty MMR.
func NewMMR() *MMR { return &MMR{} }

// Append adds a new leaf (typically a block header hash) to the forest.
func (m *MMR) Append(leaf digest.Hash) {
	m.leaves = append(m.leaves, leaf)
}

// NumLeaves returns the number of leaves appended so far.
func (m *MMR) NumLeaves() uint64 { return uint64(len(m.leaves)) }

// peakRanges decomposes n leaves into contiguous power-of-two ranges, one per
// set bit of n, largest first -- the same decomposition a binary counter
// uses when merging carries on increment.
func peakRanges(n uint64) [][2]uint64 {
	var ranges [][2]uint64
	start := uint64(0)
	remaining := n
	for remaining > 0 {
		h := uint(bits.Len64(remaining)) - 1
		size := uint64(1) << h
		ranges = append(ranges, [2]uint64{start, size})
		start += size
		remaining -= size
	}
	return ranges
}

// peakRootAndPath folds a power-of-two run of leaves into its root, also
// returning the sibling path for localIndex within that run.
func peakRootAndPath(leaves []digest.Hash, localIndex uint64) (digest.Hash, []digest.Hash) {
	level := append([]digest.Hash(nil), leaves...)
	idx := localIndex
	var path []digest.Hash
	for len(level) > 1 {
		next := make([]digest.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = digest.Combine(level[i], level[i+1])
		}
		if idx%2 == 0 {
			path = append(path, level[idx+1])
		} else {
			path = append(path, level[idx-1])
		}
		idx /= 2
		level = next
	}
	return level[0], path
}

// Peaks returns the current peak hashes, largest run first.
func (m *MMR) Peaks() []digest.Hash {
	ranges := peakRanges(uint64(len(m.leaves)))
	out := make([]digest.Hash, len(ranges))
	for i, r := range ranges {
		start, size := r[0], r[1]
		root, _ := peakRootAndPath(m.leaves[start:start+size], 0)
		out[i] = root
	}
	return out
}

// Root bags the current peaks into a single commitment, left to right.
func (m *MMR) Root() digest.Hash {
	peaks := m.Peaks()
	if len(peaks) == 0 {
		return digest.Hash{}
	}
	acc := peaks[0]
	for _, p := range peaks[1:] {
		acc = digest.Combine(acc, p)
	}
	return acc
}

// InclusionProof authenticates a single leaf against an MMR root: the local
// merkle path within the leaf's own peak, plus the other peaks (in their
// original bagging order) needed to recompute the full root.
type InclusionProof struct {
	LocalPath   []digest.Hash
	LocalIndex  uint64
	PeaksBefore []digest.Hash
	PeaksAfter  []digest.Hash
}

// Proof builds the inclusion proof for the leaf at index against the
// forest's current state.
func (m *MMR) Proof(index uint64) (InclusionProof, error) {
	if index >= uint64(len(m.leaves)) {
		return InclusionProof{}, fmt.Errorf("mmr: index %d out of range (%d leaves)", index, len(m.leaves))
	}
	ranges := peakRanges(uint64(len(m.leaves)))
	peakIdx := 0
	localIndex := uint64(0)
	for i, r := range ranges {
		start, size := r[0], r[1]
		if index >= start && index < start+size {
			peakIdx = i
			localIndex = index - start
			break
		}
	}
	start, size := ranges[peakIdx][0], ranges[peakIdx][1]
	_, path := peakRootAndPath(m.leaves[start:start+size], localIndex)
	peaks := m.Peaks()
	return InclusionProof{
		LocalPath:   path,
		LocalIndex:  localIndex,
		PeaksBefore: append([]digest.Hash(nil), peaks[:peakIdx]...),
		PeaksAfter:  append([]digest.Hash(nil), peaks[peakIdx+1:]...),
	}, nil
}

// VerifyInclusion reports whether leaf authenticates against root using the
// supplied proof: first it folds the local path up to the leaf's own peak
// root, then bags that peak back in among the other peaks in their original
// order and compares against root.
func VerifyInclusion(root digest.Hash, leaf digest.Hash, proof InclusionProof) bool {
	h := leaf
	idx := proof.LocalIndex
	for _, sib := range proof.LocalPath {
		if idx%2 == 0 {
			h = digest.Combine(h, sib)
		} else {
			h = digest.Combine(sib, h)
		}
		idx /= 2
	}

	all := make([]digest.Hash, 0, len(proof.PeaksBefore)+1+len(proof.PeaksAfter))
	all = append(all, proof.PeaksBefore...)
	all = append(all, h)
	all = append(all, proof.PeaksAfter...)
	if len(all) == 0 {
		return false
	}
	acc := all[0]
	for _, p := range all[1:] {
		acc = digest.Combine(acc, p)
	}
	return acc == root
}
