// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package merkle builds and verifies the evidence Merkle tree the
// Byzantine detector uses to commit
// to a set of evidence blobs with a single root hash (spec.md §8
// "Merkle round-trip").
package merkle

import "crypto/sha256"

// ZeroRoot is the fixed sentinel root for an empty leaf set.
var ZeroRoot = [32]byte{}

func hashLeaf(data []byte) [32]byte {
	h := sha256.Sum256(append([]byte{0x00}, data...))
	return h
}

func hashNode(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 65)
	buf = append(buf, 0x01)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return sha256.Sum256(buf)
}

// Tree is a binary Merkle tree over a fixed ordered leaf set.
type Tree struct {
	leaves [][32]byte
	layers [][][32]byte // layers[0] == leaf hashes, layers[len-1] == {root}
}

// Build constructs a Tree over leaves. An odd-sized layer promotes
// its unpaired trailing node unchanged to the next layer up, rather
// than duplicating it — this is the rule §8's "odd-sized Merkle
// layer" boundary case exercises.
func Build(leaves [][]byte) *Tree {
	t := &Tree{}
	if len(leaves) == 0 {
		t.layers = [][][32]byte{{}}
		return t
	}

	current := make([][32]byte, len(leaves))
	for i, l := range leaves {
		current[i] = hashLeaf(l)
	}
	t.leaves = append([][32]byte(nil), current...)
	t.layers = [][][32]byte{current}

	for len(current) > 1 {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i+1 < len(current); i += 2 {
			next = append(next, hashNode(current[i], current[i+1]))
		}
		if len(current)%2 == 1 {
			next = append(next, current[len(current)-1])
		}
		t.layers = append(t.layers, next)
		current = next
	}
	return t
}

// Root returns the tree's root hash, or the ZeroRoot sentinel for an
// empty leaf set.
func (t *Tree) Root() [32]byte {
	if t == nil || len(t.layers) == 0 {
		return ZeroRoot
	}
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return ZeroRoot
	}
	return top[0]
}

// Proof is an ordered list of sibling hashes from a leaf up to the
// root, with a flag per step recording whether the sibling sits on
// the right.
type Proof struct {
	Siblings    [][32]byte
	SiblingRight []bool
}

// BuildProof returns the inclusion proof for the leaf at index i.
func (t *Tree) BuildProof(i int) (Proof, bool) {
	if t == nil || len(t.layers) == 0 || i < 0 || i >= len(t.layers[0]) {
		return Proof{}, false
	}
	var proof Proof
	idx := i
	for layer := 0; layer < len(t.layers)-1; layer++ {
		nodes := t.layers[layer]
		isRightChild := idx%2 == 1
		var siblingIdx int
		if isRightChild {
			siblingIdx = idx - 1
		} else {
			siblingIdx = idx + 1
		}
		if siblingIdx < len(nodes) {
			proof.Siblings = append(proof.Siblings, nodes[siblingIdx])
			proof.SiblingRight = append(proof.SiblingRight, !isRightChild)
		}
		idx /= 2
	}
	return proof, true
}

// Verify reports whether leaf, combined with proof, reconstructs
// root.
func Verify(proof Proof, leaf []byte, root [32]byte) bool {
	current := hashLeaf(leaf)
	for i, sibling := range proof.Siblings {
		if proof.SiblingRight[i] {
			current = hashNode(current, sibling)
		} else {
			current = hashNode(sibling, current)
		}
	}
	return current == root
}
