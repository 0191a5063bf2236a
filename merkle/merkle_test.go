// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func leavesOf(n int) [][]byte {
	leaves := make([][]byte, n)
	for i := range leaves {
		leaves[i] = []byte{byte(i), byte(i + 1), byte(i + 2)}
	}
	return leaves
}

func TestEmptyTreeHasZeroRoot(t *testing.T) {
	tree := Build(nil)
	require.Equal(t, ZeroRoot, tree.Root())
}

func TestProofRoundTrip(t *testing.T) {
	leaves := leavesOf(5)
	tree := Build(leaves)
	root := tree.Root()
	require.NotEqual(t, ZeroRoot, root)

	for i, leaf := range leaves {
		proof, ok := tree.BuildProof(i)
		require.True(t, ok)
		require.True(t, Verify(proof, leaf, root))

		for j, other := range leaves {
			if j == i {
				continue
			}
			require.False(t, Verify(proof, other, root))
		}
	}
}

func TestOddLayerPromotion(t *testing.T) {
	leaves := leavesOf(3)
	tree := Build(leaves)
	root := tree.Root()
	for i, leaf := range leaves {
		proof, ok := tree.BuildProof(i)
		require.True(t, ok)
		require.True(t, Verify(proof, leaf, root))
	}
}

func TestSwappedSiblingFailsVerification(t *testing.T) {
	leaves := leavesOf(4)
	tree := Build(leaves)
	root := tree.Root()

	proof0, _ := tree.BuildProof(0)
	proof1, _ := tree.BuildProof(1)

	// Using proof0's siblings against leaf1's content must fail.
	require.False(t, Verify(proof0, leaves[1], root))
	require.False(t, Verify(proof1, leaves[0], root))
}
