// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package authoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etrid/asf/types"
)

func TestPreRuntimeDigestRoundTrip(t *testing.T) {
	d := PreRuntimeDigest{Slot: 123456, PpfaIndex: 7}
	decoded, ok := DecodePreRuntimeDigest(d.Encode())
	require.True(t, ok)
	require.Equal(t, d, decoded)
}

func TestDecodePreRuntimeDigestRejectsWrongLength(t *testing.T) {
	_, ok := DecodePreRuntimeDigest([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestSlotAtFixedDuration(t *testing.T) {
	require.Equal(t, Slot(0), SlotAt(0))
	require.Equal(t, Slot(0), SlotAt(5999))
	require.Equal(t, Slot(1), SlotAt(6000))
	require.Equal(t, Slot(100), SlotAt(600000))
}

func TestHeaderHashExcludesSeal(t *testing.T) {
	h := Header{BlockNumber: 1, Proposer: types.ValidatorID{1}}
	h.Seal = []byte("seal-a")
	hashA := h.Hash()
	h.Seal = []byte("a-completely-different-seal")
	hashB := h.Hash()
	require.Equal(t, hashA, hashB)
}
