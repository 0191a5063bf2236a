// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etrid/asf/types"
)

func TestVoteRoundTrip(t *testing.T) {
	v := types.Vote{
		BlockHash:   types.BlockHash{1, 2, 3},
		BlockNumber: 42,
		Phase:       types.PhaseCommit,
		Validator:   types.ValidatorID{4, 5, 6},
		StakeWeight: 1000,
		Epoch:       7,
		Timestamp:   123456,
		Signature:   []byte("sig-bytes"),
	}
	data := EncodeVote(v)
	got, err := DecodeVote(data)
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestCertificateRoundTrip(t *testing.T) {
	c := types.Certificate{
		BlockHash:        types.BlockHash{9},
		Phase:            types.PhaseFinality,
		Signers:          []types.ValidatorID{{1}, {2}, {3}},
		AggregatedWeight: 500,
		Epoch:            3,
		Timestamp:        99,
	}
	data := EncodeCertificate(c)
	got, err := DecodeCertificate(data)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestCheckpointSignatureRoundTrip(t *testing.T) {
	s := types.CheckpointSignature{
		Validator:      types.ValidatorID{7},
		Checkpoint:     42,
		BlockHash:      types.BlockHash{8},
		AuthoritySetID: 1,
		Signature:      []byte("cp-sig"),
		Timestamp:      555,
	}
	data := EncodeCheckpointSignature(s)
	got, err := DecodeCheckpointSignature(data)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestCheckpointCertificateRoundTrip(t *testing.T) {
	c := types.CheckpointCertificate{
		Checkpoint:       42,
		Signers:          []types.ValidatorID{{1}, {2}},
		AggregatedWeight: 777,
		Timestamp:        888,
	}
	data := EncodeCheckpointCertificate(c)
	got, err := DecodeCheckpointCertificate(data)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestDecodeVoteRejectsUnknownVersion(t *testing.T) {
	data := EncodeVote(types.Vote{})
	data[3] = 0xFF // corrupt the low byte of the version field
	_, err := DecodeVote(data)
	require.Error(t, err)
}
