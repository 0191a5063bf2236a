// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package certificate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etrid/asf/types"
)

type fakeVotes struct {
	weight  types.Stake
	signers []types.ValidatorID
}

func (f *fakeVotes) AggregatedWeight(types.BlockHash, types.ConsensusPhase) types.Stake { return f.weight }
func (f *fakeVotes) Signers(types.BlockHash, types.ConsensusPhase) []types.ValidatorID  { return f.signers }

type fakeCommittee struct{ total types.Stake }

func (f *fakeCommittee) Committee(epoch types.Epoch) (*types.Committee, error) {
	n := int(f.total)
	vs := make([]types.ValidatorInfo, n)
	for i := range vs {
		vs[i] = types.ValidatorInfo{ID: types.ValidatorID{byte(i + 1)}, Stake: 1}
	}
	return &types.Committee{Epoch: epoch, Validators: vs}, nil
}

func TestExactlyTwoThirdsDoesNotCertify(t *testing.T) {
	votes := &fakeVotes{weight: 14, signers: []types.ValidatorID{{1}}}
	agg := New(votes, &fakeCommittee{total: 21}, nil, nil)
	_, ok, err := agg.TryCertify(types.BlockHash{1}, types.PhaseCommit, 0, 0)
	require.NoError(t, err)
	require.False(t, ok, "14/21 is exactly 2/3 and must not certify")
}

func TestStrictlyAboveTwoThirdsCertifies(t *testing.T) {
	votes := &fakeVotes{weight: 15, signers: []types.ValidatorID{{1}, {2}}}
	agg := New(votes, &fakeCommittee{total: 21}, nil, nil)
	cert, ok, err := agg.TryCertify(types.BlockHash{1}, types.PhaseCommit, 0, 42)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.Stake(15), cert.AggregatedWeight)
}

func TestCertificateIsImmutableOnceIssued(t *testing.T) {
	votes := &fakeVotes{weight: 15, signers: []types.ValidatorID{{1}, {2}}}
	agg := New(votes, &fakeCommittee{total: 21}, nil, nil)

	cert1, ok, err := agg.TryCertify(types.BlockHash{1}, types.PhaseCommit, 0, 1)
	require.NoError(t, err)
	require.True(t, ok)

	votes.weight = 21
	votes.signers = []types.ValidatorID{{1}, {2}, {3}, {4}}
	cert2, ok, err := agg.TryCertify(types.BlockHash{1}, types.PhaseCommit, 0, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cert1, cert2, "a later TryCertify must not re-issue")
}
