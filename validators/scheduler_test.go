// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etrid/asf/config"
	"github.com/etrid/asf/types"
)

func makeValidators(n int) []types.ValidatorInfo {
	out := make([]types.ValidatorInfo, n)
	for i := 0; i < n; i++ {
		out[i] = types.ValidatorInfo{
			ID:           types.ValidatorID{byte(i + 1)},
			Stake:        10,
			PublicKeyASF: []byte{1},
		}
	}
	return out
}

func TestBuildCommitteeDeterministic(t *testing.T) {
	vs := makeValidators(21)
	c1 := BuildCommittee(0, vs, 21)
	c2 := BuildCommittee(0, vs, 21)
	require.Equal(t, c1, c2)
	require.Len(t, c1.Validators, 21)
}

func TestBuildCommitteeOrdering(t *testing.T) {
	vs := []types.ValidatorInfo{
		{ID: types.ValidatorID{2}, Stake: 5, PublicKeyASF: []byte{1}},
		{ID: types.ValidatorID{1}, Stake: 10, PublicKeyASF: []byte{1}},
		{ID: types.ValidatorID{3}, Stake: 10, PublicKeyASF: []byte{1}},
	}
	c := BuildCommittee(0, vs, 4)
	require.Equal(t, types.ValidatorID{1}, c.Validators[0].ID) // stake 10, smaller id wins tie
	require.Equal(t, types.ValidatorID{3}, c.Validators[1].ID)
	require.Equal(t, types.ValidatorID{2}, c.Validators[2].ID)
}

func TestAuthorizationSymmetry(t *testing.T) {
	s := New(config.Mainnet(), nil, nil)
	s.RebuildCommittee(0, makeValidators(21))

	for n := uint64(0); n < 50; n++ {
		expected, err := s.ExpectedProposer(n)
		require.NoError(t, err)
		idx := types.PpfaIndex(n % 21)
		require.True(t, s.IsProposerAuthorized(n, idx, expected))
		require.False(t, s.IsProposerAuthorized(n, idx+1, expected))
	}
}

func TestUnknownProposerIsNotAuthorized(t *testing.T) {
	s := New(config.Mainnet(), nil, nil)
	s.RebuildCommittee(0, makeValidators(21))
	require.False(t, s.IsProposerAuthorized(1, 0, types.ValidatorID{99}))
}

func TestQueryOutsideKnownEpochWindow(t *testing.T) {
	s := New(config.Mainnet(), nil, nil)
	s.RebuildCommittee(0, makeValidators(21))
	_, err := s.Committee(5)
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, types.KindForkChoice, typed.Kind)
}

func TestGraceWindowHonorsPreviousCommittee(t *testing.T) {
	params := config.Mainnet()
	params.EpochDuration = 10
	s := New(params, nil, nil)

	s.RebuildCommittee(0, makeValidators(21))
	firstCommittee := s.CurrentCommittee()

	newSet := makeValidators(21)
	newSet[0] = types.ValidatorInfo{ID: types.ValidatorID{200}, Stake: 1000, PublicKeyASF: []byte{1}}
	s.RebuildCommittee(10, newSet)

	got, err := s.Committee(firstCommittee.Epoch)
	require.NoError(t, err)
	require.Equal(t, firstCommittee, got)
}

func TestEpochBoundaryRotationExcludesLowestStake(t *testing.T) {
	params := config.Mainnet()
	params.EpochDuration = 2400
	params.CommitteeSize = 21
	s := New(params, nil, nil)

	base := makeValidators(21)
	s.RebuildCommittee(0, base)
	before, err := s.ExpectedProposer(0)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	newcomer := types.ValidatorInfo{ID: types.ValidatorID{250}, Stake: 9999, PublicKeyASF: []byte{1}}
	next := append(append([]types.ValidatorInfo(nil), base...), newcomer)
	next[20].Stake = 1
	s.RebuildCommittee(2400, next)

	committee, err := s.Committee(1)
	require.NoError(t, err)
	require.True(t, committee.Contains(newcomer.ID))
	require.False(t, committee.Contains(base[20].ID))
}
