// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		p, err := GetParametersByName(name)
		require.NoError(t, err)
		require.NoError(t, NewValidator().Validate(p))
	}

	_, err := GetParametersByName("nonexistent")
	require.Error(t, err)
}

func TestSlashPercentFor(t *testing.T) {
	p := Mainnet()
	cases := []struct {
		incidents uint32
		want      uint64
	}{
		{0, 0}, {2, 0}, {3, 10}, {5, 10}, {6, 25}, {10, 25}, {11, 50}, {20, 50}, {21, 100}, {1000, 100},
	}
	for _, c := range cases {
		require.Equal(t, c.want, p.SlashPercentFor(c.incidents), "incidents=%d", c.incidents)
	}
}

func TestFinalityLevelFor(t *testing.T) {
	p := Mainnet()
	cases := []struct {
		count uint32
		want  uint8
	}{
		{0, 1}, {9, 1}, {10, 2}, {19, 2}, {20, 3}, {99, 3}, {100, 4}, {1000, 4},
	}
	for _, c := range cases {
		require.Equal(t, c.want, p.FinalityLevelFor(c.count), "count=%d", c.count)
	}
}

func TestQuorumWeight(t *testing.T) {
	require.False(t, HasQuorum(14, 21), "exactly 2/3 must not produce a certificate")
	require.True(t, HasQuorum(15, 21))
	require.True(t, HasQuorum(QuorumWeight(21), 21))
	require.False(t, HasQuorum(QuorumWeight(21)-1, 21))
}

func TestValidatorRejectsBadLadder(t *testing.T) {
	p := Mainnet()
	p.SlashLadder = []SlashTier{{MinIncidents: 0, PercentBurn: 50}, {MinIncidents: 5, PercentBurn: 10}}
	err := NewValidator().Validate(p)
	require.Error(t, err)
}

func TestValidatorRejectsSmallCommittee(t *testing.T) {
	p := Mainnet()
	p.CommitteeSize = 1
	err := NewValidator().Validate(p)
	require.Error(t, err)
}
