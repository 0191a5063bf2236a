// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slashing

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etrid/asf/byzantine"
	"github.com/etrid/asf/config"
	"github.com/etrid/asf/types"
)

type fakeStaking struct {
	mu     sync.Mutex
	stakes map[types.ValidatorID]types.Stake
	fail   map[types.ValidatorID]bool
}

func newFakeStaking() *fakeStaking {
	return &fakeStaking{stakes: make(map[types.ValidatorID]types.Stake), fail: make(map[types.ValidatorID]bool)}
}

func (f *fakeStaking) GetValidatorStake(id types.ValidatorID) (types.Stake, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stakes[id]
	return s, ok
}

func (f *fakeStaking) SlashValidator(id types.ValidatorID, amount types.Stake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errors.New("staking pallet unavailable")
	}
	f.stakes[id] -= amount
	return nil
}

func (f *fakeStaking) IsActive(id types.ValidatorID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stakes[id] > 0
}

func TestThirdIncidentSlashesTenPercent(t *testing.T) {
	params := config.Mainnet()
	params.AutoSlashThreshold = 3
	detector := byzantine.New(params, nil, nil)
	staking := newFakeStaking()

	v := types.ValidatorID{3}
	staking.stakes[v] = 10

	detector.ReportIncident(types.ReasonConflictingVotes, v, 1)
	detector.ReportIncident(types.ReasonConflictingVotes, v, 2)

	exec := New(params, detector, staking, nil, nil)
	require.Empty(t, exec.RunOnce(2), "must not slash before threshold")
	require.Equal(t, types.Stake(10), staking.stakes[v])

	detector.ReportIncident(types.ReasonConflictingVotes, v, 3)
	records := exec.RunOnce(3)
	require.Len(t, records, 1)
	require.Equal(t, types.Stake(9), staking.stakes[v])
}

func TestReachingSameTierDoesNotReslash(t *testing.T) {
	params := config.Mainnet()
	params.AutoSlashThreshold = 3
	detector := byzantine.New(params, nil, nil)
	staking := newFakeStaking()
	v := types.ValidatorID{1}
	staking.stakes[v] = 100

	for i := uint64(1); i <= 5; i++ {
		detector.ReportIncident(types.ReasonConflictingVotes, v, i)
	}
	exec := New(params, detector, staking, nil, nil)
	first := exec.RunOnce(5)
	require.Len(t, first, 1)
	require.Equal(t, types.Stake(90), staking.stakes[v])

	// Still within the 3-5 tier (10%): no further incidents, no re-slash.
	second := exec.RunOnce(6)
	require.Empty(t, second)
	require.Equal(t, types.Stake(90), staking.stakes[v])
}

func TestHigherTierReslashesRemainingStake(t *testing.T) {
	params := config.Mainnet()
	params.AutoSlashThreshold = 3
	detector := byzantine.New(params, nil, nil)
	staking := newFakeStaking()
	v := types.ValidatorID{1}
	staking.stakes[v] = 100_000

	for i := uint64(1); i <= 5; i++ {
		detector.ReportIncident(types.ReasonConflictingVotes, v, i)
	}
	exec := New(params, detector, staking, nil, nil)
	exec.RunOnce(5)
	require.Equal(t, types.Stake(90_000), staking.stakes[v])

	for i := uint64(6); i <= 11; i++ {
		detector.ReportIncident(types.ReasonConflictingVotes, v, i)
	}
	// incident_count is now 11 -> 50% tier.
	exec.RunOnce(11)
	require.Equal(t, types.Stake(45_000), staking.stakes[v])
}

func TestFailedSlashIsRetried(t *testing.T) {
	params := config.Mainnet()
	params.AutoSlashThreshold = 3
	detector := byzantine.New(params, nil, nil)
	staking := newFakeStaking()
	v := types.ValidatorID{1}
	staking.stakes[v] = 100
	staking.fail[v] = true

	for i := uint64(1); i <= 3; i++ {
		detector.ReportIncident(types.ReasonConflictingVotes, v, i)
	}
	exec := New(params, detector, staking, nil, nil)
	require.Empty(t, exec.RunOnce(3))
	require.Equal(t, types.Stake(100), staking.stakes[v])

	staking.fail[v] = false
	records := exec.RunOnce(4)
	require.Len(t, records, 1)
	require.Equal(t, types.Stake(90), staking.stakes[v])
}
