// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtimeapi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etrid/asf/asf"
	"github.com/etrid/asf/config"
	"github.com/etrid/asf/types"
)

type fakeScheduler struct {
	committee types.Committee
}

func (f *fakeScheduler) CurrentCommittee() *types.Committee { return &f.committee }
func (f *fakeScheduler) Committee(epoch types.Epoch) (*types.Committee, error) {
	return &f.committee, nil
}
func (f *fakeScheduler) CurrentEpochOf(blockNumber uint64) types.Epoch { return 0 }
func (f *fakeScheduler) IsProposerAuthorized(blockNumber uint64, idx types.PpfaIndex, id types.ValidatorID) bool {
	v, ok := f.committee.At(idx)
	return ok && v.ID == id
}

type fakeActiveSet struct{ validators []types.ValidatorInfo }

func (f *fakeActiveSet) ActiveValidators() []types.ValidatorInfo { return f.validators }

func makeValidators(n int) []types.ValidatorInfo {
	out := make([]types.ValidatorInfo, n)
	for i := range out {
		id := types.ValidatorID{}
		id[31] = byte(i + 1)
		out[i] = types.ValidatorInfo{ID: id, Stake: types.Stake(n - i), PublicKeyASF: []byte{byte(i)}}
	}
	return out
}

func newTestAPI() (*API, *fakeScheduler) {
	validators := makeValidators(5)
	committee := types.Committee{Epoch: 0, Validators: validators}
	sched := &fakeScheduler{committee: committee}
	activeSet := &fakeActiveSet{validators: validators}
	machine := asf.New(asf.Deps{Params: config.Mainnet(), Lookup: sched})
	return New(config.Mainnet(), sched, activeSet, machine), sched
}

func TestValidatorCommitteeReturnsCurrent(t *testing.T) {
	api, _ := newTestAPI()
	require.Len(t, api.ValidatorCommittee(), 5)
}

func TestValidatorInfoFindsActiveValidator(t *testing.T) {
	api, _ := newTestAPI()
	id := types.ValidatorID{}
	id[31] = 1
	info, ok := api.ValidatorInfo(id)
	require.True(t, ok)
	require.Equal(t, id, info.ID)
}

func TestIsProposerAuthorizedDelegatesToScheduler(t *testing.T) {
	api, sched := newTestAPI()
	proposer := sched.committee.Validators[0].ID
	require.True(t, api.IsProposerAuthorized(0, 0, proposer))
	require.False(t, api.IsProposerAuthorized(0, 0, sched.committee.Validators[1].ID))
}

func TestGetAllValidatorASFKeysOnlyIncludesRegisteredKeys(t *testing.T) {
	api, _ := newTestAPI()
	active := api.active.(*fakeActiveSet)
	active.validators = append(active.validators, types.ValidatorInfo{ID: types.ValidatorID{0xEE}, Stake: 1})
	keys := api.GetAllValidatorASFKeys()
	require.Len(t, keys, 5)
}

func TestNextEpochStartIsNextMultipleOfEpochDuration(t *testing.T) {
	api, _ := newTestAPI()
	dur := api.EpochDuration()
	require.Equal(t, dur, api.NextEpochStart(0))
	require.Equal(t, 2*dur, api.NextEpochStart(dur))
}

func TestHasBFTFinalityFalseBeforeCertificate(t *testing.T) {
	api, _ := newTestAPI()
	require.False(t, api.HasBFTFinality(types.BlockHash{1}))
	require.Equal(t, uint32(0), api.GetCertificateCount(types.BlockHash{1}))
}
