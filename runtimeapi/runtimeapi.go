// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package runtimeapi implements the read-only Runtime API surface
// (spec.md §6): every method is callable against any known block
// hash and never mutates state. It is a thin façade over the
// scheduler, the asf state machine and the active validator set.
package runtimeapi

import (
	"github.com/etrid/asf/asf"
	"github.com/etrid/asf/config"
	"github.com/etrid/asf/types"
	"github.com/etrid/asf/validators"
)

// Scheduler is the subset of validators.Scheduler the Runtime API
// surface calls into.
type Scheduler interface {
	CurrentCommittee() *types.Committee
	Committee(epoch types.Epoch) (*types.Committee, error)
	CurrentEpochOf(blockNumber uint64) types.Epoch
	IsProposerAuthorized(blockNumber uint64, ppfaIndex types.PpfaIndex, proposerID types.ValidatorID) bool
}

// ActiveSet is the subset of validators.InMemoryActiveSet this
// package reads to serve validator_info / is_validator_active /
// next_epoch_validators (a preview built from the live active set,
// not yet committed to a committee).
type ActiveSet interface {
	ActiveValidators() []types.ValidatorInfo
}

// API implements every method in spec.md §6's Runtime API table.
type API struct {
	params    config.Parameters
	scheduler Scheduler
	active    ActiveSet
	machine   *asf.Machine
	keys      map[types.ValidatorID][]byte
}

// New constructs an API. It leaves the keys map nil, so ASF keys are
// served from ValidatorInfo.PublicKeyASF.
func New(params config.Parameters, scheduler Scheduler, active ActiveSet, machine *asf.Machine) *API {
	return &API{params: params, scheduler: scheduler, active: active, machine: machine}
}

// ValidatorCommittee returns the current epoch's committee.
func (a *API) ValidatorCommittee() []types.ValidatorInfo {
	c := a.scheduler.CurrentCommittee()
	if c == nil {
		return nil
	}
	return append([]types.ValidatorInfo(nil), c.Validators...)
}

// ValidatorInfo returns a validator's info from the active set, if known.
func (a *API) ValidatorInfo(id types.ValidatorID) (types.ValidatorInfo, bool) {
	for _, v := range a.active.ActiveValidators() {
		if v.ID == id {
			return v, true
		}
	}
	if c := a.scheduler.CurrentCommittee(); c != nil {
		if idx := c.IndexOf(id); idx >= 0 {
			return c.Validators[idx], true
		}
	}
	return types.ValidatorInfo{}, false
}

// IsValidatorActive reports whether id is in the current active set
// or the current committee (the same lookup as ValidatorInfo).
func (a *API) IsValidatorActive(id types.ValidatorID) bool {
	_, ok := a.ValidatorInfo(id)
	return ok
}

// CurrentEpoch returns the epoch of the current committee.
func (a *API) CurrentEpoch() types.Epoch {
	if c := a.scheduler.CurrentCommittee(); c != nil {
		return c.Epoch
	}
	return 0
}

// CommitteeSizeLimit returns the configured constant committee size.
func (a *API) CommitteeSizeLimit() uint32 {
	return a.params.CommitteeSize
}

// EpochDuration returns the configured constant epoch duration, in blocks.
func (a *API) EpochDuration() uint64 {
	return a.params.EpochDuration
}

// NextEpochStart returns the first block number of the epoch after
// blockNumber's.
func (a *API) NextEpochStart(blockNumber uint64) uint64 {
	epoch := blockNumber / a.params.EpochDuration
	return (epoch + 1) * a.params.EpochDuration
}

// NextEpochValidators previews the committee that would be built from
// the current active set, without committing it.
func (a *API) NextEpochValidators(nextEpoch types.Epoch) []types.ValidatorInfo {
	return validators.BuildCommittee(nextEpoch, a.active.ActiveValidators(), a.params.CommitteeSize).Validators
}

// IsProposerAuthorized is the core security check: is id the
// authorized proposer for (block_number, ppfa_index)?
func (a *API) IsProposerAuthorized(blockNumber uint64, ppfaIndex types.PpfaIndex, id types.ValidatorID) bool {
	return a.scheduler.IsProposerAuthorized(blockNumber, ppfaIndex, id)
}

// GetValidatorASFKey returns a validator's registered ASF public key.
func (a *API) GetValidatorASFKey(id types.ValidatorID) ([]byte, bool) {
	if a.keys != nil {
		if k, ok := a.keys[id]; ok {
			return k, true
		}
	}
	info, ok := a.ValidatorInfo(id)
	if !ok || !info.HasASFKey() {
		return nil, false
	}
	return info.PublicKeyASF, true
}

// ValidatorKey pairs a validator with its registered ASF public key.
type ValidatorKey struct {
	ID  types.ValidatorID
	Key []byte
}

// GetAllValidatorASFKeys returns every active validator's registered key.
func (a *API) GetAllValidatorASFKeys() []ValidatorKey {
	var out []ValidatorKey
	for _, v := range a.active.ActiveValidators() {
		if v.HasASFKey() {
			out = append(out, ValidatorKey{ID: v.ID, Key: v.PublicKeyASF})
		}
	}
	return out
}

// GetFinalityLevel returns the finality level of a block, FinalityNone
// if it is not yet finalized.
func (a *API) GetFinalityLevel(blockHash types.BlockHash) types.FinalityLevel {
	return a.machine.FinalityLevel(blockHash)
}

// GetCertificateCount returns the number of distinct phases for which
// blockHash holds a certificate (0..=3).
func (a *API) GetCertificateCount(blockHash types.BlockHash) uint32 {
	var n uint32
	for _, p := range []types.ConsensusPhase{types.PhasePreCommit, types.PhaseCommit, types.PhaseFinality} {
		if _, ok := a.machine.Certificates().Get(blockHash, p); ok {
			n++
		}
	}
	return n
}

// HasBFTFinality reports whether blockHash has reached its Finality
// certificate, i.e. >= 2/3+1 committee weight signed off.
func (a *API) HasBFTFinality(blockHash types.BlockHash) bool {
	_, ok := a.machine.Certificates().Get(blockHash, types.PhaseFinality)
	return ok
}
