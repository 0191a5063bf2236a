// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"sync"

	"github.com/etrid/asf/types"
)

// StakingView is a read-only slice of StakingInterface (spec.md §4.1:
// "stake >= MinValidityStake AND not currently slashed").
// InMemoryActiveSet implements it; the Scheduler does not use it.
type StakingView interface {
	GetValidatorStake(id types.ValidatorID) (types.Stake, bool)
	IsActive(id types.ValidatorID) bool
}

// InMemoryActiveSet is a process-local ActiveSet backed by a map,
// used by tests, the demo binary and any deployment that doesn't need
// an external staking pallet.
type InMemoryActiveSet struct {
	mu               sync.RWMutex
	validators       map[types.ValidatorID]types.ValidatorInfo
	minValidityStake types.Stake
}

// NewInMemoryActiveSet returns an empty active set.
func NewInMemoryActiveSet(minValidityStake types.Stake) *InMemoryActiveSet {
	return &InMemoryActiveSet{
		validators:       make(map[types.ValidatorID]types.ValidatorInfo),
		minValidityStake: minValidityStake,
	}
}

// Upsert registers or updates a validator's info.
func (s *InMemoryActiveSet) Upsert(v types.ValidatorInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validators[v.ID] = v
}

// Remove drops a validator entirely (e.g. on a 100% slash).
func (s *InMemoryActiveSet) Remove(id types.ValidatorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.validators, id)
}

// SetStake updates a registered validator's stake, e.g. after a
// slashing event.
func (s *InMemoryActiveSet) SetStake(id types.ValidatorID, stake types.Stake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.validators[id]; ok {
		v.Stake = stake
		s.validators[id] = v
	}
}

// ActiveValidators implements ActiveSet: validators with sufficient
// stake and a registered ASF key.
func (s *InMemoryActiveSet) ActiveValidators() []types.ValidatorInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ValidatorInfo, 0, len(s.validators))
	for _, v := range s.validators {
		if v.Stake >= s.minValidityStake && v.HasASFKey() {
			out = append(out, v)
		}
	}
	return out
}

// GetValidatorStake implements StakingView.
func (s *InMemoryActiveSet) GetValidatorStake(id types.ValidatorID) (types.Stake, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.validators[id]
	return v.Stake, ok
}

// IsActive implements StakingView.
func (s *InMemoryActiveSet) IsActive(id types.ValidatorID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.validators[id]
	return ok && v.Stake >= s.minValidityStake
}
