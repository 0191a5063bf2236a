// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validators implements the PPFA (Proposing Panel for
// Attestation) scheduler: deterministic committee derivation from the
// active validator set, epoch rotation and per-slot proposer
// authorization.
package validators

import (
	"sort"
	"sync"

	"github.com/etrid/asf/config"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/types"
)

// ActiveSet supplies the validators eligible for committee
// membership. Implementations filter to stake >= MinValidityStake and
// not-currently-slashed, per spec.md §4.1; this package does not
// re-derive that filter itself.
type ActiveSet interface {
	ActiveValidators() []types.ValidatorInfo
}

// Scheduler answers "who may produce the block at (block_number,
// ppfa_index)". It keeps exactly two committees live at a time: the
// current epoch's and the previous epoch's, so late-arriving
// certificates from the outgoing committee are still honored for one
// epoch's grace window (spec.md §4.1).
type Scheduler struct {
	mu sync.RWMutex

	params config.Parameters
	log    log.Logger
	metric *metrics.Metrics

	current  *types.Committee
	previous *types.Committee
}

// New constructs a Scheduler. metric may be nil in tests.
func New(params config.Parameters, logger log.Logger, metric *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Scheduler{params: params, log: logger, metric: metric}
}

// CurrentEpochOf derives the epoch a block number belongs to.
func (s *Scheduler) CurrentEpochOf(blockNumber uint64) types.Epoch {
	return types.Epoch(blockNumber / s.params.EpochDuration)
}

// IsEpochBoundary reports whether blockNumber is the first block of
// an epoch.
func (s *Scheduler) IsEpochBoundary(blockNumber uint64) bool {
	return blockNumber%s.params.EpochDuration == 0
}

// BuildCommittee deterministically orders active into a fixed-size
// committee: stake descending, ValidatorID ascending as tie-break
// (spec.md §3). If fewer than CommitteeSize validators are eligible,
// the committee is simply smaller — the core does not pad it.
func BuildCommittee(epoch types.Epoch, active []types.ValidatorInfo, committeeSize uint32) types.Committee {
	ordered := append([]types.ValidatorInfo(nil), active...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Stake != ordered[j].Stake {
			return ordered[i].Stake > ordered[j].Stake
		}
		return ordered[i].ID.Less(ordered[j].ID)
	})
	if uint32(len(ordered)) > committeeSize {
		ordered = ordered[:committeeSize]
	}
	for i := range ordered {
		ordered[i].InCommittee = true
	}
	return types.Committee{Epoch: epoch, Validators: ordered}
}

// RebuildCommittee recomputes the committee for the epoch containing
// blockNumber from the currently active validator set. Call this at
// every epoch boundary; the scheduler rotates the old "current" into
// "previous" rather than discarding it, preserving the one-epoch
// grace window.
func (s *Scheduler) RebuildCommittee(blockNumber uint64, active []types.ValidatorInfo) {
	epoch := s.CurrentEpochOf(blockNumber)
	next := BuildCommittee(epoch, active, s.params.CommitteeSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Epoch != epoch {
		s.previous = s.current
	}
	s.current = &next
	s.log.Debug("committee rebuilt", "epoch", epoch, "size", next.Size())
}

// Committee returns the committee for epoch, or an error if epoch is
// outside the scheduler's known window (current or immediately
// previous). Queries outside the window are an unverifiable block per
// spec.md §4.1 and must never be silently accepted.
func (s *Scheduler) Committee(epoch types.Epoch) (*types.Committee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current != nil && s.current.Epoch == epoch {
		return s.current, nil
	}
	if s.previous != nil && s.previous.Epoch == epoch {
		return s.previous, nil
	}
	return nil, types.NewError(types.KindForkChoice, "validators.Committee", nil)
}

// CurrentCommittee returns the active epoch's committee, or nil if
// none has been built yet.
func (s *Scheduler) CurrentCommittee() *types.Committee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ExpectedProposer resolves the PPFA rotation index for blockNumber
// and looks up the corresponding committee member.
func (s *Scheduler) ExpectedProposer(blockNumber uint64) (types.ValidatorID, error) {
	epoch := s.CurrentEpochOf(blockNumber)
	committee, err := s.Committee(epoch)
	if err != nil {
		return types.ValidatorID{}, err
	}
	if committee.Size() == 0 {
		return types.ValidatorID{}, types.NewError(types.KindForkChoice, "validators.ExpectedProposer", nil)
	}
	idx := types.PpfaIndex(blockNumber % uint64(committee.Size()))
	v, ok := committee.At(idx)
	if !ok {
		return types.ValidatorID{}, types.NewError(types.KindForkChoice, "validators.ExpectedProposer", nil)
	}
	return v.ID, nil
}

// PpfaIndexFor resolves the PPFA rotation index for blockNumber
// without requiring a known proposer, for callers (the authoring
// worker) that need the index to populate the pre-runtime digest.
func (s *Scheduler) PpfaIndexFor(blockNumber uint64) (types.PpfaIndex, error) {
	epoch := s.CurrentEpochOf(blockNumber)
	committee, err := s.Committee(epoch)
	if err != nil {
		return 0, err
	}
	if committee.Size() == 0 {
		return 0, types.NewError(types.KindForkChoice, "validators.PpfaIndexFor", nil)
	}
	return types.PpfaIndex(blockNumber % uint64(committee.Size())), nil
}

// IsProposerAuthorized verifies both that ppfaIndex is the correct
// rotation index for blockNumber AND that proposerID occupies that
// committee slot. Both conditions are required; a mismatch on either
// yields false, never a silent accept (spec.md §4.1).
func (s *Scheduler) IsProposerAuthorized(blockNumber uint64, ppfaIndex types.PpfaIndex, proposerID types.ValidatorID) bool {
	epoch := s.CurrentEpochOf(blockNumber)
	committee, err := s.Committee(epoch)
	if err != nil {
		return false
	}
	if committee.Size() == 0 {
		return false
	}
	expectedIdx := types.PpfaIndex(blockNumber % uint64(committee.Size()))
	if ppfaIndex != expectedIdx {
		return false
	}
	v, ok := committee.At(ppfaIndex)
	return ok && v.ID == proposerID
}

// ShouldPropose is a convenience for the authoring worker: true iff
// validator is the expected proposer for blockNumber.
func (s *Scheduler) ShouldPropose(validator types.ValidatorID, blockNumber uint64) bool {
	expected, err := s.ExpectedProposer(blockNumber)
	if err != nil {
		return false
	}
	return expected == validator
}
