// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package asf implements the per-block vote-and-certificate state
// machine (spec.md §4.2): it drives votes through the vote store and
// certificate aggregator, advances each block_hash through
// None → PreCommitting → Committing → Finalizing → Finalized, and
// computes the finality level of a Finalized block from the Finality
// votes accepted beyond its Finality certificate's signers. A block
// enters Stalled only through Abandon: conflicting votes are rejected
// by the vote store and reported to the detector, but equivocation
// does not by itself stall a block.
package asf

import (
	"sync"

	"github.com/etrid/asf/byzantine"
	"github.com/etrid/asf/certificate"
	"github.com/etrid/asf/config"
	"github.com/etrid/asf/crypto"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/types"
	"github.com/etrid/asf/utils/set"
	"github.com/etrid/asf/votestore"
)

// State is one per-block position in the state machine (spec.md §4.2).
type State uint8

const (
	StateNone State = iota
	StatePreCommitting
	StateCommitting
	StateFinalizing
	StateFinalized
	StateStalled
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StatePreCommitting:
		return "pre_committing"
	case StateCommitting:
		return "committing"
	case StateFinalizing:
		return "finalizing"
	case StateFinalized:
		return "finalized"
	case StateStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// phaseRange returns the inclusive [lo, hi] state range in which a
// vote of the given phase may be accepted (transition rule 1c: "phase
// matches or advances the current state"). A state below lo means the
// vote's prerequisite phase hasn't been reached yet (InvalidPhase); a
// state above hi means this phase has already been superseded (stale,
// non-Byzantine reject — "PreCommit votes rejected after Committing").
func phaseRange(phase types.ConsensusPhase) (State, State) {
	switch phase {
	case types.PhasePreCommit:
		return StateNone, StatePreCommitting
	case types.PhaseCommit:
		return StatePreCommitting, StateCommitting
	case types.PhaseFinality:
		return StateCommitting, StateFinalizing
	default:
		return StateStalled, StateStalled
	}
}

// blockRecord tracks one block_hash's progress through the machine.
type blockRecord struct {
	state          State
	blockNumber    uint64
	epoch          types.Epoch
	finalityLevel  types.FinalityLevel
	finalCertSigners set.Set[types.ValidatorID]
}

// CommitteeLookup resolves committees for membership and quorum checks.
type CommitteeLookup interface {
	Committee(epoch types.Epoch) (*types.Committee, error)
}

// Machine wires a vote store, certificate aggregator and Byzantine
// detector into the per-block finality state machine. One Machine
// instance serves an entire chain; per-block state lives in-memory,
// keyed by block_hash. Records are never removed, so finalized and
// stalled blocks stay in the map for the Machine's lifetime.
type Machine struct {
	mu sync.Mutex

	params   config.Parameters
	lookup   CommitteeLookup
	votes    *votestore.Store
	certs    *certificate.Aggregator
	detector *byzantine.Detector
	log      log.Logger
	metric   *metrics.Metrics

	blocks map[types.BlockHash]*blockRecord
	// finalizedAtNumber tracks the one block_hash finalized at each
	// block_number, to detect FalseFinality (two distinct finalized
	// hashes at the same height).
	finalizedAtNumber map[uint64]types.BlockHash
}

// Deps bundles the collaborators a Machine needs. Verifier is the
// signature-verification backend handed to the underlying vote store.
type Deps struct {
	Params   config.Parameters
	Lookup   CommitteeLookup
	Verifier crypto.Verifier
	Detector *byzantine.Detector
	Logger   log.Logger
	Metric   *metrics.Metrics
}

// New constructs a Machine and the vote store / certificate aggregator
// it owns internally.
func New(deps Deps) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	detector := deps.Detector
	if detector == nil {
		detector = byzantine.New(deps.Params, logger, deps.Metric)
	}

	m := &Machine{
		params:            deps.Params,
		lookup:            deps.Lookup,
		detector:          detector,
		log:               logger,
		metric:            deps.Metric,
		blocks:            make(map[types.BlockHash]*blockRecord),
		finalizedAtNumber: make(map[uint64]types.BlockHash),
	}
	m.votes = votestore.New(voteCommitteeAdapter{deps.Lookup}, deps.Verifier, detector, logger, deps.Metric)
	m.certs = certificate.New(m.votes, voteCommitteeAdapter{deps.Lookup}, logger, deps.Metric)
	return m
}

// voteCommitteeAdapter lets the *asf.Machine's CommitteeLookup satisfy
// both votestore's and certificate's identically-shaped interfaces
// without a direct type dependency between those packages.
type voteCommitteeAdapter struct {
	lookup CommitteeLookup
}

func (a voteCommitteeAdapter) Committee(epoch types.Epoch) (*types.Committee, error) {
	return a.lookup.Committee(epoch)
}

// recordFor returns (creating if absent) the blockRecord for hash.
// Must be called with m.mu held.
func (m *Machine) recordFor(hash types.BlockHash, blockNumber uint64, epoch types.Epoch) *blockRecord {
	r, ok := m.blocks[hash]
	if !ok {
		r = &blockRecord{state: StateNone, blockNumber: blockNumber, epoch: epoch}
		m.blocks[hash] = r
	}
	return r
}

// SubmitVote feeds one vote through the machine: committee/signature
// checks and dedup/conflict handling happen in the vote store;
// InvalidPhase is decided here, and votes for Stalled blocks (and
// non-Finality votes for Finalized blocks) are rejected here.
func (m *Machine) SubmitVote(vote types.Vote, pubKey []byte) (bool, error) {
	m.mu.Lock()
	rec := m.recordFor(vote.BlockHash, vote.BlockNumber, vote.Epoch)
	state := rec.state
	m.mu.Unlock()

	switch {
	case state == StateStalled:
		return false, types.NewError(types.KindInvalidPhaseTransition, "asf.SubmitVote", types.ErrInvalidPhaseTransition)
	case state == StateFinalized:
		// "If the same block_hash is Finalized, no further state
		// transition is possible" — but Finality votes still accrue
		// toward the finality-level step function.
		if vote.Phase != types.PhaseFinality {
			return false, types.NewError(types.KindInvalidPhaseTransition, "asf.SubmitVote", types.ErrAlreadyFinalized)
		}
	default:
		lo, hi := phaseRange(vote.Phase)
		if state < lo {
			m.detector.ReportInvalidPhase(vote.Validator, vote.BlockNumber, encodeVoteEvidence(vote))
			return false, types.NewError(types.KindInvalidPhaseTransition, "asf.SubmitVote", types.ErrInvalidPhaseTransition)
		}
		if state > hi {
			return false, types.NewError(types.KindInvalidPhaseTransition, "asf.SubmitVote", types.ErrInvalidPhaseTransition)
		}
	}

	accepted, err := m.votes.Insert(vote, pubKey)
	if err != nil {
		return accepted, err
	}
	if !accepted {
		return false, nil
	}

	if vote.Phase == types.PhasePreCommit {
		m.mu.Lock()
		if rec.state == StateNone {
			rec.state = StatePreCommitting
		}
		m.mu.Unlock()
	}

	return m.advance(vote.BlockHash, vote.Phase, vote.Epoch)
}

// advance attempts certification for (blockHash, phase) and, on
// success, drives the per-block state forward and — for a Finality
// certificate — runs the FalseFinality and finality-level logic.
func (m *Machine) advance(blockHash types.BlockHash, phase types.ConsensusPhase, epoch types.Epoch) (bool, error) {
	cert, ok, err := m.certs.TryCertify(blockHash, phase, epoch, types.Now())
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	m.mu.Lock()
	rec := m.blocks[blockHash]
	alreadyAtOrPast := rec != nil && rec.state >= stateAfter(phase)
	if !alreadyAtOrPast && rec != nil {
		rec.state = stateAfter(phase)
		if phase == types.PhaseFinality {
			rec.finalCertSigners = set.Of(cert.Signers...)
		}
	}
	m.mu.Unlock()

	if phase == types.PhaseFinality && !alreadyAtOrPast {
		m.onFinalized(blockHash, rec.blockNumber, cert)
	}
	if phase == types.PhaseFinality {
		m.mu.Lock()
		if rec != nil {
			extra := len(m.votes.AcceptedVotes(blockHash, types.PhaseFinality)) - rec.finalCertSigners.Len()
			if extra < 0 {
				extra = 0
			}
			level := types.FinalityLevel(m.params.FinalityLevelFor(uint32(extra)))
			if c, err := m.lookup.Committee(epoch); err == nil && c.Size() < config.MinCommitteeSize {
				level = types.FinalityNone
			}
			rec.finalityLevel = level
			if m.metric != nil {
				m.metric.FinalityLevel.Set(float64(rec.finalityLevel))
			}
		}
		m.mu.Unlock()
	}
	return true, nil
}

func stateAfter(phase types.ConsensusPhase) State {
	switch phase {
	case types.PhasePreCommit:
		return StateCommitting
	case types.PhaseCommit:
		return StateFinalizing
	case types.PhaseFinality:
		return StateFinalized
	default:
		return StateStalled
	}
}

// onFinalized implements the fork-safety rule (spec.md §4.2): two
// Finalized blocks at the same block_number is a protocol violation.
// Every signer shared between the two conflicting certificates is
// accused of FalseFinality.
func (m *Machine) onFinalized(blockHash types.BlockHash, blockNumber uint64, cert types.Certificate) {
	m.mu.Lock()
	prior, hadPrior := m.finalizedAtNumber[blockNumber]
	m.finalizedAtNumber[blockNumber] = blockHash
	m.mu.Unlock()

	if !hadPrior || prior == blockHash {
		return
	}

	priorCert, ok := m.certs.Get(prior, types.PhaseFinality)
	if !ok {
		return
	}
	priorSigners := set.Of(priorCert.Signers...)
	var intersecting []types.ValidatorID
	for _, s := range cert.Signers {
		if priorSigners.Contains(s) {
			intersecting = append(intersecting, s)
		}
	}
	if len(intersecting) == 0 {
		return
	}
	evidence := append(append([]byte{}, blockHash[:]...), prior[:]...)
	m.detector.ReportFalseFinality(intersecting, blockNumber, evidence)
}

func encodeVoteEvidence(v types.Vote) []byte {
	buf := make([]byte, 0, 40)
	buf = append(buf, v.Validator[:]...)
	buf = append(buf, v.BlockHash[:]...)
	buf = append(buf, byte(v.Phase))
	return buf
}

// State returns the current state of a block_hash, StateNone if unseen.
func (m *Machine) State(blockHash types.BlockHash) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.blocks[blockHash]
	if !ok {
		return StateNone
	}
	return rec.state
}

// FinalityLevel returns the finality level of a Finalized block, or
// FinalityNone if it is not yet Finalized.
func (m *Machine) FinalityLevel(blockHash types.BlockHash) types.FinalityLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.blocks[blockHash]
	if !ok || rec.state != StateFinalized {
		return types.FinalityNone
	}
	return rec.finalityLevel
}

// Abandon marks blockHash Stalled without slashing — the "honest
// disagreement before finality" path (spec.md §4.2): a sibling block
// at the same height reached Finalized first.
func (m *Machine) Abandon(blockHash types.BlockHash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.blocks[blockHash]; ok && rec.state != StateFinalized {
		rec.state = StateStalled
	}
}

// VoteStore exposes the underlying vote store for read-only queries
// (e.g. by the Runtime API layer).
func (m *Machine) VoteStore() *votestore.Store { return m.votes }

// Certificates exposes the underlying certificate aggregator.
func (m *Machine) Certificates() *certificate.Aggregator { return m.certs }

// Detector exposes the underlying Byzantine detector.
func (m *Machine) Detector() *byzantine.Detector { return m.detector }
