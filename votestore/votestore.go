// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package votestore implements the in-memory, ordered vote store
// described in spec.md §2 component 2 and §5: a mapping from
// (block_hash, phase) to the set of signed votes seen for it, with
// deduplication and conflict capture ahead of certificate
// aggregation.
package votestore

import (
	"sync"

	"github.com/etrid/asf/crypto"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/types"
)

// CommitteeLookup resolves the committee for an epoch, so the store
// can reject votes from validators outside the current committee
// (spec.md invariant: "a Vote is only accepted if the current local
// view of the committee for its epoch contains its validator").
type CommitteeLookup interface {
	Committee(epoch types.Epoch) (*types.Committee, error)
}

// IncidentReporter receives Byzantine incidents the store observes
// while ingesting votes. byzantine.Detector implements this.
type IncidentReporter interface {
	ReportIncident(reason types.SuspicionReason, validator types.ValidatorID, blockNumber uint64, evidence ...[]byte)
}

type voteKey struct {
	blockHash types.BlockHash
	phase     types.ConsensusPhase
}

// slot holds every vote seen for one (block_hash, phase) pair, in
// arrival order, plus the accepted subset used for quorum weight.
type slot struct {
	order    []types.Vote                          // every accepted vote, first-seen order
	byVoter  map[types.ValidatorID]int              // validator -> index into order
	conflicts map[types.ValidatorID][]types.Vote    // validator -> every conflicting payload seen (for evidence)
}

// Store is the vote store. One Store instance guards all state behind
// a single writer lock, matching spec.md §5's "the vote store is the
// only mutable shared structure in the hot path; protected by a
// single writer lock."
type Store struct {
	mu sync.Mutex

	committee IncidentReporter
	lookup    CommitteeLookup
	verifier  crypto.Verifier
	log       log.Logger
	metric    *metrics.Metrics

	slots map[voteKey]*slot
}

// New constructs a Store. reporter and verifier may be nil only in
// tests that don't exercise incident reporting or signature checks.
func New(lookup CommitteeLookup, verifier crypto.Verifier, reporter IncidentReporter, logger log.Logger, metric *metrics.Metrics) *Store {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Store{
		lookup:    lookup,
		verifier:  verifier,
		committee: reporter,
		log:       logger,
		metric:    metric,
		slots:     make(map[voteKey]*slot),
	}
}

// Insert validates and ingests a vote. It returns (accepted, error):
// accepted is true only if the vote counts toward quorum weight.
// Rejections are not necessarily errors — an identical duplicate
// resolves to (false, nil) — but a committee-membership or signature
// failure returns a typed *types.Error.
func (s *Store) Insert(vote types.Vote, pubKey []byte) (bool, error) {
	if err := s.checkMembership(vote); err != nil {
		return false, err
	}
	if err := s.checkSignature(vote, pubKey); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := voteKey{blockHash: vote.BlockHash, phase: vote.Phase}
	sl, ok := s.slots[k]
	if !ok {
		sl = &slot{byVoter: make(map[types.ValidatorID]int), conflicts: make(map[types.ValidatorID][]types.Vote)}
		s.slots[k] = sl
	}

	if idx, seen := sl.byVoter[vote.Validator]; seen {
		existing := sl.order[idx]
		if existing.SameSignature(vote) {
			s.incMetric(s.metric, "duplicate")
			s.reportIncident(types.ReasonDuplicateVote, vote.Validator, vote.BlockNumber)
			return false, nil
		}
		// Conflicting payload: keep both as evidence, reject from quorum.
		sl.conflicts[vote.Validator] = append(sl.conflicts[vote.Validator], existing, vote)
		s.incMetric(s.metric, "conflicting")
		s.reportIncident(types.ReasonConflictingVotes, vote.Validator, vote.BlockNumber,
			encodeEvidence(existing), encodeEvidence(vote))
		return false, types.NewError(types.KindConflictingVote, "votestore.Insert", types.ErrConflictingVote)
	}

	sl.byVoter[vote.Validator] = len(sl.order)
	sl.order = append(sl.order, vote)
	if s.metric != nil {
		s.metric.VotesAccepted.WithLabelValues(vote.Phase.String()).Inc()
	}
	return true, nil
}

func encodeEvidence(v types.Vote) []byte {
	// A light-weight evidence blob: validator || block_hash || phase.
	// The exact canonical vote encoding lives in package codec; evidence
	// hashing only needs stability, not the full wire format.
	buf := make([]byte, 0, 65)
	buf = append(buf, v.Validator[:]...)
	buf = append(buf, v.BlockHash[:]...)
	buf = append(buf, byte(v.Phase))
	return buf
}

func (s *Store) checkMembership(vote types.Vote) error {
	if s.lookup == nil {
		return nil
	}
	committee, err := s.lookup.Committee(vote.Epoch)
	if err != nil {
		return err
	}
	if !committee.Contains(vote.Validator) {
		return types.NewError(types.KindValidatorNotInCommittee, "votestore.Insert", types.ErrValidatorNotInCommittee)
	}
	return nil
}

func (s *Store) checkSignature(vote types.Vote, pubKey []byte) error {
	if s.verifier == nil {
		return nil
	}
	msg := signedPayload(vote)
	if !s.verifier.Verify(pubKey, msg, vote.Signature) {
		return types.NewError(types.KindInvalidSignature, "votestore.Insert", types.ErrInvalidSignature)
	}
	return nil
}

// SigningPayload returns the exact bytes a validator must sign to
// produce vote.Signature: the canonical encoding of every Vote field
// but the signature itself (spec.md §3). Callers that produce votes
// (the demo binary's local committee simulator, tests) use this to build a
// signature this store's checkSignature will accept.
func SigningPayload(v types.Vote) []byte {
	return signedPayload(v)
}

// signedPayload is the canonical encoding of the first seven fields
// of a Vote — everything but the signature itself (spec.md §3).
func signedPayload(v types.Vote) []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, v.BlockHash[:]...)
	buf = appendUint64(buf, v.BlockNumber)
	buf = append(buf, byte(v.Phase))
	buf = append(buf, v.Validator[:]...)
	buf = appendUint64(buf, uint64(v.StakeWeight))
	buf = appendUint64(buf, uint64(v.Epoch))
	buf = appendUint64(buf, v.Timestamp)
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}

func (s *Store) reportIncident(reason types.SuspicionReason, validator types.ValidatorID, blockNumber uint64, evidence ...[]byte) {
	if s.committee != nil {
		s.committee.ReportIncident(reason, validator, blockNumber, evidence...)
	}
}

func (s *Store) incMetric(m *metrics.Metrics, reason string) {
	if m != nil {
		m.VotesRejected.WithLabelValues(reason).Inc()
	}
}

// AcceptedVotes returns every accepted vote for (blockHash, phase) in
// first-seen order.
func (s *Store) AcceptedVotes(blockHash types.BlockHash, phase types.ConsensusPhase) []types.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[voteKey{blockHash: blockHash, phase: phase}]
	if !ok {
		return nil
	}
	return append([]types.Vote(nil), sl.order...)
}

// AggregatedWeight sums the stake weight of every accepted, distinct
// validator for (blockHash, phase).
func (s *Store) AggregatedWeight(blockHash types.BlockHash, phase types.ConsensusPhase) types.Stake {
	var total types.Stake
	for _, v := range s.AcceptedVotes(blockHash, phase) {
		total += v.StakeWeight
	}
	return total
}

// Signers returns the distinct accepted validator IDs for (blockHash, phase).
func (s *Store) Signers(blockHash types.BlockHash, phase types.ConsensusPhase) []types.ValidatorID {
	votes := s.AcceptedVotes(blockHash, phase)
	out := make([]types.ValidatorID, len(votes))
	for i, v := range votes {
		out[i] = v.Validator
	}
	return out
}

// Conflicts returns the raw conflicting-payload evidence recorded for
// validator at (blockHash, phase), if any.
func (s *Store) Conflicts(blockHash types.BlockHash, phase types.ConsensusPhase, validator types.ValidatorID) []types.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[voteKey{blockHash: blockHash, phase: phase}]
	if !ok {
		return nil
	}
	return append([]types.Vote(nil), sl.conflicts[validator]...)
}
