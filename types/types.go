// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the data model shared by every ASF consensus
// component: validator identifiers, stake, votes, certificates,
// finality levels, Byzantine-incident records and checkpoint records.
package types

import (
	"encoding/hex"
	"fmt"
	"time"
)

// ValidatorID is a fixed-size opaque validator identifier. It is
// equatable, orderable (lexicographic byte order) and hashable, so it
// can be used directly as a map key.
type ValidatorID [32]byte

// String renders the full identifier as a 64-character hex string.
func (v ValidatorID) String() string {
	return hex.EncodeToString(v[:])
}

// Less orders ValidatorIDs lexicographically, used as the ascending
// tie-break in committee construction.
func (v ValidatorID) Less(other ValidatorID) bool {
	for i := range v {
		if v[i] != other[i] {
			return v[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether this is the zero-value identifier.
func (v ValidatorID) IsZero() bool {
	return v == ValidatorID{}
}

// ValidatorIDFromBytes builds a ValidatorID from a byte slice,
// left-padding if shorter and truncating if longer than 32 bytes.
func ValidatorIDFromBytes(b []byte) ValidatorID {
	var id ValidatorID
	copy(id[32-min(len(b), 32):], b)
	return id
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// BlockHash is a fixed-size block identifier.
type BlockHash [32]byte

func (h BlockHash) String() string { return hex.EncodeToString(h[:]) }
func (h BlockHash) IsZero() bool   { return h == BlockHash{} }

// Stake is a non-negative integer weight. The core treats it as an
// opaque value; only a StakingInterface implementation may mutate the
// backing ledger. Sums of Stake values (Committee.TotalStake, the vote
// store's aggregated weight) use plain uint64 addition and do not
// saturate; utils/math provides overflow-checked helpers.
type Stake uint64

// Reputation is a basis-points score in [0, 10000].
type Reputation uint32

const MaxReputation Reputation = 10000

// ValidatorInfo describes one member of the active validator set.
type ValidatorInfo struct {
	ID            ValidatorID
	Stake         Stake
	Reputation    Reputation
	InCommittee   bool
	PublicKeyASF  []byte // nil if the validator has not registered an ASF key
}

// HasASFKey reports whether this validator has registered a
// block-production / vote-signing public key.
func (v ValidatorInfo) HasASFKey() bool {
	return len(v.PublicKeyASF) > 0
}

// Epoch is a monotonic epoch counter.
type Epoch uint64

// PpfaIndex selects a committee slot within an epoch.
type PpfaIndex uint32

// Committee is the fixed-size, deterministically ordered sequence of
// validators eligible to propose and vote during an epoch.
type Committee struct {
	Epoch      Epoch
	Validators []ValidatorInfo
}

// Size returns the number of committee members.
func (c *Committee) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Validators)
}

// TotalStake sums the stake of every committee member.
func (c *Committee) TotalStake() Stake {
	var total Stake
	for _, v := range c.Validators {
		total += v.Stake
	}
	return total
}

// At returns the validator at the given PPFA index, or the zero value
// and false if the index is out of range.
func (c *Committee) At(idx PpfaIndex) (ValidatorInfo, bool) {
	if c == nil || int(idx) >= len(c.Validators) {
		return ValidatorInfo{}, false
	}
	return c.Validators[idx], true
}

// Contains reports whether id is a member of the committee.
func (c *Committee) Contains(id ValidatorID) bool {
	if c == nil {
		return false
	}
	for _, v := range c.Validators {
		if v.ID == id {
			return true
		}
	}
	return false
}

// IndexOf returns the committee slot of id, or -1 if absent.
func (c *Committee) IndexOf(id ValidatorID) int {
	if c == nil {
		return -1
	}
	for i, v := range c.Validators {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// ConsensusPhase is one stage of the three-phase vote protocol.
type ConsensusPhase uint8

const (
	PhasePreCommit ConsensusPhase = iota
	PhaseCommit
	PhaseFinality
)

func (p ConsensusPhase) String() string {
	switch p {
	case PhasePreCommit:
		return "pre_commit"
	case PhaseCommit:
		return "commit"
	case PhaseFinality:
		return "finality"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Next returns the phase that directly follows p, and false if p is
// already terminal.
func (p ConsensusPhase) Next() (ConsensusPhase, bool) {
	switch p {
	case PhasePreCommit:
		return PhaseCommit, true
	case PhaseCommit:
		return PhaseFinality, true
	default:
		return p, false
	}
}

// Vote is a single validator's signed attestation for a block at a
// given phase. The signature covers the canonical encoding of every
// field except Signature itself.
type Vote struct {
	BlockHash   BlockHash
	BlockNumber uint64
	Phase       ConsensusPhase
	Validator   ValidatorID
	StakeWeight Stake
	Epoch       Epoch
	Timestamp   uint64
	Signature   []byte
}

// SamePayload reports whether two votes carry an identical signed
// payload (everything except the signature bytes themselves need not
// match byte-for-byte once already equal, but we compare exactly since
// a vote's fields fully determine its payload).
func (v Vote) SamePayload(other Vote) bool {
	return v.BlockHash == other.BlockHash &&
		v.BlockNumber == other.BlockNumber &&
		v.Phase == other.Phase &&
		v.Validator == other.Validator &&
		v.StakeWeight == other.StakeWeight &&
		v.Epoch == other.Epoch &&
		v.Timestamp == other.Timestamp
}

// SameSignature reports whether two votes are byte-identical,
// including their signature — the "same vote arriving twice" case.
func (v Vote) SameSignature(other Vote) bool {
	return v.SamePayload(other) && string(v.Signature) == string(other.Signature)
}

// Certificate is an aggregate of quorum-weight votes for a single
// (block_hash, phase) pair within one epoch.
type Certificate struct {
	BlockHash        BlockHash
	Phase            ConsensusPhase
	Signers          []ValidatorID
	AggregatedWeight Stake
	Epoch            Epoch
	Timestamp        uint64
}

// HasSigner reports whether id is among the certificate's signers.
func (c Certificate) HasSigner(id ValidatorID) bool {
	for _, s := range c.Signers {
		if s == id {
			return true
		}
	}
	return false
}

// FinalityLevel is the ascending confidence scale attached to a
// Finalized block.
type FinalityLevel uint8

const (
	FinalityNone FinalityLevel = iota
	FinalityWeak
	FinalityModerate
	FinalityStrong
	FinalityIrreversible
)

func (f FinalityLevel) String() string {
	switch f {
	case FinalityNone:
		return "none"
	case FinalityWeak:
		return "weak"
	case FinalityModerate:
		return "moderate"
	case FinalityStrong:
		return "strong"
	case FinalityIrreversible:
		return "irreversible"
	default:
		return fmt.Sprintf("level(%d)", uint8(f))
	}
}


// SuspicionReason enumerates why a validator was flagged by the
// Byzantine detector.
type SuspicionReason uint8

const (
	ReasonDuplicateVote SuspicionReason = iota
	ReasonConflictingVotes
	ReasonInvalidPhase
	ReasonFalseFinality
	ReasonRelayFailure
)

func (r SuspicionReason) String() string {
	switch r {
	case ReasonDuplicateVote:
		return "duplicate_vote"
	case ReasonConflictingVotes:
		return "conflicting_votes"
	case ReasonInvalidPhase:
		return "invalid_phase"
	case ReasonFalseFinality:
		return "false_finality"
	case ReasonRelayFailure:
		return "relay_failure"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// SuspicionRecord accumulates every incident attributed to a
// validator. incident_count only ever increases.
type SuspicionRecord struct {
	Validator     ValidatorID
	IncidentCount uint32
	FirstSeen     uint64 // block number of the first recorded incident
	Reasons       []SuspicionReason
	EvidenceRoot  [32]byte // Merkle root over accumulated evidence blobs
}

// SlashRecord is an immutable record of a single slashing event.
type SlashRecord struct {
	Validator    ValidatorID
	Reason       SuspicionReason
	Amount       Stake
	BlockNumber  uint64
	EvidenceHash [32]byte
}

// CheckpointNumber is a monotonic per-source-chain counter.
type CheckpointNumber uint64

// AuthoritySetID identifies the signer set a checkpoint signature was
// produced under.
type AuthoritySetID uint64

// Checkpoint is the tuple committed from a PBC into the root chain.
type Checkpoint struct {
	SourceChain string
	Number      CheckpointNumber
	StateRoot   [32]byte
	Timestamp   uint64
}

// CheckpointSignature is one validator's signature over a checkpoint.
type CheckpointSignature struct {
	Validator       ValidatorID
	Checkpoint      CheckpointNumber
	BlockHash       BlockHash
	AuthoritySetID  AuthoritySetID
	Signature       []byte
	Timestamp       uint64
}

// CheckpointCertificate aggregates CheckpointSignatures meeting the
// quorum rule into a single durable record.
type CheckpointCertificate struct {
	Checkpoint       CheckpointNumber
	Signers          []ValidatorID
	AggregatedWeight Stake
	Timestamp        uint64
}

// Now returns the current time as a unix-millisecond timestamp. It is
// the one place wall-clock time enters the core so tests can swap it
// out; production callers use time.Now().
var Now = func() uint64 {
	return uint64(time.Now().UnixMilli())
}
