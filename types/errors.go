// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra context beyond
// their own identity. Callers that need the taxonomy in §7 of the
// spec use errors.As against *Error instead.
var (
	ErrValidatorNotInCommittee = errors.New("validator not in committee")
	ErrConflictingVote         = errors.New("conflicting vote")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrInvalidPhaseTransition  = errors.New("invalid phase transition")
	ErrAlreadyFinalized        = errors.New("block already finalized")
	ErrNoQuorum                = errors.New("no quorum")
	ErrCertificateMismatch     = errors.New("certificate mismatch")
	ErrRegression              = errors.New("monotonicity regression")
	ErrProposerUnauthorized    = errors.New("proposer unauthorized")
	ErrCancelled               = errors.New("cancelled")
)

// Kind is the error taxonomy exposed to callers outside the core
// (spec.md §7). Each Kind documents its own recoverability.
type Kind uint8

const (
	// KindInvalidSignature: recoverable at the caller, reject the input.
	KindInvalidSignature Kind = iota
	// KindValidatorNotInCommittee: recoverable, reject the vote.
	KindValidatorNotInCommittee
	// KindInvalidPhaseTransition: recoverable, reject the vote (possibly Byzantine).
	KindInvalidPhaseTransition
	// KindConflictingVote: recoverable, plus an incident is emitted.
	KindConflictingVote
	// KindCertificateMismatch: non-recoverable at the storage layer, surfaces upward.
	KindCertificateMismatch
	// KindStorageBackend: escalated, consensus cannot safely proceed without durability.
	KindStorageBackend
	// KindProposerUnauthorized: recoverable at block import, reject the block.
	KindProposerUnauthorized
	// KindForkChoice: the verifier could not resolve an authoritative committee for the block.
	KindForkChoice
	// KindInvalidSlot: the block's slot/timestamp failed a monotonicity check.
	KindInvalidSlot
	// KindBlockImport: generic import-pipeline failure wrapping a lower-level cause.
	KindBlockImport
	// KindRuntimeApi: the runtime's state-transition call failed.
	KindRuntimeApi
	// KindCancelled: cooperative shutdown, never logged as an error.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSignature:
		return "InvalidSignature"
	case KindValidatorNotInCommittee:
		return "ValidatorNotInCommittee"
	case KindInvalidPhaseTransition:
		return "InvalidPhaseTransition"
	case KindConflictingVote:
		return "ConflictingVote"
	case KindCertificateMismatch:
		return "CertificateMismatch"
	case KindStorageBackend:
		return "StorageBackend"
	case KindProposerUnauthorized:
		return "ProposerUnauthorized"
	case KindForkChoice:
		return "ForkChoice"
	case KindInvalidSlot:
		return "InvalidSlot"
	case KindBlockImport:
		return "BlockImport"
	case KindRuntimeApi:
		return "RuntimeApi"
	case KindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is the typed error every fallible core operation may return.
// It wraps an underlying cause (if any) so callers can both
// errors.As to the Kind and %w-unwrap to the original cause.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "votestore.Insert"
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is against the sentinel errors above by mapping
// each Kind to its canonical sentinel.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindValidatorNotInCommittee:
		return target == ErrValidatorNotInCommittee
	case KindConflictingVote:
		return target == ErrConflictingVote
	case KindInvalidSignature:
		return target == ErrInvalidSignature
	case KindInvalidPhaseTransition:
		return target == ErrInvalidPhaseTransition
	case KindCertificateMismatch:
		return target == ErrCertificateMismatch
	case KindProposerUnauthorized:
		return target == ErrProposerUnauthorized
	case KindCancelled:
		return target == ErrCancelled
	default:
		return false
	}
}

// NewError builds a typed Error. cause may be nil.
func NewError(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// IsRecoverable reports whether an error of this Kind can be absorbed
// locally (metric increment + debug log) rather than escalated to a
// consensus-task abort.
func (k Kind) IsRecoverable() bool {
	switch k {
	case KindCertificateMismatch, KindStorageBackend:
		return false
	default:
		return true
	}
}
