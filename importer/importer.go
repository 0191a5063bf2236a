// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package importer implements the import-pipeline verifier
// (spec.md §4.7): it extracts the pre-runtime digest from an incoming
// block, checks proposer authorization against the PPFA scheduler,
// verifies the block seal, and sanity-checks slot/timestamp
// monotonicity before handing the block to the runtime.
package importer

import (
	"context"

	"github.com/etrid/asf/authoring"
	"github.com/etrid/asf/crypto"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/types"
)

// postRuntimeDigestID is the digest item a verified block is tagged
// with before being announced to peers (spec.md §6).
const postRuntimeDigestID = "asf_verified"

// Scheduler is the subset of validators.Scheduler the verifier needs.
type Scheduler interface {
	IsProposerAuthorized(blockNumber uint64, ppfaIndex types.PpfaIndex, proposerID types.ValidatorID) bool
}

// KeyResolver resolves a validator's registered block-production
// public key (the runtime API's get_validator_asf_key, spec.md §6).
type KeyResolver interface {
	ValidatorKey(id types.ValidatorID) ([]byte, bool)
}

// RuntimeExecutor hands a verified block to the runtime for state
// transition (spec.md §4.7 step 5). Its shape is deliberately minimal
// since the state-transition function itself is out of core scope.
type RuntimeExecutor interface {
	Execute(ctx context.Context, header authoring.Header) error
}

// Verifier implements the import-pipeline algorithm.
type Verifier struct {
	scheduler Scheduler
	keys      KeyResolver
	verifier  crypto.Verifier
	runtime   RuntimeExecutor
	log       log.Logger
	metric    *metrics.Metrics
}

// New constructs a Verifier.
func New(scheduler Scheduler, keys KeyResolver, verifier crypto.Verifier, runtime RuntimeExecutor, logger log.Logger, metric *metrics.Metrics) *Verifier {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Verifier{scheduler: scheduler, keys: keys, verifier: verifier, runtime: runtime, log: logger, metric: metric}
}

// Verified is a block that passed every import check, tagged with the
// post-runtime digest.
type Verified struct {
	Header               authoring.Header
	PostRuntimeDigestID  string
}

// Import runs the five-step algorithm from spec.md §4.7. Every
// failure is a hard reject with a typed *types.Error; none of them
// panic.
func (v *Verifier) Import(ctx context.Context, header authoring.Header, parentTimestamp uint64) (Verified, error) {
	if err := ctx.Err(); err != nil {
		return Verified{}, types.NewError(types.KindCancelled, "importer.Import", err)
	}

	digest := header.PreRuntimeDigest
	if digest == (authoring.PreRuntimeDigest{}) && header.BlockNumber != 0 {
		// A genuinely absent digest decodes to the zero value; block 0
		// (genesis) is exempt from this presence check, but still goes
		// through PPFA authorization below.
		return Verified{}, types.NewError(types.KindBlockImport, "importer.Import", nil)
	}

	if !v.scheduler.IsProposerAuthorized(header.BlockNumber, digest.PpfaIndex, header.Proposer) {
		v.incRejected("unauthorized_proposer")
		return Verified{}, types.NewError(types.KindProposerUnauthorized, "importer.Import", types.ErrProposerUnauthorized)
	}

	pubKey, ok := v.keys.ValidatorKey(header.Proposer)
	if !ok {
		v.incRejected("unknown_key")
		return Verified{}, types.NewError(types.KindInvalidSignature, "importer.Import", nil)
	}
	hash := header.Hash()
	if !v.verifier.Verify(pubKey, hash[:], header.Seal) {
		v.incRejected("bad_seal")
		return Verified{}, types.NewError(types.KindInvalidSignature, "importer.Import", types.ErrInvalidSignature)
	}

	if header.BlockNumber > 0 && header.Timestamp < parentTimestamp {
		v.incRejected("slot_regression")
		return Verified{}, types.NewError(types.KindInvalidSlot, "importer.Import", nil)
	}
	expectedSlot := authoring.SlotAt(header.Timestamp)
	if digest.Slot != expectedSlot {
		v.incRejected("slot_mismatch")
		return Verified{}, types.NewError(types.KindInvalidSlot, "importer.Import", nil)
	}

	if err := v.runtime.Execute(ctx, header); err != nil {
		v.incRejected("runtime_api")
		return Verified{}, types.NewError(types.KindRuntimeApi, "importer.Import", err)
	}

	if v.metric != nil {
		v.metric.BlocksImported.Inc()
	}
	v.log.Debug("block imported", "block_number", header.BlockNumber, "proposer", header.Proposer.String())
	return Verified{Header: header, PostRuntimeDigestID: postRuntimeDigestID}, nil
}

func (v *Verifier) incRejected(reason string) {
	if v.metric != nil {
		v.metric.BlocksRejected.WithLabelValues(reason).Inc()
	}
}
