// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package authoring implements the block-authoring worker (spec.md
// §4.6): a slot-tick loop that queries the PPFA scheduler for the
// expected proposer, builds and seals a block when the local keystore
// holds that validator's key, and hands the result to the import
// pipeline. The cooperative-cancellation and select-on-ctx.Done shape
// mirrors the teacher's consensus/beam Engine.Propose.
package authoring

import (
	"context"
	"crypto/sha256"
	"sync/atomic"
	"time"

	"github.com/etrid/asf/crypto"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/types"
)

// SlotDurationMS is the fixed slot duration (spec.md §6); the spec's
// "adaptive slot duration (6-18s)" is a declared-but-unimplemented API
// in the original source (spec.md §9 open question) and is left as a
// future hook rather than guessed at here.
const SlotDurationMS = 6000

// Slot is the current slot number, floor(now_ms / SlotDurationMS).
type Slot uint64

// SlotAt derives the slot containing a unix-millisecond timestamp.
func SlotAt(unixMS uint64) Slot {
	return Slot(unixMS / SlotDurationMS)
}

// preRuntimeDigestID is the 8-byte pre-runtime digest tag carrying
// (Slot, PpfaIndex), confirmed by the original primitives::AsfApi
// inherent identifier (spec.md §6 names it loosely as "asf0"; the
// source's exact 8-byte tag is authoritative).
const preRuntimeDigestID = "asfslot0"

// PreRuntimeDigest encodes the canonical (Slot, PpfaIndex) pair
// attached to every authored block header.
type PreRuntimeDigest struct {
	Slot      Slot
	PpfaIndex types.PpfaIndex
}

// Encode returns the digest item's payload. The payload does not
// include the 8-byte ID, and Header and Header.Hash do not carry it
// either: no encoding in this package writes preRuntimeDigestID.
func (d PreRuntimeDigest) Encode() []byte {
	buf := make([]byte, 12)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(d.Slot)
		d.Slot >>= 8
	}
	idx := uint32(d.PpfaIndex)
	for i := 11; i >= 8; i-- {
		buf[i] = byte(idx)
		idx >>= 8
	}
	return buf
}

// DecodePreRuntimeDigest parses a digest payload produced by Encode.
func DecodePreRuntimeDigest(b []byte) (PreRuntimeDigest, bool) {
	if len(b) != 12 {
		return PreRuntimeDigest{}, false
	}
	var slot uint64
	for i := 0; i < 8; i++ {
		slot = slot<<8 | uint64(b[i])
	}
	var idx uint32
	for i := 8; i < 12; i++ {
		idx = idx<<8 | uint32(b[i])
	}
	return PreRuntimeDigest{Slot: Slot(slot), PpfaIndex: types.PpfaIndex(idx)}, true
}

// Header is the minimal sealed-block envelope this package produces.
// The runtime's actual block/extrinsic representation is out of core
// scope (spec.md §1 non-goals: client/wallet UX, economic policy); the
// authoring worker only needs enough of a header to carry the digests
// and seal.
type Header struct {
	BlockNumber     uint64
	ParentHash      types.BlockHash
	Timestamp       uint64
	PreRuntimeDigest PreRuntimeDigest
	Proposer        types.ValidatorID
	Seal            []byte
}

// Hash returns the block hash used for the seal signature and for
// downstream vote/certificate tracking. It intentionally excludes Seal
// itself.
func (h Header) Hash() types.BlockHash {
	buf := make([]byte, 0, 64)
	buf = appendUint64(buf, h.BlockNumber)
	buf = append(buf, h.ParentHash[:]...)
	buf = appendUint64(buf, h.Timestamp)
	buf = append(buf, h.PreRuntimeDigest.Encode()...)
	buf = append(buf, h.Proposer[:]...)
	return sha256.Sum256(buf)
}

// Scheduler is the subset of validators.Scheduler the worker needs.
type Scheduler interface {
	ExpectedProposer(blockNumber uint64) (types.ValidatorID, error)
	PpfaIndexFor(blockNumber uint64) (types.PpfaIndex, error)
	IsProposerAuthorized(blockNumber uint64, ppfaIndex types.PpfaIndex, proposerID types.ValidatorID) bool
}

// Sink is the import pipeline the worker hands finished blocks to.
type Sink interface {
	Import(ctx context.Context, header Header) error
}

// Keystore resolves whether the local node can author as validator,
// and supplies the signer for the block seal if so.
type Keystore interface {
	SignerFor(validator types.ValidatorID) (crypto.Signer, bool)
}

// Worker runs the slot-tick authoring loop.
type Worker struct {
	params    Params
	scheduler Scheduler
	keystore  Keystore
	sink      Sink
	log       log.Logger
	metric    *metrics.Metrics

	lastAuthoredSlot Slot
	importing        atomic.Bool
}

// Params configures the worker's timing discipline.
type Params struct {
	SlotDuration    time.Duration
	BackoffOnImport time.Duration
	LocalID         types.ValidatorID
}

// DefaultParams returns the spec's fixed 6s slot duration and a
// conservative backoff.
func DefaultParams(localID types.ValidatorID) Params {
	return Params{
		SlotDuration:    SlotDurationMS * time.Millisecond,
		BackoffOnImport: 500 * time.Millisecond,
		LocalID:         localID,
	}
}

// New constructs a Worker.
func New(params Params, scheduler Scheduler, keystore Keystore, sink Sink, logger log.Logger, metric *metrics.Metrics) *Worker {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Worker{params: params, scheduler: scheduler, keystore: keystore, sink: sink, log: logger, metric: metric}
}

// Run drives the slot-tick loop until ctx is cancelled. nextBlockNumber
// supplies the number of the next block to attempt (the chain's
// current height + 1); it is read once per tick.
func (w *Worker) Run(ctx context.Context, nextBlockNumber func() uint64, parentHash func() types.BlockHash) {
	ticker := time.NewTicker(w.params.SlotDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("authoring worker stopped", "reason", ctx.Err())
			return
		case tick := <-ticker.C:
			w.onTick(ctx, tick, nextBlockNumber(), parentHash())
		}
	}
}

// onTick implements one slot's worth of the authoring algorithm
// (spec.md §4.6). It never blocks past ctx cancellation.
func (w *Worker) onTick(ctx context.Context, tick time.Time, blockNumber uint64, parent types.BlockHash) {
	slot := SlotAt(uint64(tick.UnixMilli()))
	if slot == w.lastAuthoredSlot {
		// "Will not author more than one block per slot."
		return
	}
	if w.importing.Load() {
		w.log.Debug("backing off, previous block still importing", "slot", slot)
		select {
		case <-time.After(w.params.BackoffOnImport):
		case <-ctx.Done():
			return
		}
		return
	}

	proposer, err := w.scheduler.ExpectedProposer(blockNumber)
	if err != nil {
		w.log.Debug("no expected proposer for block", "block_number", blockNumber, "err", err)
		return
	}
	if proposer != w.params.LocalID {
		return
	}
	signer, ok := w.keystore.SignerFor(proposer)
	if !ok {
		return
	}
	ppfaIndex, err := w.scheduler.PpfaIndexFor(blockNumber)
	if err != nil {
		w.log.Debug("no ppfa index for block", "block_number", blockNumber, "err", err)
		return
	}

	header := Header{
		BlockNumber: blockNumber,
		ParentHash:  parent,
		Timestamp:   uint64(tick.UnixMilli()),
		PreRuntimeDigest: PreRuntimeDigest{
			Slot:      slot,
			PpfaIndex: ppfaIndex,
		},
		Proposer: proposer,
	}

	hash := header.Hash()
	seal, err := signer.Sign(hash[:])
	if err != nil {
		w.log.Error("block seal signing failed", "block_number", blockNumber, "err", err)
		return
	}
	header.Seal = seal

	w.lastAuthoredSlot = slot
	w.importing.Store(true)
	if w.metric != nil {
		w.metric.BlocksAuthored.Inc()
	}

	go func() {
		defer w.importing.Store(false)
		if err := w.sink.Import(ctx, header); err != nil {
			w.log.Debug("authored block failed import", "block_number", blockNumber, "err", err)
		}
	}()
}

func appendUint64(buf []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}
