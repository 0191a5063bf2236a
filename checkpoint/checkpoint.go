// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package checkpoint implements the checkpoint-commitment module
// (spec.md §4.5, §6): an asynchronous façade over a synchronous,
// durable pebble-backed key-value store holding checkpoint
// signatures, aggregated certificates and the last-finalized marker
// bridging a PBC's state roots into the root chain. The adapter
// pattern is grounded on the original implementation's
// CheckpointStorageAdapter.
package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/etrid/asf/codec"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/types"
)

// Key prefixes, exactly as declared in spec.md §6.
const (
	prefixSignature  = "sig/"
	prefixCertificate = "cert/"
	keyLastFinalized = "meta/last_finalized"
)

func signatureKey(chainID string, number types.CheckpointNumber, validator types.ValidatorID) []byte {
	return []byte(fmt.Sprintf("%s%s/%d/%s", prefixSignature, chainID, number, validator.String()))
}

func signaturePrefix(chainID string, number types.CheckpointNumber) []byte {
	return []byte(fmt.Sprintf("%s%s/%d/", prefixSignature, chainID, number))
}

func certificateKey(chainID string, number types.CheckpointNumber) []byte {
	return []byte(fmt.Sprintf("%s%s/%d", prefixCertificate, chainID, number))
}

// Store is the asynchronous façade described in spec.md §4.5: every
// exported method accepts a context for cancellation, but internally
// every pebble call is synchronous — cancellation is checked at entry
// only, matching "pending write batches are discarded, not partially
// flushed" (spec.md §5).
type Store struct {
	mu sync.Mutex

	db     *pebble.DB
	log    log.Logger
	metric *metrics.Metrics
}

// Open opens (creating if absent) a pebble database at dir as the
// checkpoint store's durable backend.
func Open(dir string, logger log.Logger, metric *metrics.Metrics) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, types.NewError(types.KindStorageBackend, "checkpoint.Open", err)
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Store{db: db, log: logger, metric: metric}, nil
}

// Close flushes and closes the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreSignature appends a validator's checkpoint signature. A
// same-validator duplicate for the same checkpoint is a no-op: it
// does not fail the caller, and reports false. The first signature
// stored for a validator is kept; timestamps are not compared, so a
// later duplicate with an earlier timestamp does not replace it.
func (s *Store) StoreSignature(ctx context.Context, chainID string, sig types.CheckpointSignature) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, types.NewError(types.KindCancelled, "checkpoint.StoreSignature", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := signatureKey(chainID, sig.Checkpoint, sig.Validator)
	if _, closer, err := s.db.Get(key); err == nil {
		closer.Close()
		return false, nil
	} else if err != pebble.ErrNotFound {
		return false, types.NewError(types.KindStorageBackend, "checkpoint.StoreSignature", err)
	}

	writeStart := time.Now()
	if err := s.db.Set(key, codec.EncodeCheckpointSignature(sig), pebble.Sync); err != nil {
		return false, types.NewError(types.KindStorageBackend, "checkpoint.StoreSignature", err)
	}
	s.observeWriteLatency(writeStart)
	s.log.Debug("checkpoint signature stored", "chain", chainID, "checkpoint", sig.Checkpoint, "validator", sig.Validator.String())
	return true, nil
}

// StoreCertificate persists the aggregated certificate for a
// checkpoint. At most one certificate may exist per checkpoint; a
// later attempt whose aggregated content differs from the stored one
// is rejected as CertificateMismatch (spec.md §4.5 invariant).
func (s *Store) StoreCertificate(ctx context.Context, chainID string, cert types.CheckpointCertificate) error {
	if err := ctx.Err(); err != nil {
		return types.NewError(types.KindCancelled, "checkpoint.StoreCertificate", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := certificateKey(chainID, cert.Checkpoint)
	existingBytes, closer, err := s.db.Get(key)
	if err == nil {
		existing, decErr := codec.DecodeCheckpointCertificate(existingBytes)
		closer.Close()
		if decErr != nil {
			return types.NewError(types.KindStorageBackend, "checkpoint.StoreCertificate", decErr)
		}
		if !sameCertificate(existing, cert) {
			return types.NewError(types.KindCertificateMismatch, "checkpoint.StoreCertificate", types.ErrCertificateMismatch)
		}
		return nil
	}
	if err != pebble.ErrNotFound {
		return types.NewError(types.KindStorageBackend, "checkpoint.StoreCertificate", err)
	}

	writeStart := time.Now()
	if err := s.db.Set(key, codec.EncodeCheckpointCertificate(cert), pebble.Sync); err != nil {
		return types.NewError(types.KindStorageBackend, "checkpoint.StoreCertificate", err)
	}
	s.observeWriteLatency(writeStart)
	if s.metric != nil {
		s.metric.CheckpointLastFinalized.Set(float64(cert.Checkpoint))
	}
	s.log.Info("checkpoint certificate stored", "chain", chainID, "checkpoint", cert.Checkpoint, "signers", len(cert.Signers))
	return nil
}

// observeWriteLatency records how long a pebble write call took.
// Called directly after each Set or batch Commit with a start time
// taken just before that write.
func (s *Store) observeWriteLatency(start time.Time) {
	if s.metric != nil {
		s.metric.CheckpointWriteLatency.Observe(time.Since(start).Seconds())
	}
}

func sameCertificate(a, b types.CheckpointCertificate) bool {
	if a.Checkpoint != b.Checkpoint || a.AggregatedWeight != b.AggregatedWeight || len(a.Signers) != len(b.Signers) {
		return false
	}
	for i := range a.Signers {
		if a.Signers[i] != b.Signers[i] {
			return false
		}
	}
	return true
}

// GetSignatures returns every signature stored for a checkpoint.
func (s *Store) GetSignatures(ctx context.Context, chainID string, number types.CheckpointNumber) ([]types.CheckpointSignature, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewError(types.KindCancelled, "checkpoint.GetSignatures", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := signaturePrefix(chainID, number)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, types.NewError(types.KindStorageBackend, "checkpoint.GetSignatures", err)
	}
	defer iter.Close()

	var out []types.CheckpointSignature
	for ok := iter.First(); ok; ok = iter.Next() {
		sig, err := codec.DecodeCheckpointSignature(iter.Value())
		if err != nil {
			return nil, types.NewError(types.KindStorageBackend, "checkpoint.GetSignatures", err)
		}
		out = append(out, sig)
	}
	return out, nil
}

// GetCertificate returns the certificate stored for a checkpoint, if any.
func (s *Store) GetCertificate(ctx context.Context, chainID string, number types.CheckpointNumber) (types.CheckpointCertificate, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.CheckpointCertificate{}, false, types.NewError(types.KindCancelled, "checkpoint.GetCertificate", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, closer, err := s.db.Get(certificateKey(chainID, number))
	if err == pebble.ErrNotFound {
		return types.CheckpointCertificate{}, false, nil
	}
	if err != nil {
		return types.CheckpointCertificate{}, false, types.NewError(types.KindStorageBackend, "checkpoint.GetCertificate", err)
	}
	defer closer.Close()

	cert, err := codec.DecodeCheckpointCertificate(data)
	if err != nil {
		return types.CheckpointCertificate{}, false, types.NewError(types.KindStorageBackend, "checkpoint.GetCertificate", err)
	}
	return cert, true, nil
}

// GetLastFinalized returns the last-finalized checkpoint number,
// 0 if never set.
func (s *Store) GetLastFinalized(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, types.NewError(types.KindCancelled, "checkpoint.GetLastFinalized", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, closer, err := s.db.Get([]byte(keyLastFinalized))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, types.NewError(types.KindStorageBackend, "checkpoint.GetLastFinalized", err)
	}
	defer closer.Close()
	if len(data) != 8 {
		return 0, types.NewError(types.KindStorageBackend, "checkpoint.GetLastFinalized", fmt.Errorf("corrupt last_finalized record"))
	}
	return decodeU64(data), nil
}

// SetLastFinalized enforces monotonic non-decrease (spec.md §4.5).
func (s *Store) SetLastFinalized(ctx context.Context, n uint64) error {
	if err := ctx.Err(); err != nil {
		return types.NewError(types.KindCancelled, "checkpoint.SetLastFinalized", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, closer, err := s.db.Get([]byte(keyLastFinalized))
	if err == nil {
		current := decodeU64(data)
		closer.Close()
		if n < current {
			return types.NewError(types.KindStorageBackend, "checkpoint.SetLastFinalized", types.ErrRegression)
		}
	} else if err != pebble.ErrNotFound {
		return types.NewError(types.KindStorageBackend, "checkpoint.SetLastFinalized", err)
	}

	writeStart := time.Now()
	if err := s.db.Set([]byte(keyLastFinalized), encodeU64(n), pebble.Sync); err != nil {
		return types.NewError(types.KindStorageBackend, "checkpoint.SetLastFinalized", err)
	}
	s.observeWriteLatency(writeStart)
	if s.metric != nil {
		s.metric.CheckpointLastFinalized.Set(float64(n))
	}
	return nil
}

// PruneOldCheckpoints removes signatures and certificates with
// checkpoint_number < last_finalized - keepLastN, in a single atomic
// batch (spec.md §4.5, §4 "all writes for a single higher-level
// operation are grouped").
func (s *Store) PruneOldCheckpoints(ctx context.Context, chainID string, keepLastN uint64) error {
	if err := ctx.Err(); err != nil {
		return types.NewError(types.KindCancelled, "checkpoint.PruneOldCheckpoints", err)
	}

	lastFinalized, err := s.GetLastFinalized(ctx)
	if err != nil {
		return err
	}
	if lastFinalized <= keepLastN {
		return nil
	}
	cutoff := lastFinalized - keepLastN

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := deletePrefixRange(s.db, batch, []byte(fmt.Sprintf("%s%s/", prefixSignature, chainID)), cutoff); err != nil {
		return types.NewError(types.KindStorageBackend, "checkpoint.PruneOldCheckpoints", err)
	}
	if err := deletePrefixRange(s.db, batch, []byte(fmt.Sprintf("%s%s/", prefixCertificate, chainID)), cutoff); err != nil {
		return types.NewError(types.KindStorageBackend, "checkpoint.PruneOldCheckpoints", err)
	}

	writeStart := time.Now()
	if err := batch.Commit(pebble.Sync); err != nil {
		return types.NewError(types.KindStorageBackend, "checkpoint.PruneOldCheckpoints", err)
	}
	s.observeWriteLatency(writeStart)
	s.log.Debug("pruned checkpoints", "chain", chainID, "before", cutoff)
	return nil
}

// deletePrefixRange deletes every key under prefix whose embedded
// checkpoint_number (the path segment directly after the prefix) is
// less than cutoff. Certificates have no validator suffix; signatures
// do — both encode checkpoint_number as the first path segment so the
// same parse applies. Keys are read from db (a plain, non-indexed
// batch cannot be iterated) and the deletes are issued against batch
// so both prefixes commit atomically.
func deletePrefixRange(db *pebble.DB, batch *pebble.Batch, prefix []byte, cutoff uint64) error {
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return err
	}
	defer iter.Close()

	var toDelete [][]byte
	for ok := iter.First(); ok; ok = iter.Next() {
		number, ok := parseCheckpointNumber(iter.Key(), prefix)
		if ok && number < cutoff {
			toDelete = append(toDelete, append([]byte(nil), iter.Key()...))
		}
	}
	for _, k := range toDelete {
		if err := batch.Delete(k, nil); err != nil {
			return err
		}
	}
	return nil
}

func parseCheckpointNumber(key, prefix []byte) (uint64, bool) {
	rest := key[len(prefix):]
	var n uint64
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		n = n*10 + uint64(rest[i]-'0')
		i++
	}
	return n, i > 0
}

// Flush durably commits pending writes. pebble.Sync write options
// already fsync on every call in this implementation, so Flush only
// needs to flush the memtable.
func (s *Store) Flush() error {
	return s.db.Flush()
}

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func decodeU64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
