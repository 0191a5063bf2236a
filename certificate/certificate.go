// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package certificate implements the quorum-certificate aggregator:
// it watches the accepted-vote weight behind a vote store and issues
// an immutable Certificate the first time a (block_hash, phase) pair
// crosses the quorum threshold (spec.md §2 component 3, §4.2).
package certificate

import (
	"sync"

	"github.com/etrid/asf/config"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/types"
)

// VoteSource is the read side of a vote store the aggregator consumes.
type VoteSource interface {
	AggregatedWeight(blockHash types.BlockHash, phase types.ConsensusPhase) types.Stake
	Signers(blockHash types.BlockHash, phase types.ConsensusPhase) []types.ValidatorID
}

// CommitteeLookup resolves a committee's total stake for the quorum
// computation.
type CommitteeLookup interface {
	Committee(epoch types.Epoch) (*types.Committee, error)
}

type certKey struct {
	blockHash types.BlockHash
	phase     types.ConsensusPhase
}

// Aggregator produces and caches certificates. A certificate, once
// produced, never changes: subsequent votes for the same pair still
// accrue in the vote store and count toward finality-level
// advancement, but TryCertify returns the same cached value.
type Aggregator struct {
	mu sync.Mutex

	votes  VoteSource
	lookup CommitteeLookup
	log    log.Logger
	metric *metrics.Metrics

	certs map[certKey]types.Certificate
}

// New constructs an Aggregator.
func New(votes VoteSource, lookup CommitteeLookup, logger log.Logger, metric *metrics.Metrics) *Aggregator {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Aggregator{
		votes:  votes,
		lookup: lookup,
		log:    logger,
		metric: metric,
		certs:  make(map[certKey]types.Certificate),
	}
}

// TryCertify checks whether (blockHash, phase) under epoch has
// reached quorum. If a certificate already exists for the pair, the
// cached certificate is returned unchanged ("certs are immutable
// once produced", spec.md §4.2 rule 3). Otherwise, if the current
// aggregated weight reaches config.QuorumWeight of the committee's
// total stake (⌈2·total/3⌉ + 1), a new certificate is minted and
// cached.
func (a *Aggregator) TryCertify(blockHash types.BlockHash, phase types.ConsensusPhase, epoch types.Epoch, now uint64) (types.Certificate, bool, error) {
	k := certKey{blockHash: blockHash, phase: phase}

	a.mu.Lock()
	if cert, ok := a.certs[k]; ok {
		a.mu.Unlock()
		return cert, true, nil
	}
	a.mu.Unlock()

	committee, err := a.lookup.Committee(epoch)
	if err != nil {
		return types.Certificate{}, false, err
	}

	weight := a.votes.AggregatedWeight(blockHash, phase)
	if !config.HasQuorum(uint64(weight), uint64(committee.TotalStake())) {
		return types.Certificate{}, false, nil
	}

	signers := a.votes.Signers(blockHash, phase)
	cert := types.Certificate{
		BlockHash:        blockHash,
		Phase:            phase,
		Signers:          signers,
		AggregatedWeight: weight,
		Epoch:            epoch,
		Timestamp:        now,
	}

	a.mu.Lock()
	if existing, ok := a.certs[k]; ok {
		a.mu.Unlock()
		// A concurrent caller raced us to the threshold; both observe
		// the same certificate (spec.md §5 ordering guarantee).
		return existing, true, nil
	}
	a.certs[k] = cert
	a.mu.Unlock()

	if a.metric != nil {
		a.metric.CertificatesIssued.WithLabelValues(phase.String()).Inc()
	}
	a.log.Debug("certificate issued", "phase", phase.String(), "weight", weight, "signers", len(signers))
	return cert, true, nil
}

// Get returns the cached certificate for (blockHash, phase), if any.
func (a *Aggregator) Get(blockHash types.BlockHash, phase types.ConsensusPhase) (types.Certificate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cert, ok := a.certs[certKey{blockHash: blockHash, phase: phase}]
	return cert, ok
}

