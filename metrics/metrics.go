// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes prometheus collectors for every consensus
// component. Each component is handed the *Metrics value registered
// by the caller's prometheus.Registerer; no component keeps its own
// process-global registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the ASF core registers. It is
// constructed once per node and passed down to votestore, certificate,
// byzantine, slashing, checkpoint and authoring.
type Metrics struct {
	VotesAccepted     *prometheus.CounterVec // labels: phase
	VotesRejected     *prometheus.CounterVec // labels: reason
	CertificatesIssued *prometheus.CounterVec // labels: phase
	IncidentsRecorded *prometheus.CounterVec // labels: reason
	SlashesExecuted   prometheus.Counter
	SlashedStake      prometheus.Counter
	FinalityLevel     prometheus.Gauge
	CheckpointWriteLatency prometheus.Histogram
	CheckpointLastFinalized prometheus.Gauge
	BlocksAuthored    prometheus.Counter
	BlocksImported    prometheus.Counter
	BlocksRejected    *prometheus.CounterVec // labels: reason
}

// New constructs and registers every collector against reg. Callers
// in this module's tests use prometheus.NewRegistry(); production
// callers use the node-wide registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		VotesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asf_votes_accepted_total",
			Help: "Votes accepted into the vote store, by phase.",
		}, []string{"phase"}),
		VotesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asf_votes_rejected_total",
			Help: "Votes rejected by the vote store, by reason.",
		}, []string{"reason"}),
		CertificatesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asf_certificates_issued_total",
			Help: "Certificates issued by the aggregator, by phase.",
		}, []string{"phase"}),
		IncidentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asf_byzantine_incidents_total",
			Help: "Byzantine incidents recorded, by reason.",
		}, []string{"reason"}),
		SlashesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asf_slashes_executed_total",
			Help: "Slashing events successfully executed.",
		}),
		SlashedStake: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asf_stake_slashed_total",
			Help: "Cumulative stake burned by the slashing executor.",
		}),
		FinalityLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "asf_last_finality_level",
			Help: "Finality level of the most recently finalized block.",
		}),
		CheckpointWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "asf_checkpoint_write_latency_seconds",
			Help:    "Latency of checkpoint-storage write operations.",
			Buckets: prometheus.DefBuckets,
		}),
		CheckpointLastFinalized: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "asf_checkpoint_last_finalized",
			Help: "Last finalized checkpoint number.",
		}),
		BlocksAuthored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asf_blocks_authored_total",
			Help: "Blocks successfully authored by this node.",
		}),
		BlocksImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asf_blocks_imported_total",
			Help: "Blocks that passed the import-pipeline verifier.",
		}),
		BlocksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asf_blocks_rejected_total",
			Help: "Blocks rejected by the import-pipeline verifier, by reason.",
		}, []string{"reason"}),
	}

	collectors := []prometheus.Collector{
		m.VotesAccepted, m.VotesRejected, m.CertificatesIssued, m.IncidentsRecorded,
		m.SlashesExecuted, m.SlashedStake, m.FinalityLevel,
		m.CheckpointWriteLatency, m.CheckpointLastFinalized,
		m.BlocksAuthored, m.BlocksImported, m.BlocksRejected,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNoOp returns a Metrics value registered against a private
// registry, for callers (mostly tests) that don't care about
// observability but still need a non-nil *Metrics.
func NewNoOp() *Metrics {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		panic(err) // unreachable: a fresh registry never rejects a fresh collector
	}
	return m
}
