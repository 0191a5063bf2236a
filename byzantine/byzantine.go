// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package byzantine implements the Byzantine detector: it receives
// incident reports from the vote store and the ASF state machine,
// maintains a permanent per-validator incident record, and surfaces
// slashing candidates once a validator crosses the auto-slash
// threshold (spec.md §2 component 4, §4.3).
package byzantine

import (
	"sync"

	"github.com/etrid/asf/config"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/merkle"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/types"
)

// Detector accumulates SuspicionRecords. incident_count on a record
// never decreases (spec.md invariant); this package provides no API
// to remove or decrement an incident.
type Detector struct {
	mu sync.Mutex

	params config.Parameters
	log    log.Logger
	metric *metrics.Metrics

	records map[types.ValidatorID]*types.SuspicionRecord
	evidence map[types.ValidatorID][][]byte
}

// New constructs a Detector.
func New(params config.Parameters, logger log.Logger, metric *metrics.Metrics) *Detector {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Detector{
		params:   params,
		log:      logger,
		metric:   metric,
		records:  make(map[types.ValidatorID]*types.SuspicionRecord),
		evidence: make(map[types.ValidatorID][][]byte),
	}
}

// ReportIncident implements votestore.IncidentReporter: records one
// incident against validator, appending evidence blobs (if any) to
// its cumulative evidence set and recomputing the evidence Merkle
// root.
func (d *Detector) ReportIncident(reason types.SuspicionReason, validator types.ValidatorID, blockNumber uint64, evidence ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[validator]
	if !ok {
		rec = &types.SuspicionRecord{Validator: validator, FirstSeen: blockNumber}
		d.records[validator] = rec
	}
	rec.IncidentCount++
	rec.Reasons = append(rec.Reasons, reason)
	if len(evidence) > 0 {
		d.evidence[validator] = append(d.evidence[validator], evidence...)
		rec.EvidenceRoot = merkle.Build(d.evidence[validator]).Root()
	}

	if d.metric != nil {
		d.metric.IncidentsRecorded.WithLabelValues(reason.String()).Inc()
	}
	d.log.Debug("incident recorded", "validator", validator.String(), "reason", reason.String(), "count", rec.IncidentCount)
}

// ReportInvalidPhase is a typed convenience over ReportIncident for
// the ASF state machine's InvalidPhase check (a Commit or Finality
// vote arriving before its prerequisite phase).
func (d *Detector) ReportInvalidPhase(validator types.ValidatorID, blockNumber uint64, evidence []byte) {
	d.ReportIncident(types.ReasonInvalidPhase, validator, blockNumber, evidence)
}

// ReportFalseFinality accuses every validator in accused of signing
// two Finality certificates for distinct block hashes at the same
// block number — every signer in the intersection is accused
// (spec.md §4.3).
func (d *Detector) ReportFalseFinality(accused []types.ValidatorID, blockNumber uint64, evidence []byte) {
	for _, v := range accused {
		d.ReportIncident(types.ReasonFalseFinality, v, blockNumber, evidence)
	}
}

// ReportRelayFailure records a checkpoint-signer relay failure,
// reported externally by the commitment module (spec.md §4.3).
func (d *Detector) ReportRelayFailure(validator types.ValidatorID, blockNumber uint64) {
	d.ReportIncident(types.ReasonRelayFailure, validator, blockNumber)
}

// Record returns a copy of validator's suspicion record, or the zero
// value and false if it has none.
func (d *Detector) Record(validator types.ValidatorID) (types.SuspicionRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[validator]
	if !ok {
		return types.SuspicionRecord{}, false
	}
	return *rec, true
}

// Candidate is a validator whose incident count has crossed the
// auto-slash threshold, paired with the count the candidacy was
// produced at.
type Candidate struct {
	Validator     types.ValidatorID
	IncidentCount uint32
}

// Candidates returns every validator at or above AutoSlashThreshold.
// The slashing executor polls this list; skipped candidates (because
// StakingInterface.slash_validator failed) simply reappear on the
// next call since incident_count is never cleared here.
func (d *Detector) Candidates() []Candidate {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Candidate
	for id, rec := range d.records {
		if rec.IncidentCount >= d.params.AutoSlashThreshold {
			out = append(out, Candidate{Validator: id, IncidentCount: rec.IncidentCount})
		}
	}
	return out
}
