// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package slashing implements the slashing executor: it maps a
// detector's incident-count candidates to a stake percentage via the
// configured ladder and calls out to a StakingInterface to burn the
// stake (spec.md §2 component 5, §4.4).
package slashing

import (
	"sync"

	"github.com/etrid/asf/byzantine"
	"github.com/etrid/asf/config"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/types"
	umath "github.com/etrid/asf/utils/math"
)

// StakingInterface is the three-method capability the slashing
// executor consumes, grounded exactly on the original implementation's
// validator-management::StakingInterface trait: read current stake,
// burn a fraction of it, and check active status.
type StakingInterface interface {
	GetValidatorStake(id types.ValidatorID) (types.Stake, bool)
	SlashValidator(id types.ValidatorID, amount types.Stake) error
	IsActive(id types.ValidatorID) bool
}

// Executor runs the incident-count → percentage → burn pipeline.
type Executor struct {
	mu sync.Mutex

	params config.Parameters
	detector *byzantine.Detector
	staking  StakingInterface
	log      log.Logger
	metric   *metrics.Metrics

	// lastAppliedPercent tracks the highest slash tier already applied
	// per validator, so reaching the same tier again is a no-op while
	// reaching a strictly higher tier re-slashes the remaining stake
	// (spec.md §4.4 "Idempotence").
	lastAppliedPercent map[types.ValidatorID]uint64

	records []types.SlashRecord
}

// New constructs an Executor.
func New(params config.Parameters, detector *byzantine.Detector, staking StakingInterface, logger log.Logger, metric *metrics.Metrics) *Executor {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Executor{
		params:             params,
		detector:           detector,
		staking:            staking,
		log:                logger,
		metric:             metric,
		lastAppliedPercent: make(map[types.ValidatorID]uint64),
	}
}

// RunOnce polls the detector's candidate list and executes every
// pending slash. It returns the records produced by this pass; failed
// slashes are skipped (not recorded) and their incident count is left
// untouched so the next RunOnce retries them (spec.md §4.4
// "Execution").
func (e *Executor) RunOnce(blockNumber uint64) []types.SlashRecord {
	candidates := e.detector.Candidates()
	var produced []types.SlashRecord

	for _, c := range candidates {
		rec, slashed := e.executeOne(c, blockNumber)
		if slashed {
			produced = append(produced, rec)
		}
	}
	return produced
}

func (e *Executor) executeOne(c byzantine.Candidate, blockNumber uint64) (types.SlashRecord, bool) {
	pct := e.params.SlashPercentFor(c.IncidentCount)

	e.mu.Lock()
	already := e.lastAppliedPercent[c.Validator]
	e.mu.Unlock()

	if pct <= already {
		// Already slashed at this tier or a higher one.
		return types.SlashRecord{}, false
	}

	stake, ok := e.staking.GetValidatorStake(c.Validator)
	if !ok {
		return types.SlashRecord{}, false
	}

	amount := types.Stake(umath.Min64(uint64(stake), uint64(saturatingPercent(stake, pct))))
	if err := e.staking.SlashValidator(c.Validator, amount); err != nil {
		e.log.Debug("slash failed, will retry", "validator", c.Validator.String(), "err", err)
		return types.SlashRecord{}, false
	}

	e.mu.Lock()
	e.lastAppliedPercent[c.Validator] = pct
	e.mu.Unlock()

	evidenceHash := [32]byte{}
	if rec, ok := e.detector.Record(c.Validator); ok {
		evidenceHash = rec.EvidenceRoot
	}

	reason := types.ReasonConflictingVotes
	if rec, ok := e.detector.Record(c.Validator); ok && len(rec.Reasons) > 0 {
		reason = rec.Reasons[len(rec.Reasons)-1]
	}

	record := types.SlashRecord{
		Validator:    c.Validator,
		Reason:       reason,
		Amount:       amount,
		BlockNumber:  blockNumber,
		EvidenceHash: evidenceHash,
	}

	e.mu.Lock()
	e.records = append(e.records, record)
	e.mu.Unlock()

	if e.metric != nil {
		e.metric.SlashesExecuted.Inc()
		e.metric.SlashedStake.Add(float64(amount))
	}
	e.log.Info("slashed validator", "validator", c.Validator.String(), "percent", pct, "amount", amount)
	return record, true
}

// saturatingPercent computes stake*pct/100 without overflowing
// uint64, using umath.Mul64's overflow detection and falling back to
// the full stake if the multiplication would overflow (a 64-bit
// stake times a percentage in [0,100] essentially never overflows in
// practice, but the fallback keeps the operation total per spec.md
// §9's "error-as-sum-type, no panics in the hot path").
func saturatingPercent(stake types.Stake, pct uint64) types.Stake {
	product, err := umath.Mul64(uint64(stake), pct)
	if err != nil {
		return stake
	}
	return types.Stake(product / 100)
}

// Records returns every slash record produced so far.
func (e *Executor) Records() []types.SlashRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.SlashRecord(nil), e.records...)
}
