// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config carries the runtime-configurable constants of the
// ASF consensus core: epoch length, committee size, slash ladder,
// finality-level brackets and slot timing.
package config

import "time"

// SlashTier is one step of the incident-count → stake-percentage
// ladder (spec.md §4.4).
type SlashTier struct {
	MinIncidents uint32
	PercentBurn  uint64 // 0..=100
}

// FinalityBracket is one step of the post-finality certificate-count
// → FinalityLevel step function (spec.md §3). Brackets are evaluated
// in slice order and the last matching bracket wins; the slice is not
// sorted first, so only an ascending slice gives the highest match.
type FinalityBracket struct {
	MinCertificates uint32
	Level           uint8 // types.FinalityLevel, duplicated here to avoid an import cycle
}

// Parameters contains every runtime constant the ASF core consumes.
// The spec's Open Questions direct implementers to treat the slash
// ladder and finality brackets as configured defaults rather than
// hardcoded constants, so every tier lives here instead of in code.
type Parameters struct {
	// Committee / epoch.
	CommitteeSize    uint32
	EpochDuration    uint64 // blocks
	MinValidityStake uint64

	// Byzantine detection / slashing.
	AutoSlashThreshold uint32
	SlashLadder        []SlashTier

	// Finality-level step function.
	FinalityBrackets []FinalityBracket

	// Timing.
	SlotDuration time.Duration

	// Checkpoint-commitment module.
	CheckpointPruneKeepLast uint64
}

// DefaultSlashLadder is the ladder in spec.md §4.4.
func DefaultSlashLadder() []SlashTier {
	return []SlashTier{
		{MinIncidents: 0, PercentBurn: 0},
		{MinIncidents: 3, PercentBurn: 10},
		{MinIncidents: 6, PercentBurn: 25},
		{MinIncidents: 11, PercentBurn: 50},
		{MinIncidents: 21, PercentBurn: 100},
	}
}

// DefaultFinalityBrackets is the step function in spec.md §3.
func DefaultFinalityBrackets() []FinalityBracket {
	return []FinalityBracket{
		{MinCertificates: 0, Level: 1},   // Weak
		{MinCertificates: 10, Level: 2},  // Moderate
		{MinCertificates: 20, Level: 3},  // Strong
		{MinCertificates: 100, Level: 4}, // Irreversible
	}
}

// Mainnet returns production parameters.
func Mainnet() Parameters {
	return Parameters{
		CommitteeSize:           21,
		EpochDuration:           2400,
		MinValidityStake:        1,
		AutoSlashThreshold:      3,
		SlashLadder:             DefaultSlashLadder(),
		FinalityBrackets:        DefaultFinalityBrackets(),
		SlotDuration:            6 * time.Second,
		CheckpointPruneKeepLast: 10_000,
	}
}

// Testnet returns a smaller committee and shorter epoch for faster
// iteration while keeping the same slash/finality semantics.
func Testnet() Parameters {
	p := Mainnet()
	p.CommitteeSize = 9
	p.EpochDuration = 200
	p.CheckpointPruneKeepLast = 1_000
	return p
}

// Local returns parameters for single-process local development. The
// committee size of 4 is the minimum the spec allows the core to
// operate safely with (see spec.md §8 boundary behaviors).
func Local() Parameters {
	p := Mainnet()
	p.CommitteeSize = 4
	p.EpochDuration = 20
	p.SlotDuration = time.Second
	p.CheckpointPruneKeepLast = 100
	return p
}

// SlashPercentFor returns the slash percentage for a given incident
// count by walking the ladder in slice order; the last tier whose
// MinIncidents is at most incidentCount wins, which is the highest
// such tier when the ladder is ascending.
func (p Parameters) SlashPercentFor(incidentCount uint32) uint64 {
	var pct uint64
	for _, tier := range p.SlashLadder {
		if incidentCount >= tier.MinIncidents {
			pct = tier.PercentBurn
		}
	}
	return pct
}

// FinalityLevelFor returns the finality level for a given
// post-finality certificate count.
func (p Parameters) FinalityLevelFor(certCount uint32) uint8 {
	var level uint8
	for _, b := range p.FinalityBrackets {
		if certCount >= b.MinCertificates {
			level = b.Level
		}
	}
	return level
}
