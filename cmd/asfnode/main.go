// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command asfnode is a thin demo binary wiring every ASF core
// component together: the PPFA scheduler, the vote-and-certificate
// state machine, the checkpoint-commitment store, the block-authoring
// worker and the import-pipeline verifier. It runs a single process
// acting as its own entire committee, so it can drive a block all the
// way to Finalized without a network — the same "simulate consensus
// without a network" shape as the teacher's `consensus sim` command.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/etrid/asf/asf"
	"github.com/etrid/asf/authoring"
	"github.com/etrid/asf/checkpoint"
	"github.com/etrid/asf/config"
	"github.com/etrid/asf/crypto"
	"github.com/etrid/asf/crypto/blssig"
	"github.com/etrid/asf/importer"
	"github.com/etrid/asf/log"
	"github.com/etrid/asf/metrics"
	"github.com/etrid/asf/runtimeapi"
	"github.com/etrid/asf/types"
	"github.com/etrid/asf/validators"
	"github.com/etrid/asf/votestore"
)

var rootCmd = &cobra.Command{
	Use:   "asfnode",
	Short: "Ëtrid Adaptive Stake-weighted Finality demo node",
	Long: `asfnode wires up the ASF consensus core — committee scheduling, the
vote-and-certificate state machine, checkpoint commitment, block
authoring and import verification — and runs it as a single
process that plays every committee seat itself, for local
experimentation and parameter tuning.`,
}

func main() {
	rootCmd.AddCommand(runCmd(), checkCmd(), paramsCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func checkCmd() *cobra.Command {
	var preset string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a parameter preset for safety and correctness",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := config.GetParametersByName(preset)
			if err != nil {
				return err
			}
			result := config.NewValidator().ValidateDetailed(params)
			for _, w := range result.Warnings {
				fmt.Printf("warning: %s\n", w.Error())
			}
			for _, e := range result.Errors {
				fmt.Printf("error: %s\n", e.Error())
			}
			if !result.Valid {
				return fmt.Errorf("preset %q failed validation", preset)
			}
			fmt.Printf("preset %q is valid (quorum weight at committee size %d: depends on live stake)\n", preset, params.CommitteeSize)
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "mainnet", "parameter preset: "+fmt.Sprint(config.PresetNames()))
	return cmd
}

func paramsCmd() *cobra.Command {
	var preset string
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the resolved parameters for a preset",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := config.GetParametersByName(preset)
			if err != nil {
				return err
			}
			fmt.Printf("committee_size:     %d\n", params.CommitteeSize)
			fmt.Printf("epoch_duration:     %d blocks\n", params.EpochDuration)
			fmt.Printf("min_validity_stake: %d\n", params.MinValidityStake)
			fmt.Printf("auto_slash_threshold: %d incidents\n", params.AutoSlashThreshold)
			fmt.Printf("slot_duration:      %s\n", params.SlotDuration)
			fmt.Printf("checkpoint_keep_last: %d\n", params.CheckpointPruneKeepLast)
			for _, t := range params.SlashLadder {
				fmt.Printf("  slash tier: >=%d incidents -> burn %d%%\n", t.MinIncidents, t.PercentBurn)
			}
			for _, b := range params.FinalityBrackets {
				fmt.Printf("  finality bracket: >=%d certs -> level %d\n", b.MinCertificates, b.Level)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "mainnet", "parameter preset: "+fmt.Sprint(config.PresetNames()))
	return cmd
}

func runCmd() *cobra.Command {
	var (
		preset      string
		numValidators int
		dataDir     string
		duration    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a demo node that plays its own whole committee until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := config.GetParametersByName(preset)
			if err != nil {
				return err
			}
			if numValidators > 0 {
				params.CommitteeSize = uint32(numValidators)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if duration > 0 {
				var durationCancel context.CancelFunc
				ctx, durationCancel = context.WithTimeout(ctx, duration)
				defer durationCancel()
			}
			return runNode(ctx, params, int(params.CommitteeSize), dataDir)
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "local", "parameter preset: "+fmt.Sprint(config.PresetNames()))
	cmd.Flags().IntVar(&numValidators, "validators", 0, "override the preset's committee size (0 = use preset)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "checkpoint store directory (empty = a temp dir)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 = run until interrupted)")
	return cmd
}

// runNode wires the full stack and drives the authoring/import loop
// until ctx is cancelled.
func runNode(ctx context.Context, params config.Parameters, numValidators int, dataDir string) error {
	logger := log.NewNoOpLogger()
	reg := prometheus.NewRegistry()
	metric, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	if dataDir == "" {
		dataDir, err = os.MkdirTemp("", "asfnode-*")
		if err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		defer os.RemoveAll(dataDir)
	}
	store, err := checkpoint.Open(dataDir, logger, metric)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	active := validators.NewInMemoryActiveSet(types.Stake(params.MinValidityStake))
	signers := make(map[types.ValidatorID]crypto.Signer, numValidators)
	for i := 0; i < numValidators; i++ {
		id, err := randomValidatorID()
		if err != nil {
			return err
		}
		signer, err := blssig.NewRandomSigner()
		if err != nil {
			return fmt.Errorf("generate validator key: %w", err)
		}
		signers[id] = signer
		active.Upsert(types.ValidatorInfo{ID: id, Stake: types.Stake(100), PublicKeyASF: signer.PublicKey()})
	}

	scheduler := validators.New(params, logger, metric)
	scheduler.RebuildCommittee(0, active.ActiveValidators())
	committee := scheduler.CurrentCommittee()
	if committee == nil || committee.Size() == 0 {
		return fmt.Errorf("no committee could be built from %d validators", numValidators)
	}
	localID := committee.Validators[0].ID

	machine := asf.New(asf.Deps{
		Params:   params,
		Lookup:   scheduler,
		Verifier: blssig.NewVerifier(),
		Logger:   logger,
		Metric:   metric,
	})
	api := runtimeapi.New(params, scheduler, active, machine)

	runtime := &localCommitteeRuntime{
		machine:   machine,
		store:     store,
		signers:   signers,
		committee: *committee,
		params:    params,
		log:       logger,
		chainID:   "demo",
	}
	keys := &activeSetKeyResolver{active: active}
	verifier := importer.New(scheduler, keys, blssig.NewVerifier(), runtime, logger, metric)
	sink := &verifierSink{verifier: verifier}

	// The worker ticks at the core's fixed slot duration, not the
	// preset's SlotDuration field — see authoring.SlotDurationMS.
	worker := authoring.New(authoring.DefaultParams(localID), scheduler, &mapKeystore{signers: signers}, sink, logger, metric)

	chain := &chainHead{height: 1}
	nextBlockNumber := chain.blockNumber
	parentHash := chain.parentHash

	go func() {
		ticker := time.NewTicker(params.SlotDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if h, ok := runtime.lastHash(); ok {
					chain.advance(h, runtime.lastNumber()+1)
				}
				printStatus(api, committee, runtime)
			}
		}
	}()

	worker.Run(ctx, nextBlockNumber, parentHash)
	return nil
}

// chainHead is the mutex-guarded (block_number, parent_hash) pair the
// authoring worker reads every tick and the status ticker goroutine in
// runNode advances to the runtime's last imported block.
type chainHead struct {
	mu     sync.Mutex
	height uint64
	parent types.BlockHash
}

func (c *chainHead) advance(parent types.BlockHash, height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parent = parent
	c.height = height
}

func (c *chainHead) blockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *chainHead) parentHash() types.BlockHash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

func printStatus(api *runtimeapi.API, committee *types.Committee, runtime *localCommitteeRuntime) {
	hash, ok := runtime.lastHash()
	if !ok {
		return
	}
	level := api.GetFinalityLevel(hash)
	fmt.Printf("block %d: finality_level=%d certs=%d committee_size=%d\n",
		runtime.lastNumber(), level, api.GetCertificateCount(hash), committee.Size())
}

func randomValidatorID() (types.ValidatorID, error) {
	var id types.ValidatorID
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("generate validator id: %w", err)
	}
	return id, nil
}

// mapKeystore implements authoring.Keystore over a static map of
// locally-held signers — every validator in this demo
// node is "local".
type mapKeystore struct {
	signers map[types.ValidatorID]crypto.Signer
}

func (k *mapKeystore) SignerFor(id types.ValidatorID) (crypto.Signer, bool) {
	s, ok := k.signers[id]
	return s, ok
}

// activeSetKeyResolver implements importer.KeyResolver by scanning the
// active set; fine at demo scale.
type activeSetKeyResolver struct {
	active *validators.InMemoryActiveSet
}

func (k *activeSetKeyResolver) ValidatorKey(id types.ValidatorID) ([]byte, bool) {
	for _, v := range k.active.ActiveValidators() {
		if v.ID == id {
			return v.PublicKeyASF, v.HasASFKey()
		}
	}
	return nil, false
}

// verifierSink adapts importer.Verifier's (header, parentTimestamp) ->
// (Verified, error) shape to authoring.Sink's single-argument Import,
// tracking the previous block's timestamp itself.
type verifierSink struct {
	mu              sync.Mutex
	verifier        *importer.Verifier
	parentTimestamp uint64
}

func (s *verifierSink) Import(ctx context.Context, header authoring.Header) error {
	s.mu.Lock()
	parentTimestamp := s.parentTimestamp
	s.mu.Unlock()

	verified, err := s.verifier.Import(ctx, header, parentTimestamp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.parentTimestamp = verified.Header.Timestamp
	s.mu.Unlock()
	return nil
}

// localCommitteeRuntime implements importer.RuntimeExecutor by acting
// as every committee member at once: on executing a header it signs
// and submits a PreCommit, Commit and Finality vote from every
// validator, driving the block through asf.Machine synchronously, then
// commits the resulting Finality certificate as a checkpoint. This
// mirrors the teacher's local consensus simulator: a stand-in for
// network gossip when there is no real peer set.
type localCommitteeRuntime struct {
	mu        sync.Mutex
	machine   *asf.Machine
	store     *checkpoint.Store
	signers   map[types.ValidatorID]crypto.Signer
	committee types.Committee
	params    config.Parameters
	log       log.Logger
	chainID   string

	lastFinalizedHash   types.BlockHash
	lastFinalizedNumber uint64
	haveFinalized       bool
}

func (r *localCommitteeRuntime) Execute(ctx context.Context, header authoring.Header) error {
	hash := header.Hash()
	epoch := types.Epoch(header.BlockNumber / r.params.EpochDuration)

	for _, phase := range []types.ConsensusPhase{types.PhasePreCommit, types.PhaseCommit, types.PhaseFinality} {
		for _, v := range r.committee.Validators {
			signer, ok := r.signers[v.ID]
			if !ok {
				continue
			}
			vote := types.Vote{
				BlockHash:   hash,
				BlockNumber: header.BlockNumber,
				Phase:       phase,
				Validator:   v.ID,
				StakeWeight: v.Stake,
				Epoch:       epoch,
				Timestamp:   types.Now(),
			}
			sig, err := signer.Sign(votestore.SigningPayload(vote))
			if err != nil {
				return fmt.Errorf("sign vote: %w", err)
			}
			vote.Signature = sig
			if _, err := r.machine.SubmitVote(vote, signer.PublicKey()); err != nil {
				r.log.Debug("vote rejected", "validator", v.ID.String(), "phase", phase.String(), "err", err)
			}
		}
	}

	if r.machine.State(hash) != asf.StateFinalized {
		return nil
	}
	cert, ok := r.machine.Certificates().Get(hash, types.PhaseFinality)
	if !ok {
		return nil
	}

	r.mu.Lock()
	r.lastFinalizedHash = hash
	r.lastFinalizedNumber = header.BlockNumber
	r.haveFinalized = true
	r.mu.Unlock()

	checkpointNumber := types.CheckpointNumber(header.BlockNumber)
	if err := r.store.StoreCertificate(ctx, r.chainID, types.CheckpointCertificate{
		Checkpoint:       checkpointNumber,
		Signers:          cert.Signers,
		AggregatedWeight: cert.AggregatedWeight,
		Timestamp:        types.Now(),
	}); err != nil {
		return fmt.Errorf("store checkpoint certificate: %w", err)
	}
	return r.store.SetLastFinalized(ctx, uint64(checkpointNumber))
}

func (r *localCommitteeRuntime) lastHash() (types.BlockHash, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFinalizedHash, r.haveFinalized
}

func (r *localCommitteeRuntime) lastNumber() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFinalizedNumber
}
