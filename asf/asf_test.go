// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etrid/asf/config"
	"github.com/etrid/asf/types"
)

type fixedCommittee struct{ committee types.Committee }

func (f fixedCommittee) Committee(types.Epoch) (*types.Committee, error) {
	return &f.committee, nil
}

func makeCommittee(n int) types.Committee {
	vs := make([]types.ValidatorInfo, n)
	for i := range vs {
		id := types.ValidatorID{}
		id[31] = byte(i + 1)
		vs[i] = types.ValidatorInfo{ID: id, Stake: 1, InCommittee: true}
	}
	return types.Committee{Epoch: 0, Validators: vs}
}

func voteFrom(committee types.Committee, idx int, hash types.BlockHash, blockNumber uint64, phase types.ConsensusPhase) types.Vote {
	v := committee.Validators[idx]
	return types.Vote{
		BlockHash:   hash,
		BlockNumber: blockNumber,
		Phase:       phase,
		Validator:   v.ID,
		StakeWeight: v.Stake,
		Epoch:       committee.Epoch,
		Timestamp:   1,
	}
}

func newMachine(committee types.Committee) *Machine {
	params := config.Mainnet()
	return New(Deps{Params: params, Lookup: fixedCommittee{committee}})
}

// submitQuorum submits one vote of the given phase on hash from each
// of the first upto committee members.
func submitQuorum(t *testing.T, m *Machine, committee types.Committee, hash types.BlockHash, blockNumber uint64, phase types.ConsensusPhase, upto int) {
	t.Helper()
	for i := 0; i < upto; i++ {
		_, err := m.SubmitVote(voteFrom(committee, i, hash, blockNumber, phase), nil)
		require.NoError(t, err)
	}
}

func TestFullFinalizationPath(t *testing.T) {
	committee := makeCommittee(21)
	m := newMachine(committee)
	hash := types.BlockHash{1}

	require.Equal(t, StateNone, m.State(hash))

	// 15/21 > 2/3 quorum for each phase in turn.
	submitQuorum(t, m, committee, hash, 10, types.PhasePreCommit, 15)
	require.Equal(t, StateCommitting, m.State(hash))

	submitQuorum(t, m, committee, hash, 10, types.PhaseCommit, 15)
	require.Equal(t, StateFinalizing, m.State(hash))

	submitQuorum(t, m, committee, hash, 10, types.PhaseFinality, 15)
	require.Equal(t, StateFinalized, m.State(hash))
	require.Equal(t, types.FinalityWeak, m.FinalityLevel(hash))
}

func TestPreCommitVoteEntersPreCommittingBeforeCertificate(t *testing.T) {
	committee := makeCommittee(21)
	m := newMachine(committee)
	hash := types.BlockHash{1}

	_, err := m.SubmitVote(voteFrom(committee, 0, hash, 5, types.PhasePreCommit), nil)
	require.NoError(t, err)
	require.Equal(t, StatePreCommitting, m.State(hash))
}

func TestCommitVoteBeforePreCommitIsInvalidPhase(t *testing.T) {
	committee := makeCommittee(21)
	m := newMachine(committee)
	hash := types.BlockHash{1}

	_, err := m.SubmitVote(voteFrom(committee, 0, hash, 5, types.PhaseCommit), nil)
	require.Error(t, err)
	var asfErr *types.Error
	require.True(t, errors.As(err, &asfErr))
	require.Equal(t, types.KindInvalidPhaseTransition, asfErr.Kind)

	rec, ok := m.Detector().Record(committee.Validators[0].ID)
	require.True(t, ok)
	require.Equal(t, types.ReasonInvalidPhase, rec.Reasons[0])
}

func TestStalePreCommitVoteAfterCommittingIsRejectedWithoutIncident(t *testing.T) {
	committee := makeCommittee(21)
	m := newMachine(committee)
	hash := types.BlockHash{1}
	submitQuorum(t, m, committee, hash, 10, types.PhasePreCommit, 15)
	require.Equal(t, StateCommitting, m.State(hash))

	_, err := m.SubmitVote(voteFrom(committee, 16, hash, 10, types.PhasePreCommit), nil)
	require.Error(t, err)
	_, ok := m.Detector().Record(committee.Validators[16].ID)
	require.False(t, ok, "a stale-but-honest vote must not itself be an incident")
}

func TestFinalityVotesBeyondCertificateRaiseFinalityLevel(t *testing.T) {
	// 40 validators: quorum = (2*40+2)/3+1 = 28. The remaining 12
	// validators' Finality votes, arriving after the certificate is
	// minted at the 28th signer, still accrue (extra=12 -> Moderate).
	committee := makeCommittee(40)
	m := newMachine(committee)
	hash := types.BlockHash{1}
	submitQuorum(t, m, committee, hash, 10, types.PhasePreCommit, 28)
	submitQuorum(t, m, committee, hash, 10, types.PhaseCommit, 28)
	submitQuorum(t, m, committee, hash, 10, types.PhaseFinality, 28)
	require.Equal(t, types.FinalityWeak, m.FinalityLevel(hash))

	for i := 28; i < 40; i++ {
		_, err := m.SubmitVote(voteFrom(committee, i, hash, 10, types.PhaseFinality), nil)
		require.NoError(t, err)
	}
	require.Equal(t, types.FinalityModerate, m.FinalityLevel(hash), "40 signers total: 12 extra beyond the 28-signer certificate")
}

func TestFalseFinalityAccusesIntersectingSigners(t *testing.T) {
	committee := makeCommittee(21)
	m := newMachine(committee)
	hashA := types.BlockHash{0xA}
	hashB := types.BlockHash{0xB}

	submitQuorum(t, m, committee, hashA, 10, types.PhasePreCommit, 15)
	submitQuorum(t, m, committee, hashA, 10, types.PhaseCommit, 15)
	submitQuorum(t, m, committee, hashA, 10, types.PhaseFinality, 15)
	require.Equal(t, StateFinalized, m.State(hashA))

	submitQuorum(t, m, committee, hashB, 10, types.PhasePreCommit, 15)
	submitQuorum(t, m, committee, hashB, 10, types.PhaseCommit, 15)
	submitQuorum(t, m, committee, hashB, 10, types.PhaseFinality, 15)
	require.Equal(t, StateFinalized, m.State(hashB))

	for i := 0; i < 15; i++ {
		rec, ok := m.Detector().Record(committee.Validators[i].ID)
		require.True(t, ok)
		require.Equal(t, types.ReasonFalseFinality, rec.Reasons[0])
	}
}

func TestVotingOnFinalizedBlockWithNonFinalityPhaseIsRejected(t *testing.T) {
	committee := makeCommittee(21)
	m := newMachine(committee)
	hash := types.BlockHash{1}
	submitQuorum(t, m, committee, hash, 10, types.PhasePreCommit, 15)
	submitQuorum(t, m, committee, hash, 10, types.PhaseCommit, 15)
	submitQuorum(t, m, committee, hash, 10, types.PhaseFinality, 15)

	_, err := m.SubmitVote(voteFrom(committee, 16, hash, 10, types.PhasePreCommit), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrAlreadyFinalized))
}

func TestAbandonDoesNotSlashNonFinalizedSibling(t *testing.T) {
	committee := makeCommittee(21)
	m := newMachine(committee)
	sibling := types.BlockHash{0xC}
	submitQuorum(t, m, committee, sibling, 10, types.PhasePreCommit, 15)
	require.Equal(t, StateCommitting, m.State(sibling))

	m.Abandon(sibling)
	require.Equal(t, StateStalled, m.State(sibling))
	for i := 0; i < 15; i++ {
		_, ok := m.Detector().Record(committee.Validators[i].ID)
		require.False(t, ok, "abandoning a non-finalized sibling must not slash its honest voters")
	}
}
