// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etrid/asf/authoring"
	"github.com/etrid/asf/types"
)

type fakeScheduler struct{ authorized bool }

func (f fakeScheduler) IsProposerAuthorized(uint64, types.PpfaIndex, types.ValidatorID) bool {
	return f.authorized
}

type fakeKeys struct{ key []byte }

func (f fakeKeys) ValidatorKey(types.ValidatorID) ([]byte, bool) { return f.key, f.key != nil }

type fakeVerifier struct{ ok bool }

func (f fakeVerifier) Verify([]byte, []byte, []byte) bool { return f.ok }

type fakeRuntime struct{ err error }

func (f fakeRuntime) Execute(context.Context, authoring.Header) error { return f.err }

func validHeader() authoring.Header {
	return authoring.Header{
		BlockNumber:      10,
		Timestamp:        60_000,
		PreRuntimeDigest: authoring.PreRuntimeDigest{Slot: authoring.SlotAt(60_000), PpfaIndex: 3},
		Proposer:         types.ValidatorID{1},
		Seal:             []byte("seal"),
	}
}

func TestImportAcceptsValidBlock(t *testing.T) {
	v := New(fakeScheduler{authorized: true}, fakeKeys{key: []byte("pk")}, fakeVerifier{ok: true}, fakeRuntime{}, nil, nil)
	verified, err := v.Import(context.Background(), validHeader(), 0)
	require.NoError(t, err)
	require.Equal(t, "asf_verified", verified.PostRuntimeDigestID)
}

func TestImportRejectsUnauthorizedProposer(t *testing.T) {
	v := New(fakeScheduler{authorized: false}, fakeKeys{key: []byte("pk")}, fakeVerifier{ok: true}, fakeRuntime{}, nil, nil)
	_, err := v.Import(context.Background(), validHeader(), 0)
	require.Error(t, err)
	var asfErr *types.Error
	require.ErrorAs(t, err, &asfErr)
	require.Equal(t, types.KindProposerUnauthorized, asfErr.Kind)
}

func TestImportRejectsBadSeal(t *testing.T) {
	v := New(fakeScheduler{authorized: true}, fakeKeys{key: []byte("pk")}, fakeVerifier{ok: false}, fakeRuntime{}, nil, nil)
	_, err := v.Import(context.Background(), validHeader(), 0)
	require.Error(t, err)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}

func TestImportRejectsTimestampRegression(t *testing.T) {
	v := New(fakeScheduler{authorized: true}, fakeKeys{key: []byte("pk")}, fakeVerifier{ok: true}, fakeRuntime{}, nil, nil)
	h := validHeader()
	_, err := v.Import(context.Background(), h, h.Timestamp+1)
	require.Error(t, err)
	var asfErr *types.Error
	require.ErrorAs(t, err, &asfErr)
	require.Equal(t, types.KindInvalidSlot, asfErr.Kind)
}

func TestImportRejectsSlotMismatch(t *testing.T) {
	v := New(fakeScheduler{authorized: true}, fakeKeys{key: []byte("pk")}, fakeVerifier{ok: true}, fakeRuntime{}, nil, nil)
	h := validHeader()
	h.PreRuntimeDigest.Slot = h.PreRuntimeDigest.Slot + 1
	_, err := v.Import(context.Background(), h, 0)
	require.Error(t, err)
	var asfErr *types.Error
	require.ErrorAs(t, err, &asfErr)
	require.Equal(t, types.KindInvalidSlot, asfErr.Kind)
}

func TestImportPropagatesRuntimeFailure(t *testing.T) {
	v := New(fakeScheduler{authorized: true}, fakeKeys{key: []byte("pk")}, fakeVerifier{ok: true}, fakeRuntime{err: context.DeadlineExceeded}, nil, nil)
	_, err := v.Import(context.Background(), validHeader(), 0)
	require.Error(t, err)
	var asfErr *types.Error
	require.ErrorAs(t, err, &asfErr)
	require.Equal(t, types.KindRuntimeApi, asfErr.Kind)
}
