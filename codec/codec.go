// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package codec implements the deterministic binary encoding used
// for every wire and storage representation in this module
// (spec.md §6: "field order is the order declared in §3"). Encoding is
// versioned so the storage layer can evolve the wire format without
// breaking already-written records.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/etrid/asf/types"
)

// Version identifies the wire-format revision a blob was encoded
// with.
type Version uint16

// CurrentVersion is the version this package encodes with.
const CurrentVersion Version = 0

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func readFixed(r *bytes.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// EncodeVote encodes a Vote in the field order declared in spec.md §3.
func EncodeVote(v types.Vote) []byte {
	buf := new(bytes.Buffer)
	putUint32(buf, uint32(CurrentVersion))
	buf.Write(v.BlockHash[:])
	putUint64(buf, v.BlockNumber)
	buf.WriteByte(byte(v.Phase))
	buf.Write(v.Validator[:])
	putUint64(buf, uint64(v.StakeWeight))
	putUint64(buf, uint64(v.Epoch))
	putUint64(buf, v.Timestamp)
	putBytes(buf, v.Signature)
	return buf.Bytes()
}

// DecodeVote decodes a Vote previously produced by EncodeVote.
func DecodeVote(data []byte) (types.Vote, error) {
	var v types.Vote
	r := bytes.NewReader(data)
	ver, err := readUint32(r)
	if err != nil {
		return v, fmt.Errorf("codec: read version: %w", err)
	}
	if Version(ver) != CurrentVersion {
		return v, fmt.Errorf("codec: unsupported vote version %d", ver)
	}
	blockHash, err := readFixed(r, 32)
	if err != nil {
		return v, err
	}
	copy(v.BlockHash[:], blockHash)
	if v.BlockNumber, err = readUint64(r); err != nil {
		return v, err
	}
	phase, err := r.ReadByte()
	if err != nil {
		return v, err
	}
	v.Phase = types.ConsensusPhase(phase)
	validator, err := readFixed(r, 32)
	if err != nil {
		return v, err
	}
	copy(v.Validator[:], validator)
	weight, err := readUint64(r)
	if err != nil {
		return v, err
	}
	v.StakeWeight = types.Stake(weight)
	epoch, err := readUint64(r)
	if err != nil {
		return v, err
	}
	v.Epoch = types.Epoch(epoch)
	if v.Timestamp, err = readUint64(r); err != nil {
		return v, err
	}
	if v.Signature, err = readBytes(r); err != nil {
		return v, err
	}
	return v, nil
}

// EncodeCertificate encodes a Certificate.
func EncodeCertificate(c types.Certificate) []byte {
	buf := new(bytes.Buffer)
	putUint32(buf, uint32(CurrentVersion))
	buf.Write(c.BlockHash[:])
	buf.WriteByte(byte(c.Phase))
	putUint32(buf, uint32(len(c.Signers)))
	for _, s := range c.Signers {
		buf.Write(s[:])
	}
	putUint64(buf, uint64(c.AggregatedWeight))
	putUint64(buf, uint64(c.Epoch))
	putUint64(buf, c.Timestamp)
	return buf.Bytes()
}

// DecodeCertificate decodes a Certificate previously produced by
// EncodeCertificate.
func DecodeCertificate(data []byte) (types.Certificate, error) {
	var c types.Certificate
	r := bytes.NewReader(data)
	ver, err := readUint32(r)
	if err != nil {
		return c, err
	}
	if Version(ver) != CurrentVersion {
		return c, fmt.Errorf("codec: unsupported certificate version %d", ver)
	}
	blockHash, err := readFixed(r, 32)
	if err != nil {
		return c, err
	}
	copy(c.BlockHash[:], blockHash)
	phase, err := r.ReadByte()
	if err != nil {
		return c, err
	}
	c.Phase = types.ConsensusPhase(phase)
	n, err := readUint32(r)
	if err != nil {
		return c, err
	}
	c.Signers = make([]types.ValidatorID, n)
	for i := range c.Signers {
		b, err := readFixed(r, 32)
		if err != nil {
			return c, err
		}
		copy(c.Signers[i][:], b)
	}
	weight, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.AggregatedWeight = types.Stake(weight)
	epoch, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.Epoch = types.Epoch(epoch)
	if c.Timestamp, err = readUint64(r); err != nil {
		return c, err
	}
	return c, nil
}

// EncodeCheckpointSignature encodes a CheckpointSignature.
func EncodeCheckpointSignature(s types.CheckpointSignature) []byte {
	buf := new(bytes.Buffer)
	putUint32(buf, uint32(CurrentVersion))
	buf.Write(s.Validator[:])
	putUint64(buf, uint64(s.Checkpoint))
	buf.Write(s.BlockHash[:])
	putUint64(buf, uint64(s.AuthoritySetID))
	putBytes(buf, s.Signature)
	putUint64(buf, s.Timestamp)
	return buf.Bytes()
}

// DecodeCheckpointSignature decodes a CheckpointSignature previously
// produced by EncodeCheckpointSignature.
func DecodeCheckpointSignature(data []byte) (types.CheckpointSignature, error) {
	var s types.CheckpointSignature
	r := bytes.NewReader(data)
	ver, err := readUint32(r)
	if err != nil {
		return s, err
	}
	if Version(ver) != CurrentVersion {
		return s, fmt.Errorf("codec: unsupported checkpoint signature version %d", ver)
	}
	validator, err := readFixed(r, 32)
	if err != nil {
		return s, err
	}
	copy(s.Validator[:], validator)
	checkpoint, err := readUint64(r)
	if err != nil {
		return s, err
	}
	s.Checkpoint = types.CheckpointNumber(checkpoint)
	blockHash, err := readFixed(r, 32)
	if err != nil {
		return s, err
	}
	copy(s.BlockHash[:], blockHash)
	authSet, err := readUint64(r)
	if err != nil {
		return s, err
	}
	s.AuthoritySetID = types.AuthoritySetID(authSet)
	if s.Signature, err = readBytes(r); err != nil {
		return s, err
	}
	if s.Timestamp, err = readUint64(r); err != nil {
		return s, err
	}
	return s, nil
}

// EncodeCheckpointCertificate encodes a CheckpointCertificate.
func EncodeCheckpointCertificate(c types.CheckpointCertificate) []byte {
	buf := new(bytes.Buffer)
	putUint32(buf, uint32(CurrentVersion))
	putUint64(buf, uint64(c.Checkpoint))
	putUint32(buf, uint32(len(c.Signers)))
	for _, s := range c.Signers {
		buf.Write(s[:])
	}
	putUint64(buf, uint64(c.AggregatedWeight))
	putUint64(buf, c.Timestamp)
	return buf.Bytes()
}

// DecodeCheckpointCertificate decodes a CheckpointCertificate
// previously produced by EncodeCheckpointCertificate.
func DecodeCheckpointCertificate(data []byte) (types.CheckpointCertificate, error) {
	var c types.CheckpointCertificate
	r := bytes.NewReader(data)
	ver, err := readUint32(r)
	if err != nil {
		return c, err
	}
	if Version(ver) != CurrentVersion {
		return c, fmt.Errorf("codec: unsupported checkpoint certificate version %d", ver)
	}
	checkpoint, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.Checkpoint = types.CheckpointNumber(checkpoint)
	n, err := readUint32(r)
	if err != nil {
		return c, err
	}
	c.Signers = make([]types.ValidatorID, n)
	for i := range c.Signers {
		b, err := readFixed(r, 32)
		if err != nil {
			return c, err
		}
		copy(c.Signers[i][:], b)
	}
	weight, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.AggregatedWeight = types.Stake(weight)
	if c.Timestamp, err = readUint64(r); err != nil {
		return c, err
	}
	return c, nil
}
