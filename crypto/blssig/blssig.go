// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blssig is the default implementation of crypto.Signer and
// crypto.Verifier, backed by github.com/luxfi/crypto/bls. It is the
// concrete signature scheme ASF validators register their votes and
// block seals under, mirroring the localsigner usage in this
// module's teacher (consensus/beam/engine.go).
package blssig

import (
	"fmt"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/crypto/bls/signer/localsigner"
)

// Signer wraps a localsigner-backed BLS key.
type Signer struct {
	inner  bls.Signer
	pubKey []byte
}

// NewSigner constructs a Signer from a raw BLS secret key.
func NewSigner(secretKey []byte) (*Signer, error) {
	inner, err := localsigner.FromBytes(secretKey)
	if err != nil {
		return nil, fmt.Errorf("blssig: load secret key: %w", err)
	}
	return &Signer{
		inner:  inner,
		pubKey: bls.PublicKeyToCompressedBytes(inner.PublicKey()),
	}, nil
}

// NewRandomSigner generates a fresh BLS key pair, for callers (the
// demo binary, tests) that have no provisioned secret key.
func NewRandomSigner() (*Signer, error) {
	inner, err := localsigner.New()
	if err != nil {
		return nil, fmt.Errorf("blssig: generate signer: %w", err)
	}
	return &Signer{
		inner:  inner,
		pubKey: bls.PublicKeyToCompressedBytes(inner.PublicKey()),
	}, nil
}

// Sign returns a serialized BLS signature over msg.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	sig, err := s.inner.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("blssig: sign: %w", err)
	}
	return bls.SignatureToBytes(sig), nil
}

// PublicKey returns the compressed public key bytes.
func (s *Signer) PublicKey() []byte {
	return s.pubKey
}

// Verifier verifies BLS signatures against compressed public keys.
type Verifier struct{}

// NewVerifier returns the default BLS verifier.
func NewVerifier() *Verifier { return &Verifier{} }

// Verify reports whether sig is a valid BLS signature over msg under
// the compressed public key pubKey.
func (v *Verifier) Verify(pubKey, msg, sig []byte) bool {
	pk, err := bls.PublicKeyFromCompressedBytes(pubKey)
	if err != nil {
		return false
	}
	signature, err := bls.SignatureFromBytes(sig)
	if err != nil {
		return false
	}
	return bls.Verify(pk, signature, msg)
}
