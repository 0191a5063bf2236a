// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crypto defines the abstract signature interfaces the ASF
// core consumes. The core never imports a concrete curve package
// directly (spec.md §1 names "an abstract signature-verification
// interface" as the only cryptographic commitment); crypto/blssig
// supplies the default BLS-backed implementation.
package crypto

// Signer produces a signature over an arbitrary message with a single
// registered key. Implementations must be safe for concurrent use.
type Signer interface {
	// Sign returns a signature over msg.
	Sign(msg []byte) ([]byte, error)
	// PublicKey returns the compressed public key bytes that pair
	// with this signer's private key.
	PublicKey() []byte
}

// Verifier checks a signature against a registered public key. It is
// the interface every vote, certificate and block-seal check in this
// module goes through.
type Verifier interface {
	// Verify reports whether sig is a valid signature over msg under
	// pubKey.
	Verify(pubKey, msg, sig []byte) bool
}
