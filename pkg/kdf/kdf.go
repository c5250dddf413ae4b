// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-bioseal.
//
// go-bioseal is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package kdf derives the symmetric encryption key from a credential
// signature. The derivation is a pure function: Key = SHA-256(signature).
// The hash is fixed and non-configurable; changing it would make every
// previously protected blob unrecoverable.
package kdf

import (
	"crypto/sha256"
	"errors"
)

// KeySize is the size in bytes of a derived key (SHA-256 digest length).
const KeySize = sha256.Size

// ErrInvalidSignature indicates the derivation input is empty or missing.
// This is a defensive check; a conforming credential provider never
// returns an empty signature.
var ErrInvalidSignature = errors.New("kdf: invalid signature")

// Derive computes the symmetric key for a credential signature.
// The caller owns the returned key and must not retain it beyond a
// single encrypt or decrypt operation; keys are always re-derived from
// a fresh signature.
func Derive(signature []byte) ([]byte, error) {
	if len(signature) == 0 {
		return nil, ErrInvalidSignature
	}
	digest := sha256.Sum256(signature)
	return digest[:], nil
}

// Zeroize overwrites key material in place. Callers use this to scrub
// a derived key once an operation completes.
func Zeroize(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
