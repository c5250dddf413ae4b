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

package kdf

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestDerive_FixedSignature(t *testing.T) {
	// 64-byte signature, the size produced by Ed25519
	signature := bytes.Repeat([]byte{0xAB}, 64)

	key, err := Derive(signature)
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	if len(key) != KeySize {
		t.Fatalf("key length = %d, want %d", len(key), KeySize)
	}

	expected := sha256.Sum256(signature)
	if !bytes.Equal(key, expected[:]) {
		t.Error("derived key is not SHA-256 of the signature")
	}
}

func TestDerive_Deterministic(t *testing.T) {
	signature := []byte("same signature bytes every time")

	key1, err := Derive(signature)
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	key2, err := Derive(signature)
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	if !bytes.Equal(key1, key2) {
		t.Error("two derivations of the same signature differ")
	}
}

func TestDerive_DistinctSignatures(t *testing.T) {
	key1, err := Derive([]byte("signature one"))
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	key2, err := Derive([]byte("signature two"))
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	if bytes.Equal(key1, key2) {
		t.Error("different signatures derived the same key")
	}
}

func TestDerive_EmptySignature(t *testing.T) {
	for _, signature := range [][]byte{nil, {}} {
		if _, err := Derive(signature); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Derive(%v) error = %v, want ErrInvalidSignature", signature, err)
		}
	}
}

func TestZeroize(t *testing.T) {
	key := []byte{1, 2, 3, 4}
	Zeroize(key)
	if !bytes.Equal(key, []byte{0, 0, 0, 0}) {
		t.Errorf("Zeroize() left %v", key)
	}
}
