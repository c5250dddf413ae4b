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

// Package credential defines the capability interface for named,
// hardware-backed signing credentials and the create-if-absent /
// open-if-exists flow used to obtain them.
//
// Determinism contract: implementations MUST use a deterministic
// signature scheme (Ed25519, RSASSA PKCS#1 v1.5). Signing the same
// challenge with the same credential must reproduce the same signature
// bytes across time and process restarts; the derived encryption key is
// recomputed from the signature on every operation, so a randomized
// scheme would make previously protected data permanently
// unrecoverable. ECDSA with a random nonce and RSA-PSS are forbidden.
package credential

import (
	"context"
	"crypto"
	"errors"
)

// Credential is an opaque handle to a named asymmetric key pair held by
// a provider. It outlives any single operation; a given name resolves
// to the same key pair for the lifetime of the backing store unless
// externally revoked.
type Credential interface {
	// Name returns the name the credential was created under.
	Name() string

	// Public returns the credential's public key.
	Public() crypto.PublicKey

	// Sign signs the challenge with the credential's private key. The
	// call may block on a user-presence gate (PIN or biometric prompt).
	// It returns ErrUserCancelled if the user declines the gate and
	// ErrSigningFailed for any other signing failure.
	Sign(ctx context.Context, challenge []byte) ([]byte, error)
}

// Provider supplies named credentials. Implementations are safe for
// concurrent use; whether concurrent Sign calls serialize their
// presence prompts is inherited from the underlying platform.
type Provider interface {
	// Create provisions a new credential under name, failing with
	// ErrCredentialExists if one already exists.
	Create(ctx context.Context, name string) (Credential, error)

	// Open returns the existing credential under name, failing with
	// ErrCredentialNotFound if none exists.
	Open(ctx context.Context, name string) (Credential, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Obtain returns the credential under name, creating it on first use.
// Creation failures other than "already exists" surface as
// ErrCredentialUnavailable. After the first successful creation the
// call is an idempotent open.
func Obtain(ctx context.Context, provider Provider, name string) (Credential, error) {
	cred, err := provider.Create(ctx, name)
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, ErrCredentialExists) {
		return nil, wrapUnavailable(err)
	}
	cred, err = provider.Open(ctx, name)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return cred, nil
}
