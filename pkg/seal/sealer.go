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

// Package seal composes a credential provider, the signature-based key
// derivation, and the self-describing envelope format into a single
// protect/unprotect facade. Protect derives an AES-256 key by signing
// the caller's challenge and hashing the signature, then encrypts the
// plaintext into an envelope; Unprotect reverses the process. Because
// the signature scheme is deterministic, the same credential and
// challenge always reproduce the same key, so no key material is ever
// persisted.
package seal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-bioseal/pkg/credential"
	"github.com/jeremyhahn/go-bioseal/pkg/envelope"
	"github.com/jeremyhahn/go-bioseal/pkg/kdf"
	"github.com/jeremyhahn/go-bioseal/pkg/logging"
	"github.com/jeremyhahn/go-bioseal/pkg/metrics"
)

// DefaultCredentialName is used when Config.CredentialName is empty.
const DefaultCredentialName = "bioseal"

// Config holds the sealer configuration.
type Config struct {
	// Provider supplies the signing credential. Required.
	Provider credential.Provider

	// CredentialName selects the credential within the provider.
	// Defaults to DefaultCredentialName.
	CredentialName string

	// ProviderLabel identifies the provider in logs and metrics, e.g.
	// "software" or "tpm2". Defaults to "unknown".
	ProviderLabel string

	// Logger for operation logging. Defaults to the package default.
	Logger *logging.Logger
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("seal: config cannot be nil")
	}
	if c.Provider == nil {
		return errors.New("seal: credential provider is required")
	}
	return nil
}

// Sealer protects and unprotects byte payloads with a key derived from
// a hardware-gated signature over a caller-supplied challenge. Safe for
// concurrent use; concurrency limits on the presence prompt itself are
// inherited from the provider.
type Sealer struct {
	provider       credential.Provider
	credentialName string
	providerLabel  string
	logger         *logging.Logger
}

// NewSealer creates a Sealer from config.
func NewSealer(config *Config) (*Sealer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	name := config.CredentialName
	if name == "" {
		name = DefaultCredentialName
	}
	label := config.ProviderLabel
	if label == "" {
		label = "unknown"
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Sealer{
		provider:       config.Provider,
		credentialName: name,
		providerLabel:  label,
		logger:         logger,
	}, nil
}

// Protect encrypts plaintext under a key derived from signing challenge
// with the configured credential, creating the credential on first use.
// All failures are wrapped in ErrProtectionFailed; the cause remains
// reachable with errors.Is, so cancellation of the presence prompt can
// still be told apart from a fatal condition.
func (s *Sealer) Protect(ctx context.Context, plaintext, challenge []byte) ([]byte, error) {
	opID := uuid.NewString()
	start := time.Now()
	s.logger.Debug("protect: starting", "op_id", opID, "credential", s.credentialName)

	sealed, err := s.protect(ctx, plaintext, challenge)
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordOperation(metrics.OpProtect, s.providerLabel, metrics.StatusError, duration)
		metrics.RecordError(metrics.OpProtect, s.providerLabel, errorType(err))
		s.logger.Debug("protect: failed", "op_id", opID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrProtectionFailed, err)
	}

	metrics.RecordOperation(metrics.OpProtect, s.providerLabel, metrics.StatusSuccess, duration)
	s.logger.Debug("protect: completed", "op_id", opID, "envelope_bytes", len(sealed))
	return sealed, nil
}

func (s *Sealer) protect(ctx context.Context, plaintext, challenge []byte) ([]byte, error) {
	key, err := s.deriveKey(ctx, challenge)
	if err != nil {
		return nil, err
	}
	defer kdf.Zeroize(key)

	sealed, err := envelope.Seal(key, plaintext)
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

// Unprotect decrypts a sealed envelope using the key re-derived from
// signing the same challenge that was used to protect it. A different
// challenge, a different credential, or a tampered envelope all surface
// as envelope.ErrDecryptionFailed; the cases are intentionally
// indistinguishable.
func (s *Sealer) Unprotect(ctx context.Context, sealed, challenge []byte) ([]byte, error) {
	opID := uuid.NewString()
	start := time.Now()
	s.logger.Debug("unprotect: starting", "op_id", opID, "credential", s.credentialName)

	plaintext, err := s.unprotect(ctx, sealed, challenge)
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordOperation(metrics.OpUnprotect, s.providerLabel, metrics.StatusError, duration)
		metrics.RecordError(metrics.OpUnprotect, s.providerLabel, errorType(err))
		s.logger.Debug("unprotect: failed", "op_id", opID, "error", err)
		return nil, err
	}

	metrics.RecordOperation(metrics.OpUnprotect, s.providerLabel, metrics.StatusSuccess, duration)
	s.logger.Debug("unprotect: completed", "op_id", opID, "plaintext_bytes", len(plaintext))
	return plaintext, nil
}

func (s *Sealer) unprotect(ctx context.Context, sealed, challenge []byte) ([]byte, error) {
	key, err := s.deriveKey(ctx, challenge)
	if err != nil {
		return nil, err
	}
	defer kdf.Zeroize(key)

	plaintext, err := envelope.Open(key, sealed)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// deriveKey obtains the credential, signs the challenge, and hashes the
// signature into an AES-256 key. The signature is zeroized before
// returning; the caller owns zeroizing the key.
func (s *Sealer) deriveKey(ctx context.Context, challenge []byte) ([]byte, error) {
	cred, err := credential.Obtain(ctx, s.provider, s.credentialName)
	if err != nil {
		return nil, err
	}

	signature, err := cred.Sign(ctx, challenge)
	if err != nil {
		if errors.Is(err, credential.ErrUserCancelled) {
			metrics.RecordPrompt(s.providerLabel, metrics.OutcomeCancelled)
			return nil, err
		}
		metrics.RecordPrompt(s.providerLabel, metrics.OutcomeFailed)
		if errors.Is(err, credential.ErrSigningFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", credential.ErrSigningFailed, err)
	}
	metrics.RecordPrompt(s.providerLabel, metrics.OutcomeConfirmed)
	defer kdf.Zeroize(signature)

	key, err := kdf.Derive(signature)
	if err != nil {
		return nil, err
	}
	return key, nil
}
