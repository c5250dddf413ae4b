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

//go:build tpm_simulator

package tpm2

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-bioseal/pkg/credential"
	"github.com/jeremyhahn/go-bioseal/pkg/storage"
)

func newSimProvider(t *testing.T, config *Config) *Provider {
	t.Helper()
	if config == nil {
		config = &Config{}
	}
	if config.Storage == nil {
		config.Storage = storage.NewMemory()
	}
	config.UseSimulator = true
	provider, err := NewProvider(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func TestSimulator_CreateAndSign(t *testing.T) {
	provider := newSimProvider(t, nil)
	ctx := context.Background()

	cred, err := provider.Create(ctx, "vault")
	require.NoError(t, err)

	challenge := []byte("challenge bytes")
	signature, err := cred.Sign(ctx, challenge)
	require.NoError(t, err)

	pub, ok := cred.Public().(*rsa.PublicKey)
	require.True(t, ok, "Public() should return an RSA key")
	assert.Equal(t, 2048, pub.N.BitLen())

	digest := sha256.Sum256(challenge)
	err = rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature)
	assert.NoError(t, err, "signature should verify")
}

func TestSimulator_CreateAlreadyExists(t *testing.T) {
	provider := newSimProvider(t, nil)
	ctx := context.Background()

	_, err := provider.Create(ctx, "vault")
	require.NoError(t, err)

	_, err = provider.Create(ctx, "vault")
	assert.ErrorIs(t, err, credential.ErrCredentialExists)
}

func TestSimulator_OpenNotFound(t *testing.T) {
	provider := newSimProvider(t, nil)

	_, err := provider.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, credential.ErrCredentialNotFound)
}

// RSASSA is deterministic: the same challenge must produce identical
// signature bytes across separately opened handles.
func TestSimulator_SignDeterministic(t *testing.T) {
	provider := newSimProvider(t, nil)
	ctx := context.Background()

	created, err := provider.Create(ctx, "vault")
	require.NoError(t, err)
	opened, err := provider.Open(ctx, "vault")
	require.NoError(t, err)

	challenge := []byte("determinism anchor")
	sig1, err := created.Sign(ctx, challenge)
	require.NoError(t, err)
	sig2, err := opened.Sign(ctx, challenge)
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2)
}

func TestSimulator_PINGate(t *testing.T) {
	store := storage.NewMemory()
	provider := newSimProvider(t, &Config{
		Storage:  store,
		Prompter: func(context.Context) (string, error) { return "123456", nil },
	})
	ctx := context.Background()

	cred, err := provider.Create(ctx, "vault")
	require.NoError(t, err)

	_, err = cred.Sign(ctx, []byte("gated"))
	assert.NoError(t, err)
}

func TestSimulator_WrongPIN(t *testing.T) {
	store := storage.NewMemory()
	provider := newSimProvider(t, &Config{
		Storage:  store,
		Prompter: func(context.Context) (string, error) { return "123456", nil },
	})
	ctx := context.Background()

	_, err := provider.Create(ctx, "vault")
	require.NoError(t, err)
	require.NoError(t, provider.Close())

	// Reopen against the same store with the wrong PIN. The TPM
	// rejects the authorization value at Sign time.
	wrongPIN := newSimProvider(t, &Config{
		Storage:  store,
		Prompter: func(context.Context) (string, error) { return "654321", nil },
	})
	cred, err := wrongPIN.Open(ctx, "vault")
	require.NoError(t, err)

	_, err = cred.Sign(ctx, []byte("gated"))
	assert.ErrorIs(t, err, credential.ErrSigningFailed)
	assert.NotErrorIs(t, err, credential.ErrUserCancelled)
}

func TestSimulator_UserCancelled(t *testing.T) {
	provider := newSimProvider(t, &Config{
		Prompter: func(context.Context) (string, error) {
			return "", credential.ErrUserCancelled
		},
	})
	ctx := context.Background()

	cred, err := provider.Create(ctx, "vault")
	// Create also collects the PIN, so cancellation surfaces here.
	if err != nil {
		assert.ErrorIs(t, err, credential.ErrUserCancelled)
		return
	}
	_, err = cred.Sign(ctx, []byte("gated"))
	assert.ErrorIs(t, err, credential.ErrUserCancelled)
}

func TestSimulator_ClosedProvider(t *testing.T) {
	provider := newSimProvider(t, nil)
	ctx := context.Background()

	cred, err := provider.Create(ctx, "vault")
	require.NoError(t, err)
	require.NoError(t, provider.Close())

	_, err = provider.Create(ctx, "other")
	assert.ErrorIs(t, err, credential.ErrProviderClosed)

	_, err = cred.Sign(ctx, []byte("x"))
	assert.ErrorIs(t, err, credential.ErrProviderClosed)
}
