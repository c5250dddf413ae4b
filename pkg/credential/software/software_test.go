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

package software

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-bioseal/pkg/credential"
	"github.com/jeremyhahn/go-bioseal/pkg/storage"
	"github.com/jeremyhahn/go-bioseal/pkg/storage/file"
)

func newProvider(t *testing.T, config *Config) *Provider {
	t.Helper()
	if config.Storage == nil {
		config.Storage = storage.NewMemory()
	}
	provider, err := NewProvider(config)
	if err != nil {
		t.Fatalf("NewProvider() failed: %v", err)
	}
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func TestCreate_And_Sign(t *testing.T) {
	provider := newProvider(t, &Config{})
	ctx := context.Background()

	cred, err := provider.Create(ctx, "vault")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	challenge := []byte("challenge bytes")
	signature, err := cred.Sign(ctx, challenge)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	if len(signature) != ed25519.SignatureSize {
		t.Fatalf("signature length = %d, want %d", len(signature), ed25519.SignatureSize)
	}

	pub, ok := cred.Public().(ed25519.PublicKey)
	if !ok {
		t.Fatal("Public() did not return an Ed25519 key")
	}
	if !ed25519.Verify(pub, challenge, signature) {
		t.Error("signature does not verify")
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	provider := newProvider(t, &Config{})
	ctx := context.Background()

	if _, err := provider.Create(ctx, "vault"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := provider.Create(ctx, "vault"); !errors.Is(err, credential.ErrCredentialExists) {
		t.Errorf("second Create() error = %v, want ErrCredentialExists", err)
	}
}

func TestOpen_NotFound(t *testing.T) {
	provider := newProvider(t, &Config{})

	_, err := provider.Open(context.Background(), "missing")
	if !errors.Is(err, credential.ErrCredentialNotFound) {
		t.Errorf("Open() error = %v, want ErrCredentialNotFound", err)
	}
}

// Signing the same challenge must reproduce the same signature bytes,
// including through a freshly opened handle. Previously protected data
// depends on this.
func TestSign_Deterministic(t *testing.T) {
	provider := newProvider(t, &Config{})
	ctx := context.Background()

	created, err := provider.Create(ctx, "vault")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	opened, err := provider.Open(ctx, "vault")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	challenge := []byte("determinism anchor")
	sig1, err := created.Sign(ctx, challenge)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	sig2, err := opened.Sign(ctx, challenge)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Error("signatures differ across handles for the same challenge")
	}
}

func TestSign_SurvivesProviderRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	challenge := []byte("restart challenge")

	store1, err := file.New(dir)
	if err != nil {
		t.Fatalf("file.New() failed: %v", err)
	}
	provider1, err := NewProvider(&Config{Storage: store1})
	if err != nil {
		t.Fatalf("NewProvider() failed: %v", err)
	}
	cred1, err := provider1.Create(ctx, "vault")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	sig1, err := cred1.Sign(ctx, challenge)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	_ = provider1.Close()
	_ = store1.Close()

	// New provider over the same directory, as after a process restart
	store2, err := file.New(dir)
	if err != nil {
		t.Fatalf("file.New() failed: %v", err)
	}
	provider2, err := NewProvider(&Config{Storage: store2})
	if err != nil {
		t.Fatalf("NewProvider() failed: %v", err)
	}
	defer func() { _ = provider2.Close() }()

	cred2, err := provider2.Open(ctx, "vault")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	sig2, err := cred2.Sign(ctx, challenge)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Error("signature changed across provider restart")
	}
}

func TestSign_PINGate(t *testing.T) {
	provider := newProvider(t, &Config{Prompter: StaticPIN("123456")})
	ctx := context.Background()

	cred, err := provider.Create(ctx, "vault")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if _, err := cred.Sign(ctx, []byte("gated")); err != nil {
		t.Fatalf("Sign() with correct PIN failed: %v", err)
	}
}

func TestSign_WrongPIN(t *testing.T) {
	store := storage.NewMemory()
	createProvider := newProvider(t, &Config{Storage: store, Prompter: StaticPIN("123456")})
	ctx := context.Background()

	if _, err := createProvider.Create(ctx, "vault"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// Same store, wrong PIN at signing time
	signProvider := newProvider(t, &Config{Storage: store, Prompter: StaticPIN("654321")})
	cred, err := signProvider.Open(ctx, "vault")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	_, err = cred.Sign(ctx, []byte("gated"))
	if !errors.Is(err, credential.ErrSigningFailed) {
		t.Errorf("Sign() error = %v, want ErrSigningFailed", err)
	}
	if errors.Is(err, credential.ErrUserCancelled) {
		t.Error("wrong PIN must not classify as user cancellation")
	}
}

func TestSign_UserCancelled(t *testing.T) {
	declined := func(context.Context) (string, error) {
		return "", credential.ErrUserCancelled
	}
	store := storage.NewMemory()
	createProvider := newProvider(t, &Config{Storage: store, Prompter: StaticPIN("123456")})
	ctx := context.Background()

	if _, err := createProvider.Create(ctx, "vault"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	signProvider := newProvider(t, &Config{Storage: store, Prompter: declined})
	cred, err := signProvider.Open(ctx, "vault")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	_, err = cred.Sign(ctx, []byte("gated"))
	if !errors.Is(err, credential.ErrUserCancelled) {
		t.Errorf("Sign() error = %v, want ErrUserCancelled", err)
	}
}

func TestValidateName(t *testing.T) {
	provider := newProvider(t, &Config{})
	ctx := context.Background()

	for _, name := range []string{"", "a/b", `a\b`, "../escape"} {
		if _, err := provider.Create(ctx, name); err == nil {
			t.Errorf("Create(%q) accepted an invalid name", name)
		}
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	if _, err := NewProvider(nil); err == nil {
		t.Error("NewProvider(nil) should fail")
	}
	if _, err := NewProvider(&Config{}); err == nil {
		t.Error("NewProvider() without storage should fail")
	}
}

func TestClosedProvider(t *testing.T) {
	provider := newProvider(t, &Config{})
	ctx := context.Background()

	cred, err := provider.Create(ctx, "vault")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	_ = provider.Close()

	if _, err := provider.Create(ctx, "other"); !errors.Is(err, credential.ErrProviderClosed) {
		t.Errorf("Create() after Close error = %v, want ErrProviderClosed", err)
	}
	if _, err := cred.Sign(ctx, []byte("x")); !errors.Is(err, credential.ErrProviderClosed) {
		t.Errorf("Sign() after Close error = %v, want ErrProviderClosed", err)
	}
}
