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

// Package mocks provides scripted credential.Provider and
// credential.Credential implementations for tests. The default signer
// is deterministic in the challenge, matching the determinism contract
// real providers must satisfy.
package mocks

import (
	"context"
	"crypto"
	"crypto/sha512"
	"sync"

	"github.com/jeremyhahn/go-bioseal/pkg/credential"
)

// SignFunc produces a signature for a challenge.
type SignFunc func(challenge []byte) ([]byte, error)

// DeterministicSigner returns a 64-byte signature derived only from the
// challenge, emulating a deterministic signature scheme.
func DeterministicSigner(challenge []byte) ([]byte, error) {
	digest := sha512.Sum512(challenge)
	return digest[:], nil
}

// FixedSigner returns the same signature regardless of the challenge.
func FixedSigner(signature []byte) SignFunc {
	return func([]byte) ([]byte, error) {
		sig := make([]byte, len(signature))
		copy(sig, signature)
		return sig, nil
	}
}

// FailingSigner always fails with err.
func FailingSigner(err error) SignFunc {
	return func([]byte) ([]byte, error) {
		return nil, err
	}
}

// MockCredential is a scripted credential.Credential.
type MockCredential struct {
	CredName string
	Signer   SignFunc

	mu        sync.Mutex
	signCalls int
}

// Name returns the scripted credential name.
func (m *MockCredential) Name() string {
	return m.CredName
}

// Public returns nil; the mock has no real key pair.
func (m *MockCredential) Public() crypto.PublicKey {
	return nil
}

// Sign invokes the scripted signer.
func (m *MockCredential) Sign(_ context.Context, challenge []byte) ([]byte, error) {
	m.mu.Lock()
	m.signCalls++
	m.mu.Unlock()

	signer := m.Signer
	if signer == nil {
		signer = DeterministicSigner
	}
	return signer(challenge)
}

// SignCalls reports how many times Sign was invoked.
func (m *MockCredential) SignCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signCalls
}

// MockProvider is a scripted credential.Provider backed by an in-memory
// credential table. Create fails with ErrCredentialExists on duplicate
// names, so the obtain flow can be exercised without real hardware.
type MockProvider struct {
	// Signer is installed on credentials created by this provider.
	// Defaults to DeterministicSigner.
	Signer SignFunc

	// CreateErr, when set, is returned by every Create call.
	CreateErr error

	// OpenErr, when set, is returned by every Open call.
	OpenErr error

	mu          sync.Mutex
	credentials map[string]*MockCredential
	createCalls int
	openCalls   int
}

// Create provisions a scripted credential under name.
func (m *MockProvider) Create(_ context.Context, name string) (credential.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.credentials == nil {
		m.credentials = make(map[string]*MockCredential)
	}
	if _, exists := m.credentials[name]; exists {
		return nil, credential.ErrCredentialExists
	}
	cred := &MockCredential{CredName: name, Signer: m.Signer}
	m.credentials[name] = cred
	return cred, nil
}

// Open returns the previously created credential under name.
func (m *MockProvider) Open(_ context.Context, name string) (credential.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openCalls++
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	cred, exists := m.credentials[name]
	if !exists {
		return nil, credential.ErrCredentialNotFound
	}
	return cred, nil
}

// Close is a no-op.
func (m *MockProvider) Close() error {
	return nil
}

// CreateCalls reports how many times Create was invoked.
func (m *MockProvider) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// OpenCalls reports how many times Open was invoked.
func (m *MockProvider) OpenCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCalls
}

// Verify interface compliance at compile time
var (
	_ credential.Provider   = (*MockProvider)(nil)
	_ credential.Credential = (*MockCredential)(nil)
)
