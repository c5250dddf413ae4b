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

// Package software implements a credential.Provider backed by Ed25519
// keys held in a storage backend. Ed25519 signatures are deterministic
// (RFC 8032), satisfying the package credential determinism contract.
//
// When a PINPrompter is configured the private key is wrapped at rest
// with a key derived from the PIN (Argon2id) and AES-256-GCM, and every
// Sign call prompts for the PIN. The wrapped format is:
//
//	[format(1)][salt(32)][nonce(12)][ciphertext+tag]
//
// An unwrapped key is stored as [format(1)][PKCS#8 DER].
package software

import (
	"context"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/jeremyhahn/go-bioseal/pkg/credential"
	"github.com/jeremyhahn/go-bioseal/pkg/logging"
	"github.com/jeremyhahn/go-bioseal/pkg/storage"
)

const (
	// Key blob format markers
	formatPlain   = 0x01
	formatWrapped = 0x02

	// Argon2id parameters for PIN wrapping
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32

	saltSize  = 32
	nonceSize = 12

	keyPrefix = "keys/"
)

// Provider implements credential.Provider with storage-backed Ed25519
// key pairs. Thread-safe: storage access is serialized with a
// read-write mutex.
type Provider struct {
	store    storage.Backend
	prompter PINPrompter
	logger   *logging.Logger
	mu       sync.RWMutex
	closed   bool
}

// NewProvider creates a new software credential provider.
func NewProvider(config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Provider{
		store:    config.Storage,
		prompter: config.Prompter,
		logger:   logger,
	}, nil
}

// Create generates a new Ed25519 credential under name. When a
// prompter is configured the PIN is collected once here and the private
// key is stored wrapped.
func (p *Provider) Create(ctx context.Context, name string) (credential.Credential, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, credential.ErrProviderClosed
	}

	exists, err := p.store.Exists(privKeyID(name))
	if err != nil {
		return nil, fmt.Errorf("software: failed to check credential %q: %w", name, err)
	}
	if exists {
		return nil, credential.ErrCredentialExists
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("software: failed to generate key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("software: failed to encode private key: %w", err)
	}

	blob := append([]byte{formatPlain}, der...)
	if p.prompter != nil {
		pin, err := p.collectPIN(ctx)
		if err != nil {
			return nil, err
		}
		if blob, err = wrapKey(der, pin); err != nil {
			return nil, fmt.Errorf("software: failed to wrap private key: %w", err)
		}
	}

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("software: failed to encode public key: %w", err)
	}

	if err := p.store.Put(privKeyID(name), blob); err != nil {
		return nil, fmt.Errorf("software: failed to store private key: %w", err)
	}
	if err := p.store.Put(pubKeyID(name), pubDER); err != nil {
		return nil, fmt.Errorf("software: failed to store public key: %w", err)
	}

	p.logger.Debugf("software: created credential %q", name)

	return &softwareCredential{provider: p, name: name, public: pub}, nil
}

// Open returns the existing credential under name. The private key is
// not unwrapped here; PIN collection happens at Sign time.
func (p *Provider) Open(_ context.Context, name string) (credential.Credential, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, credential.ErrProviderClosed
	}

	pubDER, err := p.store.Get(pubKeyID(name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, credential.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("software: failed to load credential %q: %w", name, err)
	}

	pubAny, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, fmt.Errorf("software: failed to parse public key: %w", err)
	}
	pub, ok := pubAny.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("software: credential %q is not an Ed25519 key", name)
	}

	return &softwareCredential{provider: p, name: name, public: pub}, nil
}

// Close releases the provider. The storage backend is not closed; the
// caller owns its lifecycle.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// sign loads the private key, passes the presence gate if one is
// configured, and signs the challenge.
func (p *Provider) sign(ctx context.Context, name string, challenge []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, credential.ErrProviderClosed
	}

	blob, err := p.store.Get(privKeyID(name))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load key: %w", credential.ErrSigningFailed, err)
	}
	if len(blob) < 2 {
		return nil, fmt.Errorf("%w: malformed key blob", credential.ErrSigningFailed)
	}

	var der []byte
	switch blob[0] {
	case formatPlain:
		der = blob[1:]
	case formatWrapped:
		pin, err := p.collectPIN(ctx)
		if err != nil {
			return nil, err
		}
		der, err = unwrapKey(blob, pin)
		if err != nil {
			// Wrong PIN and corrupted blob are indistinguishable here
			return nil, fmt.Errorf("%w: %v", credential.ErrSigningFailed, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown key blob format 0x%02x", credential.ErrSigningFailed, blob[0])
	}

	keyAny, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse key: %v", credential.ErrSigningFailed, err)
	}
	priv, ok := keyAny.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an Ed25519 key", credential.ErrSigningFailed)
	}

	signature := ed25519.Sign(priv, challenge)

	for i := range priv {
		priv[i] = 0
	}

	return signature, nil
}

// collectPIN runs the presence gate. A missing prompter for a wrapped
// key is a configuration error, not a cancellation.
func (p *Provider) collectPIN(ctx context.Context) (string, error) {
	if p.prompter == nil {
		return "", fmt.Errorf("%w: PIN required but no prompter configured", credential.ErrSigningFailed)
	}

	pin, err := p.prompter(ctx)
	if err != nil {
		if errors.Is(err, credential.ErrUserCancelled) || errors.Is(err, context.Canceled) {
			return "", credential.ErrUserCancelled
		}
		return "", fmt.Errorf("%w: %v", credential.ErrSigningFailed, err)
	}
	if ctx.Err() != nil {
		return "", credential.ErrUserCancelled
	}
	return pin, nil
}

// softwareCredential is a handle to a stored Ed25519 key pair.
type softwareCredential struct {
	provider *Provider
	name     string
	public   ed25519.PublicKey
}

// Name returns the credential name.
func (c *softwareCredential) Name() string {
	return c.name
}

// Public returns the Ed25519 public key.
func (c *softwareCredential) Public() crypto.PublicKey {
	return c.public
}

// Sign signs the challenge, prompting for the PIN when the stored key
// is wrapped.
func (c *softwareCredential) Sign(ctx context.Context, challenge []byte) ([]byte, error) {
	return c.provider.sign(ctx, c.name, challenge)
}

// wrapKey encrypts a PKCS#8 DER key with a PIN-derived AES-256-GCM key.
func wrapKey(der []byte, pin string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	wrappingKey := argon2.IDKey([]byte(pin), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	block, err := aes.NewCipher(wrappingKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := make([]byte, 0, 1+saltSize+nonceSize+len(der)+aead.Overhead())
	blob = append(blob, formatWrapped)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, der, nil)
	return blob, nil
}

// unwrapKey reverses wrapKey. Fails if the PIN is wrong or the blob is
// corrupted.
func unwrapKey(blob []byte, pin string) ([]byte, error) {
	if len(blob) < 1+saltSize+nonceSize {
		return nil, fmt.Errorf("wrapped key blob too short")
	}
	salt := blob[1 : 1+saltSize]
	nonce := blob[1+saltSize : 1+saltSize+nonceSize]
	ciphertext := blob[1+saltSize+nonceSize:]

	wrappingKey := argon2.IDKey([]byte(pin), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	block, err := aes.NewCipher(wrappingKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	der, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key")
	}
	return der, nil
}

// validateName rejects names that would escape the key prefix.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("software: credential name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("software: invalid credential name %q", name)
	}
	return nil
}

func privKeyID(name string) string {
	return keyPrefix + name + ".priv"
}

func pubKeyID(name string) string {
	return keyPrefix + name + ".pub"
}

// Verify interface compliance at compile time
var _ credential.Provider = (*Provider)(nil)
