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

// Package tpm2 implements a credential.Provider backed by TPM 2.0
// hardware. Keys are RSA-2048 children of a transient Storage Root Key
// and sign with RSASSA PKCS#1 v1.5 over SHA-256, which is deterministic
// and therefore satisfies the package credential determinism contract.
// The private portion never leaves the TPM; storage holds only the
// TPM-wrapped duplication blobs.
//
// When a PINPrompter is configured the PIN becomes the key's TPM user
// authorization value, so the gate is enforced by the chip rather than
// by this package.
package tpm2

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/go-tpm-tools/simulator"
	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"

	"github.com/jeremyhahn/go-bioseal/pkg/credential"
	"github.com/jeremyhahn/go-bioseal/pkg/logging"
	"github.com/jeremyhahn/go-bioseal/pkg/storage"
)

const (
	keyPrefix = "keys/"

	// Fixed simulator seed so the simulated SRK is stable across
	// restarts. Stored blobs would otherwise fail to load into a
	// freshly seeded simulator.
	simulatorSeed = 1234567890
)

// signingKeyTemplate is the public area for credentials created by this
// provider. Unrestricted RSA-2048 signing key, RSASSA over SHA-256,
// gated by the key's user authorization value.
var signingKeyTemplate = tpm2.TPMTPublic{
	Type:    tpm2.TPMAlgRSA,
	NameAlg: tpm2.TPMAlgSHA256,
	ObjectAttributes: tpm2.TPMAObject{
		FixedTPM:            true,
		FixedParent:         true,
		SensitiveDataOrigin: true,
		UserWithAuth:        true,
		SignEncrypt:         true,
	},
	Parameters: tpm2.NewTPMUPublicParms(
		tpm2.TPMAlgRSA,
		&tpm2.TPMSRSAParms{
			Scheme: tpm2.TPMTRSAScheme{
				Scheme: tpm2.TPMAlgRSASSA,
				Details: tpm2.NewTPMUAsymScheme(
					tpm2.TPMAlgRSASSA,
					&tpm2.TPMSSigSchemeRSASSA{
						HashAlg: tpm2.TPMAlgSHA256,
					},
				),
			},
			KeyBits: 2048,
		},
	),
}

// Provider implements credential.Provider against a TPM 2.0 device or
// simulator. TPM command traffic is serialized with a mutex; the chip
// processes one command at a time anyway.
type Provider struct {
	store     storage.Backend
	transport transport.TPM
	closer    io.Closer
	prompter  PINPrompter
	logger    *logging.Logger

	mu        sync.Mutex
	closed    bool
	srkHandle tpm2.TPMHandle
	srkName   tpm2.TPM2BName
	srkLoaded bool
}

// NewProvider opens the TPM and returns a credential provider backed by
// it. The Storage Root Key is created lazily on first use.
func NewProvider(config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := config.DefaultLogger()

	tpmTransport, closer, err := openTransport(config, logger)
	if err != nil {
		return nil, err
	}

	return &Provider{
		store:     config.Storage,
		transport: tpmTransport,
		closer:    closer,
		prompter:  config.Prompter,
		logger:    logger,
	}, nil
}

// openTransport brings up the TPM connection: injected transport,
// simulator, or character device, in that order of preference.
func openTransport(config *Config, logger *logging.Logger) (transport.TPM, io.Closer, error) {
	if config.Transport != nil {
		logger.Debug("tpm2: using injected transport")
		return config.Transport, nil, nil
	}

	if config.UseSimulator {
		logger.Info("tpm2: opening TPM simulator")
		sim, err := simulator.GetWithFixedSeedInsecure(simulatorSeed)
		if err != nil {
			return nil, nil, fmt.Errorf("tpm2: failed to open simulator: %w", err)
		}
		return transport.FromReadWriter(sim), sim, nil
	}

	device := config.Device
	if device == "" {
		device = DefaultDevice
	}
	logger.Info("tpm2: opening TPM device", "device", device)
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrOpeningDevice, device, err)
	}
	return transport.FromReadWriter(f), f, nil
}

// ensureSRK creates the transient Storage Root Key on first use. Caller
// must hold p.mu.
func (p *Provider) ensureSRK() error {
	if p.srkLoaded {
		return nil
	}

	rsp, err := tpm2.CreatePrimary{
		PrimaryHandle: tpm2.AuthHandle{
			Handle: tpm2.TPMRHOwner,
			Auth:   tpm2.PasswordAuth(nil),
		},
		InPublic: tpm2.New2B(tpm2.RSASRKTemplate),
	}.Execute(p.transport)
	if err != nil {
		return fmt.Errorf("tpm2: failed to create SRK: %w", err)
	}

	p.srkHandle = rsp.ObjectHandle
	p.srkName = rsp.Name
	p.srkLoaded = true
	p.logger.Debugf("tpm2: SRK created at 0x%x", rsp.ObjectHandle)
	return nil
}

// Create provisions a new RSA signing credential under name. When a
// prompter is configured the PIN is collected once here and installed
// as the key's TPM user authorization value.
func (p *Provider) Create(ctx context.Context, name string) (credential.Credential, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, credential.ErrProviderClosed
	}

	exists, err := p.store.Exists(privBlobID(name))
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to check credential %q: %w", name, err)
	}
	if exists {
		return nil, credential.ErrCredentialExists
	}

	if err := p.ensureSRK(); err != nil {
		return nil, err
	}

	var userAuth []byte
	if p.prompter != nil {
		pin, err := p.collectPIN(ctx)
		if err != nil {
			return nil, err
		}
		userAuth = []byte(pin)
	}

	rsp, err := tpm2.Create{
		ParentHandle: tpm2.AuthHandle{
			Handle: p.srkHandle,
			Name:   p.srkName,
			Auth:   tpm2.PasswordAuth(nil),
		},
		InPublic: tpm2.New2B(signingKeyTemplate),
		InSensitive: tpm2.TPM2BSensitiveCreate{
			Sensitive: &tpm2.TPMSSensitiveCreate{
				UserAuth: tpm2.TPM2BAuth{
					Buffer: userAuth,
				},
			},
		},
	}.Execute(p.transport)
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to create key: %w", err)
	}

	if err := p.store.Put(privBlobID(name), tpm2.Marshal(rsp.OutPrivate)); err != nil {
		return nil, fmt.Errorf("tpm2: failed to store private blob: %w", err)
	}
	if err := p.store.Put(pubBlobID(name), tpm2.Marshal(rsp.OutPublic)); err != nil {
		return nil, fmt.Errorf("tpm2: failed to store public blob: %w", err)
	}

	pub, err := parseRSAPublic(tpm2.Marshal(rsp.OutPublic))
	if err != nil {
		return nil, err
	}

	p.logger.Debugf("tpm2: created credential %q", name)

	return &tpmCredential{provider: p, name: name, public: pub}, nil
}

// Open returns the existing credential under name.
func (p *Provider) Open(_ context.Context, name string) (credential.Credential, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, credential.ErrProviderClosed
	}

	pubBlob, err := p.store.Get(pubBlobID(name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, credential.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("tpm2: failed to load credential %q: %w", name, err)
	}

	pub, err := parseRSAPublic(pubBlob)
	if err != nil {
		return nil, err
	}

	return &tpmCredential{provider: p, name: name, public: pub}, nil
}

// Close flushes the SRK and releases the TPM connection.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.srkLoaded {
		_, _ = tpm2.FlushContext{FlushHandle: p.srkHandle}.Execute(p.transport)
		p.srkLoaded = false
	}
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// sign loads the key under the SRK, passes the presence gate, and signs
// SHA-256(challenge) with RSASSA. The key is flushed before returning.
func (p *Provider) sign(ctx context.Context, name string, challenge []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, credential.ErrProviderClosed
	}

	privBlob, err := p.store.Get(privBlobID(name))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load private blob: %w", credential.ErrSigningFailed, err)
	}
	pubBlob, err := p.store.Get(pubBlobID(name))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load public blob: %w", credential.ErrSigningFailed, err)
	}

	private, err := tpm2.Unmarshal[tpm2.TPM2BPrivate](privBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyBlob, err)
	}
	public, err := tpm2.Unmarshal[tpm2.TPM2BPublic](pubBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyBlob, err)
	}

	if err := p.ensureSRK(); err != nil {
		return nil, err
	}

	loadRsp, err := tpm2.Load{
		ParentHandle: tpm2.AuthHandle{
			Handle: p.srkHandle,
			Name:   p.srkName,
			Auth:   tpm2.PasswordAuth(nil),
		},
		InPrivate: *private,
		InPublic:  *public,
	}.Execute(p.transport)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load key: %v", ErrInvalidKeyBlob, err)
	}
	defer func() {
		_, _ = tpm2.FlushContext{FlushHandle: loadRsp.ObjectHandle}.Execute(p.transport)
	}()

	var userAuth []byte
	if p.prompter != nil {
		pin, err := p.collectPIN(ctx)
		if err != nil {
			return nil, err
		}
		userAuth = []byte(pin)
	}

	digest := sha256.Sum256(challenge)

	signRsp, err := tpm2.Sign{
		KeyHandle: tpm2.AuthHandle{
			Handle: loadRsp.ObjectHandle,
			Name:   loadRsp.Name,
			Auth:   tpm2.PasswordAuth(userAuth),
		},
		Digest: tpm2.TPM2BDigest{
			Buffer: digest[:],
		},
		InScheme: tpm2.TPMTSigScheme{
			Scheme: tpm2.TPMAlgRSASSA,
			Details: tpm2.NewTPMUSigScheme(
				tpm2.TPMAlgRSASSA, &tpm2.TPMSSchemeHash{
					HashAlg: tpm2.TPMAlgSHA256,
				}),
		},
		Validation: tpm2.TPMTTKHashCheck{
			Tag:       tpm2.TPMSTHashCheck,
			Hierarchy: tpm2.TPMRHNull,
		},
	}.Execute(p.transport)
	if err != nil {
		// Wrong PIN surfaces here as TPM_RC_AUTH_FAIL
		return nil, fmt.Errorf("%w: %v", credential.ErrSigningFailed, err)
	}

	rsaSig, err := signRsp.Signature.Signature.RSASSA()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", credential.ErrSigningFailed, err)
	}
	return rsaSig.Sig.Buffer, nil
}

// collectPIN runs the presence gate. A missing prompter for a gated key
// is a configuration error, not a cancellation.
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

// tpmCredential is a handle to a stored TPM key pair.
type tpmCredential struct {
	provider *Provider
	name     string
	public   *rsa.PublicKey
}

// Name returns the credential name.
func (c *tpmCredential) Name() string {
	return c.name
}

// Public returns the RSA public key.
func (c *tpmCredential) Public() crypto.PublicKey {
	return c.public
}

// Sign signs the challenge inside the TPM, prompting for the PIN when
// one is configured.
func (c *tpmCredential) Sign(ctx context.Context, challenge []byte) ([]byte, error) {
	return c.provider.sign(ctx, c.name, challenge)
}

// parseRSAPublic extracts the rsa.PublicKey from a marshaled
// TPM2BPublic blob.
func parseRSAPublic(pubBlob []byte) (*rsa.PublicKey, error) {
	public, err := tpm2.Unmarshal[tpm2.TPM2BPublic](pubBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyBlob, err)
	}
	contents, err := public.Contents()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyBlob, err)
	}
	if contents.Type != tpm2.TPMAlgRSA {
		return nil, ErrNotRSAKey
	}
	rsaDetail, err := contents.Parameters.RSADetail()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRSAKey, err)
	}
	rsaUnique, err := contents.Unique.RSA()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRSAKey, err)
	}
	pub, err := tpm2.RSAPub(rsaDetail, rsaUnique)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRSAKey, err)
	}
	return pub, nil
}

// validateName rejects names that would escape the key prefix.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("tpm2: credential name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("tpm2: invalid credential name %q", name)
	}
	return nil
}

func privBlobID(name string) string {
	return keyPrefix + name + ".priv"
}

func pubBlobID(name string) string {
	return keyPrefix + name + ".pub"
}

// Verify interface compliance at compile time
var _ credential.Provider = (*Provider)(nil)
