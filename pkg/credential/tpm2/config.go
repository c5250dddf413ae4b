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

package tpm2

import (
	"context"
	"errors"

	"github.com/google/go-tpm/tpm2/transport"

	"github.com/jeremyhahn/go-bioseal/pkg/logging"
	"github.com/jeremyhahn/go-bioseal/pkg/storage"
)

// DefaultDevice is the kernel TPM resource manager device.
const DefaultDevice = "/dev/tpmrm0"

// PINPrompter collects the credential PIN from the user. Returning
// credential.ErrUserCancelled (or a context cancellation error)
// classifies the failure as a user cancellation rather than a signing
// failure.
type PINPrompter func(ctx context.Context) (string, error)

// Config holds the TPM credential provider configuration.
type Config struct {
	// Storage persists the wrapped key blobs. Required. The blobs are
	// TPM-encrypted; storage only needs to be durable, not secret.
	Storage storage.Backend

	// Device is the TPM character device path. Defaults to
	// DefaultDevice. Ignored when Transport or UseSimulator is set.
	Device string

	// UseSimulator runs against a software TPM simulator instead of a
	// hardware device. Development and CI only.
	UseSimulator bool

	// Transport overrides device opening with a caller-supplied
	// transport. The caller owns its lifecycle.
	Transport transport.TPM

	// Prompter, when set, gates every Sign call on a PIN that becomes
	// the key's TPM user authorization value.
	Prompter PINPrompter

	// Logger for provider logging. Defaults to the package default.
	Logger *logging.Logger
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("tpm2: config cannot be nil")
	}
	if c.Storage == nil {
		return errors.New("tpm2: storage backend is required")
	}
	return nil
}

// DefaultLogger returns the logger from config, falling back to the
// package default.
func (c *Config) DefaultLogger() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.DefaultLogger()
}
