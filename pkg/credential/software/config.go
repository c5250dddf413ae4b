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
	"context"
	"fmt"

	"github.com/jeremyhahn/go-bioseal/pkg/logging"
	"github.com/jeremyhahn/go-bioseal/pkg/storage"
)

// PINPrompter collects the user's PIN for a presence-gated operation.
// Implementations return credential.ErrUserCancelled when the user
// declines the prompt.
type PINPrompter func(ctx context.Context) (string, error)

// StaticPIN returns a prompter that always supplies pin without user
// interaction. Intended for tests and non-interactive callers.
func StaticPIN(pin string) PINPrompter {
	return func(context.Context) (string, error) {
		return pin, nil
	}
}

// Config contains configuration for the software credential provider.
type Config struct {
	// Storage is the backing store for credential key material. This
	// can be file-based for durable credentials or memory-based for
	// tests and ephemeral use.
	Storage storage.Backend

	// Prompter collects the PIN that gates signing. When set, newly
	// created credentials are PIN-wrapped at rest and every Sign call
	// prompts. When nil, credentials are stored unwrapped and signing
	// is not gated.
	Prompter PINPrompter

	// Logger is the logger instance to use (optional).
	Logger *logging.Logger
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Storage == nil {
		return fmt.Errorf("Storage is required")
	}
	return nil
}
