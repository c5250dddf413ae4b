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

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/jeremyhahn/go-bioseal/internal/config"
	"github.com/jeremyhahn/go-bioseal/pkg/credential"
	"github.com/jeremyhahn/go-bioseal/pkg/credential/software"
	tpmprovider "github.com/jeremyhahn/go-bioseal/pkg/credential/tpm2"
	"github.com/jeremyhahn/go-bioseal/pkg/logging"
	"github.com/jeremyhahn/go-bioseal/pkg/metrics"
	"github.com/jeremyhahn/go-bioseal/pkg/seal"
	"github.com/jeremyhahn/go-bioseal/pkg/storage/file"
)

// loadConfig loads the YAML configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	path := flagConfigFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".bioseal.yaml")
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flagProvider != "" {
		cfg.Credential.Provider = flagProvider
	}
	if flagStoreDir != "" {
		cfg.Storage.Dir = flagStoreDir
	}
	if flagCredential != "" {
		cfg.Credential.Name = flagCredential
	}
	if flagRequirePIN {
		cfg.Credential.RequirePIN = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildProvider wires storage and the configured credential provider.
// The returned cleanup releases the provider and storage backend.
func buildProvider(cfg *config.Config) (credential.Provider, func(), error) {
	logger := logging.NewLogger(cfg.Logging.Debug || flagVerbose)
	metrics.SetEnabled(cfg.Metrics.Enabled)

	storeDir, err := cfg.StoreDir()
	if err != nil {
		return nil, nil, err
	}
	store, err := file.New(storeDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open key storage: %w", err)
	}

	var prompter func(ctx context.Context) (string, error)
	if cfg.Credential.RequirePIN {
		prompter = terminalPrompter
	}

	var provider credential.Provider
	switch strings.ToLower(cfg.Credential.Provider) {
	case config.ProviderSoftware:
		provider, err = software.NewProvider(&software.Config{
			Storage:  store,
			Prompter: prompter,
			Logger:   logger,
		})
	case config.ProviderTPM2:
		provider, err = tpmprovider.NewProvider(&tpmprovider.Config{
			Storage:      store,
			Device:       cfg.TPM.Device,
			UseSimulator: cfg.TPM.UseSimulator,
			Prompter:     prompter,
			Logger:       logger,
		})
	default:
		err = fmt.Errorf("unknown provider: %s", cfg.Credential.Provider)
	}
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = provider.Close()
		_ = store.Close()
	}
	return provider, cleanup, nil
}

// buildSealer wires a sealer on top of buildProvider. The returned
// cleanup releases the provider and storage backend.
func buildSealer(cfg *config.Config) (*seal.Sealer, func(), error) {
	provider, cleanup, err := buildProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	sealer, err := seal.NewSealer(&seal.Config{
		Provider:       provider,
		CredentialName: cfg.Credential.Name,
		ProviderLabel:  strings.ToLower(cfg.Credential.Provider),
		Logger:         logging.NewLogger(cfg.Logging.Debug || flagVerbose),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return sealer, cleanup, nil
}

// terminalPrompter reads the PIN from the controlling terminal without
// echo. Stdin may be carrying payload data, so the prompt goes to
// /dev/tty directly.
func terminalPrompter(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", credential.ErrUserCancelled
	}

	tty, err := os.Open("/dev/tty")
	if err != nil {
		return "", fmt.Errorf("failed to open terminal for PIN entry: %w", err)
	}
	defer func() { _ = tty.Close() }()

	fmt.Fprint(os.Stderr, "PIN: ")
	pin, err := term.ReadPassword(int(tty.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	return string(pin), nil
}
