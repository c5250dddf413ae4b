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
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-bioseal/pkg/credential"
)

// credentialCmd groups credential management commands
var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage signing credentials",
}

// credentialInitCmd provisions the credential ahead of first use
var credentialInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Provision the signing credential",
	Long: `Init creates the signing credential if it does not exist yet. Protect
creates the credential implicitly on first use; init is for
provisioning it ahead of time, for example to collect the PIN during
machine setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		provider, cleanup, err := buildProvider(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cred, err := credential.Obtain(ctx, provider, cfg.Credential.Name)
		if err != nil {
			return err
		}
		fmt.Printf("credential %q ready\n", cred.Name())
		return nil
	},
}

// credentialInfoCmd prints the credential's public key fingerprint
var credentialInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the signing credential's public key fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		provider, cleanup, err := buildProvider(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cred, err := provider.Open(ctx, cfg.Credential.Name)
		if err != nil {
			return err
		}

		der, err := x509.MarshalPKIXPublicKey(cred.Public())
		if err != nil {
			return fmt.Errorf("failed to encode public key: %w", err)
		}
		fingerprint := sha256.Sum256(der)

		fmt.Printf("Credential:  %s\n", cred.Name())
		fmt.Printf("Provider:    %s\n", cfg.Credential.Provider)
		fmt.Printf("Fingerprint: sha256:%x\n", fingerprint)
		return nil
	},
}

func init() {
	credentialCmd.AddCommand(credentialInitCmd)
	credentialCmd.AddCommand(credentialInfoCmd)
}
