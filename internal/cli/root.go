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

// Package cli implements the bioseal command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// flags shared by all commands
var (
	flagConfigFile string
	flagProvider   string
	flagStoreDir   string
	flagCredential string
	flagRequirePIN bool
	flagVerbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bioseal",
	Short: "bioseal CLI - Hardware-gated envelope encryption",
	Long: `bioseal protects byte payloads with an AES-256 key derived from a
hardware-backed signature over a caller-supplied challenge. The signing
key never leaves its provider; the encryption key is recomputed on
every operation and never stored.

Supported providers:
  - software: Ed25519 keys in local storage, optionally PIN-wrapped
  - tpm2:     RSA keys sealed to a TPM 2.0 device`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "",
		"config file (default is $HOME/.bioseal.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "",
		"credential provider (software, tpm2)")
	rootCmd.PersistentFlags().StringVar(&flagStoreDir, "store-dir", "",
		"directory for key blob storage (default is $HOME/.bioseal)")
	rootCmd.PersistentFlags().StringVar(&flagCredential, "credential", "",
		"credential name")
	rootCmd.PersistentFlags().BoolVar(&flagRequirePIN, "pin", false,
		"gate signing operations on a PIN prompt")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(protectCmd)
	rootCmd.AddCommand(unprotectCmd)
	rootCmd.AddCommand(credentialCmd)
	rootCmd.AddCommand(versionCmd)
}

// printVerbose prints a message to stderr if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if flagVerbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] "+format+"\n", args...)
	}
}
