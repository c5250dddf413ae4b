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
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	unprotectIn   string
	unprotectOut  string
	unprotectSalt string
)

// unprotectCmd decrypts a sealed envelope
var unprotectCmd = &cobra.Command{
	Use:   "unprotect",
	Short: "Decrypt a sealed envelope",
	Long: `Unprotect decrypts an envelope produced by protect. The same
credential must sign the same salt; a wrong salt, a different
credential, or a tampered envelope all fail identically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sealer, cleanup, err := buildSealer(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		sealed, err := readInput(unprotectIn)
		if err != nil {
			return err
		}

		printVerbose("unprotecting %d bytes with credential %q", len(sealed), cfg.Credential.Name)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		plaintext, err := sealer.Unprotect(ctx, sealed, []byte(unprotectSalt))
		if err != nil {
			return err
		}
		return writeOutput(unprotectOut, plaintext)
	},
}

func init() {
	unprotectCmd.Flags().StringVar(&unprotectIn, "in", "", "input file (default stdin)")
	unprotectCmd.Flags().StringVar(&unprotectOut, "out", "", "output file (default stdout)")
	unprotectCmd.Flags().StringVar(&unprotectSalt, "salt", "", "challenge salt the envelope was bound to")
	_ = unprotectCmd.MarkFlagRequired("salt")
}
