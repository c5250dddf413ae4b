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
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	protectIn   string
	protectOut  string
	protectSalt string
)

// protectCmd encrypts a payload under the challenge-derived key
var protectCmd = &cobra.Command{
	Use:   "protect",
	Short: "Encrypt a payload under a hardware-gated key",
	Long: `Protect encrypts a payload with an AES-256 key derived from signing
the given salt with the configured credential. The credential is
created on first use. The sealed envelope is self-describing and can
only be opened by the same credential signing the same salt.`,
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

		plaintext, err := readInput(protectIn)
		if err != nil {
			return err
		}

		printVerbose("protecting %d bytes with credential %q", len(plaintext), cfg.Credential.Name)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sealed, err := sealer.Protect(ctx, plaintext, []byte(protectSalt))
		if err != nil {
			return err
		}
		return writeOutput(protectOut, sealed)
	},
}

func init() {
	protectCmd.Flags().StringVar(&protectIn, "in", "", "input file (default stdin)")
	protectCmd.Flags().StringVar(&protectOut, "out", "", "output file (default stdout)")
	protectCmd.Flags().StringVar(&protectSalt, "salt", "", "challenge salt bound to the envelope")
	_ = protectCmd.MarkFlagRequired("salt")
}

// readInput reads the payload from a file or stdin.
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 - user-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes the result to a file (0600) or stdout.
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write stdout: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
