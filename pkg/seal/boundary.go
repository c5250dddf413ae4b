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

package seal

import (
	"context"

	"github.com/jeremyhahn/go-bioseal/pkg/logging"
)

// Boundary adapts a Sealer to host environments that cannot consume Go
// errors, such as FFI callers. Operations never return an error: any
// failure yields an empty, non-nil byte slice and the diagnostic is
// written to the log instead. Inputs are copied before use, so callers
// may reuse or mutate their buffers immediately after the call returns.
type Boundary struct {
	sealer *Sealer
	logger *logging.Logger
}

// NewBoundary wraps sealer for byte-in/byte-out callers.
func NewBoundary(sealer *Sealer, logger *logging.Logger) *Boundary {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Boundary{sealer: sealer, logger: logger}
}

// Protect encrypts plaintext under the challenge-derived key. Returns
// an empty slice on any failure, including user cancellation.
func (b *Boundary) Protect(plaintext, challenge []byte) []byte {
	sealed, err := b.sealer.Protect(context.Background(), clone(plaintext), clone(challenge))
	if err != nil {
		b.logger.Errorf("boundary: protect failed: %v", err)
		return []byte{}
	}
	return sealed
}

// Unprotect decrypts a sealed envelope. Returns an empty slice on any
// failure; a wrong challenge, a missing credential, and a corrupted
// envelope are indistinguishable to the caller.
func (b *Boundary) Unprotect(sealed, challenge []byte) []byte {
	plaintext, err := b.sealer.Unprotect(context.Background(), clone(sealed), clone(challenge))
	if err != nil {
		b.logger.Errorf("boundary: unprotect failed: %v", err)
		return []byte{}
	}
	return plaintext
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
