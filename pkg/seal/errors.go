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
	"errors"

	"github.com/jeremyhahn/go-bioseal/pkg/credential"
	"github.com/jeremyhahn/go-bioseal/pkg/envelope"
	"github.com/jeremyhahn/go-bioseal/pkg/kdf"
)

// ErrProtectionFailed is the umbrella error for any Protect failure.
// The originating cause is preserved in the wrap chain, so callers can
// test for both:
//
//	errors.Is(err, seal.ErrProtectionFailed) // true for any failure
//	errors.Is(err, credential.ErrUserCancelled) // true when the user declined
var ErrProtectionFailed = errors.New("seal: protection failed")

// errorType maps a pipeline error to its metrics label. Classification
// follows the error taxonomy; unrecognized errors are "internal".
func errorType(err error) string {
	switch {
	case errors.Is(err, credential.ErrUserCancelled):
		return "user_cancelled"
	case errors.Is(err, credential.ErrCredentialUnavailable):
		return "credential_unavailable"
	case errors.Is(err, credential.ErrSigningFailed):
		return "signing_failed"
	case errors.Is(err, kdf.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, envelope.ErrDecryptionFailed):
		return "decryption_failed"
	case errors.Is(err, envelope.ErrEncryptionFailed):
		return "encryption_failed"
	default:
		return "internal"
	}
}
