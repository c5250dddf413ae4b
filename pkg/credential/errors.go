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

package credential

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialUnavailable indicates the platform cannot provide or
	// open the named credential. Fatal; not retried internally.
	ErrCredentialUnavailable = errors.New("credential: unavailable")

	// ErrCredentialExists indicates a credential with the same name
	// already exists. The obtain flow treats this as the signal to fall
	// back to opening the existing credential.
	ErrCredentialExists = errors.New("credential: already exists")

	// ErrCredentialNotFound indicates no credential exists under the
	// requested name.
	ErrCredentialNotFound = errors.New("credential: not found")

	// ErrUserCancelled indicates the user declined the presence gate
	// (PIN/biometric prompt). Recoverable; the caller may retry the
	// whole operation.
	ErrUserCancelled = errors.New("credential: user cancelled")

	// ErrSigningFailed indicates the signing operation failed for a
	// reason other than cancellation. Fatal for this attempt.
	ErrSigningFailed = errors.New("credential: signing failed")

	// ErrProviderClosed indicates the provider has been closed.
	ErrProviderClosed = errors.New("credential: provider is closed")
)

// wrapUnavailable classifies a create/open failure as
// ErrCredentialUnavailable while preserving the cause.
func wrapUnavailable(err error) error {
	if errors.Is(err, ErrCredentialUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
}
