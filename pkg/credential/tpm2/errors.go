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

import "errors"

var (
	// ErrOpeningDevice is returned when the TPM device cannot be opened
	ErrOpeningDevice = errors.New("tpm2: failed to open TPM device")

	// ErrInvalidKeyBlob is returned when a stored key blob cannot be
	// parsed or loaded into the TPM
	ErrInvalidKeyBlob = errors.New("tpm2: invalid key blob")

	// ErrNotRSAKey is returned when a stored public area is not an RSA
	// signing key
	ErrNotRSAKey = errors.New("tpm2: stored credential is not an RSA key")
)
