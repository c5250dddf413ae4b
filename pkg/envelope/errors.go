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

package envelope

import "errors"

var (
	// ErrEncryptionFailed indicates the plaintext could not be encrypted.
	ErrEncryptionFailed = errors.New("envelope: encryption failed")

	// ErrDecryptionFailed indicates the envelope could not be decrypted.
	// Wrong key and corrupted/truncated envelope are intentionally
	// indistinguishable to avoid leaking key-validity information.
	ErrDecryptionFailed = errors.New("envelope: decryption failed")

	// ErrInvalidKey indicates the key is not a valid AES-256 key.
	ErrInvalidKey = errors.New("envelope: invalid key size")
)
