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

// Package envelope performs symmetric encryption and decryption of a
// single blob under a derived key, producing a self-contained ciphertext
// envelope. The cipher is fixed: AES-256-CBC with PKCS#7 padding. A
// fresh random IV is generated for every encryption and embedded in the
// envelope, so Open needs only (key, envelope).
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Algorithm identifies the only cipher suite this package produces.
const Algorithm = "AES-256-CBC-PKCS7"

// formatVersion is the envelope wire format version.
const formatVersion = 0x01

// Seal encrypts plaintext under a 32-byte key and returns a
// self-describing envelope.
//
// Wire Format (version 1):
//
//	┌────────────────────────────────────────────────────┐
//	│ Version: 1 byte (0x01)                             │
//	├────────────────────────────────────────────────────┤
//	│ Algorithm Length: 2 bytes (big-endian uint16)      │
//	│ Algorithm: variable bytes (UTF-8 string)           │
//	├────────────────────────────────────────────────────┤
//	│ IV Length: 2 bytes (big-endian uint16)             │
//	│ IV: variable bytes                                 │
//	├────────────────────────────────────────────────────┤
//	│ Ciphertext Length: 4 bytes (big-endian uint32)     │
//	│ Ciphertext: variable bytes                         │
//	└────────────────────────────────────────────────────┘
func Seal(key, plaintext []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("%w: failed to generate IV: %v", ErrEncryptionFailed, err)
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return marshal(iv, ciphertext)
}

// Open decrypts an envelope produced by Seal. It fails with
// ErrDecryptionFailed when the envelope is malformed, truncated, or was
// sealed under a different key.
func Open(key, data []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(key))
	}

	iv, ciphertext, err := unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not block aligned", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := unpad(padded, aes.BlockSize)
	if err != nil {
		// Wrong key and corruption both end up here
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// marshal serializes the envelope fields with length prefixes.
func marshal(iv, ciphertext []byte) ([]byte, error) {
	buf := new(bytes.Buffer)

	buf.WriteByte(formatVersion)

	algBytes := []byte(Algorithm)
	if err := binary.Write(buf, binary.BigEndian, uint16(len(algBytes))); err != nil {
		return nil, fmt.Errorf("%w: failed to write algorithm length: %v", ErrEncryptionFailed, err)
	}
	buf.Write(algBytes)

	if err := binary.Write(buf, binary.BigEndian, uint16(len(iv))); err != nil {
		return nil, fmt.Errorf("%w: failed to write IV length: %v", ErrEncryptionFailed, err)
	}
	buf.Write(iv)

	if uint64(len(ciphertext)) > 4294967295 {
		return nil, fmt.Errorf("%w: ciphertext too long: %d bytes", ErrEncryptionFailed, len(ciphertext))
	}
	// #nosec G115 - Length is validated to be <= 4294967295 before conversion
	if err := binary.Write(buf, binary.BigEndian, uint32(len(ciphertext))); err != nil {
		return nil, fmt.Errorf("%w: failed to write ciphertext length: %v", ErrEncryptionFailed, err)
	}
	buf.Write(ciphertext)

	return buf.Bytes(), nil
}

// unmarshal parses an envelope, validating the version, algorithm and
// field lengths.
func unmarshal(data []byte) (iv, ciphertext []byte, err error) {
	buf := bytes.NewReader(data)

	version, err := buf.ReadByte()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read version: %w", err)
	}
	if version != formatVersion {
		return nil, nil, fmt.Errorf("unsupported envelope version: 0x%02x", version)
	}

	var algLen uint16
	if err := binary.Read(buf, binary.BigEndian, &algLen); err != nil {
		return nil, nil, fmt.Errorf("failed to read algorithm length: %w", err)
	}
	algBytes := make([]byte, algLen)
	if _, err := buf.Read(algBytes); err != nil {
		return nil, nil, fmt.Errorf("failed to read algorithm: %w", err)
	}
	if string(algBytes) != Algorithm {
		return nil, nil, fmt.Errorf("unsupported algorithm: %q", algBytes)
	}

	var ivLen uint16
	if err := binary.Read(buf, binary.BigEndian, &ivLen); err != nil {
		return nil, nil, fmt.Errorf("failed to read IV length: %w", err)
	}
	if int(ivLen) != aes.BlockSize {
		return nil, nil, fmt.Errorf("invalid IV length: %d", ivLen)
	}
	iv = make([]byte, ivLen)
	if _, err := buf.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("failed to read IV: %w", err)
	}

	var ctLen uint32
	if err := binary.Read(buf, binary.BigEndian, &ctLen); err != nil {
		return nil, nil, fmt.Errorf("failed to read ciphertext length: %w", err)
	}
	if uint32(buf.Len()) != ctLen {
		return nil, nil, fmt.Errorf("ciphertext length mismatch: header %d, body %d", ctLen, buf.Len())
	}
	ciphertext = make([]byte, ctLen)
	if _, err := buf.Read(ciphertext); err != nil {
		return nil, nil, fmt.Errorf("failed to read ciphertext: %w", err)
	}

	return iv, ciphertext, nil
}

// pad applies PKCS#7 padding. The padded length is always a non-zero
// multiple of the block size, so empty plaintexts round-trip.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad validates and strips PKCS#7 padding.
func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length: %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte: %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
