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

package storage

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemoryBackend_PutGet(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	value := []byte("credential blob")
	if err := backend.Put("keys/test", value); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := backend.Get("keys/test")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get() = %q, want %q", got, value)
	}
}

func TestMemoryBackend_GetNotFound(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	_, err := backend.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryBackend_GetReturnsCopy(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	original := []byte{1, 2, 3}
	if err := backend.Put("keys/copy", original); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := backend.Get("keys/copy")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	got[0] = 0xFF

	again, err := backend.Get("keys/copy")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if again[0] != 1 {
		t.Error("mutation of returned slice leaked into storage")
	}
}

func TestMemoryBackend_Delete(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	if err := backend.Put("keys/doomed", []byte("x")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := backend.Delete("keys/doomed"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := backend.Delete("keys/doomed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryBackend_ListPrefix(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	for _, key := range []string{"keys/a", "keys/b", "other/c"} {
		if err := backend.Put(key, []byte("v")); err != nil {
			t.Fatalf("Put(%q) failed: %v", key, err)
		}
	}

	keys, err := backend.List("keys/")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "keys/a" || keys[1] != "keys/b" {
		t.Errorf("List(\"keys/\") = %v, want [keys/a keys/b]", keys)
	}
}

func TestMemoryBackend_Exists(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	exists, err := backend.Exists("keys/nope")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if exists {
		t.Error("Exists() = true for missing key")
	}

	if err := backend.Put("keys/yes", []byte("v")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	exists, err = backend.Exists("keys/yes")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if !exists {
		t.Error("Exists() = false for stored key")
	}
}

func TestMemoryBackend_Closed(t *testing.T) {
	backend := NewMemory()
	if err := backend.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if _, err := backend.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
	if err := backend.Put("k", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Put() after Close error = %v, want ErrClosed", err)
	}
}
