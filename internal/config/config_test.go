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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
credential:
  name: my-vault
  provider: tpm2
  require_pin: true
storage:
  dir: /var/lib/bioseal
tpm:
  device: /dev/tpm0
logging:
  debug: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Credential.Name != "my-vault" {
		t.Errorf("Credential.Name = %q, want %q", cfg.Credential.Name, "my-vault")
	}
	if cfg.Credential.Provider != ProviderTPM2 {
		t.Errorf("Credential.Provider = %q, want %q", cfg.Credential.Provider, ProviderTPM2)
	}
	if !cfg.Credential.RequirePIN {
		t.Error("Credential.RequirePIN = false, want true")
	}
	if cfg.Storage.Dir != "/var/lib/bioseal" {
		t.Errorf("Storage.Dir = %q, want %q", cfg.Storage.Dir, "/var/lib/bioseal")
	}
	if cfg.TPM.Device != "/dev/tpm0" {
		t.Errorf("TPM.Device = %q, want %q", cfg.TPM.Device, "/dev/tpm0")
	}
	if !cfg.Logging.Debug {
		t.Error("Logging.Debug = false, want true")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Credential.Name != "bioseal" {
		t.Errorf("Credential.Name = %q, want default %q", cfg.Credential.Name, "bioseal")
	}
	if cfg.Credential.Provider != ProviderSoftware {
		t.Errorf("Credential.Provider = %q, want default %q", cfg.Credential.Provider, ProviderSoftware)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want default true")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "credential: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted malformed YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BIOSEAL_CREDENTIAL", "env-credential")
	t.Setenv("BIOSEAL_PROVIDER", ProviderTPM2)
	t.Setenv("BIOSEAL_STORE_DIR", "/tmp/bioseal-env")
	t.Setenv("BIOSEAL_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Credential.Name != "env-credential" {
		t.Errorf("Credential.Name = %q, want env override", cfg.Credential.Name)
	}
	if cfg.Credential.Provider != ProviderTPM2 {
		t.Errorf("Credential.Provider = %q, want env override", cfg.Credential.Provider)
	}
	if cfg.Storage.Dir != "/tmp/bioseal-env" {
		t.Errorf("Storage.Dir = %q, want env override", cfg.Storage.Dir)
	}
	if !cfg.Logging.Debug {
		t.Error("Logging.Debug = false, want env override")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cfg.Credential.Provider = "hsm"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted an unknown provider")
	}

	cfg = DefaultConfig()
	cfg.Credential.Name = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted an empty credential name")
	}
}

func TestStoreDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Dir = "/explicit/dir"
	dir, err := cfg.StoreDir()
	if err != nil {
		t.Fatalf("StoreDir() failed: %v", err)
	}
	if dir != "/explicit/dir" {
		t.Errorf("StoreDir() = %q, want explicit dir", dir)
	}

	cfg.Storage.Dir = ""
	dir, err = cfg.StoreDir()
	if err != nil {
		t.Fatalf("StoreDir() failed: %v", err)
	}
	if filepath.Base(dir) != ".bioseal" {
		t.Errorf("StoreDir() = %q, want a ~/.bioseal path", dir)
	}
}
