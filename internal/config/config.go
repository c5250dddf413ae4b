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

// Package config loads the bioseal YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in the configuration
const (
	ProviderSoftware = "software"
	ProviderTPM2     = "tpm2"
)

// Config represents the complete bioseal configuration
type Config struct {
	Credential CredentialConfig `yaml:"credential"`
	Storage    StorageConfig    `yaml:"storage"`
	TPM        TPMConfig        `yaml:"tpm"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// CredentialConfig selects the credential provider and name
type CredentialConfig struct {
	// Name identifies the signing credential within the provider
	Name string `yaml:"name"`

	// Provider is "software" or "tpm2"
	Provider string `yaml:"provider"`

	// RequirePIN gates every signing operation on a PIN prompt
	RequirePIN bool `yaml:"require_pin"`
}

// StorageConfig controls where key blobs are persisted
type StorageConfig struct {
	// Dir is the key blob directory. Defaults to ~/.bioseal
	Dir string `yaml:"dir"`
}

// TPMConfig contains TPM 2.0 provider settings
type TPMConfig struct {
	// Device is the TPM character device path
	Device string `yaml:"device"`

	// UseSimulator runs against a software TPM. Development only.
	UseSimulator bool `yaml:"use_simulator"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// MetricsConfig controls Prometheus metrics collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Credential: CredentialConfig{
			Name:     "bioseal",
			Provider: ProviderSoftware,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration
func applyEnvOverrides(cfg *Config) {
	if name := os.Getenv("BIOSEAL_CREDENTIAL"); name != "" {
		cfg.Credential.Name = name
	}
	if provider := os.Getenv("BIOSEAL_PROVIDER"); provider != "" {
		cfg.Credential.Provider = provider
	}
	if dir := os.Getenv("BIOSEAL_STORE_DIR"); dir != "" {
		cfg.Storage.Dir = dir
	}
	if device := os.Getenv("BIOSEAL_TPM_DEVICE"); device != "" {
		cfg.TPM.Device = device
	}
	if debug := os.Getenv("BIOSEAL_DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		cfg.Logging.Debug = true
	}
}

// Validate checks the configuration for correctness
func (c *Config) Validate() error {
	if c.Credential.Name == "" {
		return fmt.Errorf("credential name cannot be empty")
	}
	switch strings.ToLower(c.Credential.Provider) {
	case ProviderSoftware, ProviderTPM2:
	default:
		return fmt.Errorf("invalid provider: %s (must be %s or %s)",
			c.Credential.Provider, ProviderSoftware, ProviderTPM2)
	}
	return nil
}

// StoreDir resolves the key blob directory, defaulting to ~/.bioseal.
func (c *Config) StoreDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".bioseal"), nil
}
