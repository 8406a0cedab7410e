// Package config loads the YAML session profile emrtdread reads its
// document credentials and reader selection from.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is a session profile: which reader to use and which access
// credential to try against the document.
type Config struct {
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Credential CredentialConfig `yaml:"credential"`
}

type RuntimeConfig struct {
	ReaderIndex *int  `yaml:"reader_index"`
	PreferPACE  *bool `yaml:"prefer_pace"`
}

// CredentialConfig carries exactly one access credential. Which field is
// set determines the kind PACE/BAC is attempted with; MRZ takes the three
// fields BAC and PACE-over-MRZ both need.
type CredentialConfig struct {
	DocumentNumber string `yaml:"document_number"`
	DateOfBirth    string `yaml:"date_of_birth"`
	DateOfExpiry   string `yaml:"date_of_expiry"`
	CAN            string `yaml:"can"`
	PINFile        string `yaml:"pin_hex_file"`
}

func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Runtime.ReaderIndex == nil {
		return fmt.Errorf("config.runtime.reader_index is required")
	}
	if *c.Runtime.ReaderIndex < 0 {
		return fmt.Errorf("config.runtime.reader_index must be >= 0")
	}

	hasMRZ := strings.TrimSpace(c.Credential.DocumentNumber) != ""
	hasCAN := strings.TrimSpace(c.Credential.CAN) != ""
	hasPIN := strings.TrimSpace(c.Credential.PINFile) != ""
	if !hasMRZ && !hasCAN && !hasPIN {
		return fmt.Errorf("config.credential must set document_number+date_of_birth+date_of_expiry, can, or pin_hex_file")
	}
	if hasMRZ && (strings.TrimSpace(c.Credential.DateOfBirth) == "" || strings.TrimSpace(c.Credential.DateOfExpiry) == "") {
		return fmt.Errorf("config.credential.document_number requires date_of_birth and date_of_expiry")
	}
	if hasPIN {
		if err := validateReadableFile(c.Credential.PINFile, "config.credential.pin_hex_file"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.Credential.PINFile = resolvePath(configDir, c.Credential.PINFile)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

func validateReadableFile(path string, field string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file, got directory", field)
	}
	return nil
}
