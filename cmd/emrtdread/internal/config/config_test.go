package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadValidMRZConfigAndResolveRelativePaths(t *testing.T) {
	tmp := t.TempDir()
	pinPath := filepath.Join(tmp, "pin.hex")
	if err := os.WriteFile(pinPath, []byte("31323334\n"), 0o644); err != nil {
		t.Fatalf("write pin file: %v", err)
	}

	cfgPath := filepath.Join(tmp, "config.yaml")
	cfgYAML := `
runtime:
  reader_index: 0
  prefer_pace: true
credential:
  document_number: "T22000129"
  date_of_birth: "640812"
  date_of_expiry: "101031"
  pin_hex_file: "pin.hex"
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Credential.DocumentNumber != "T22000129" {
		t.Errorf("DocumentNumber = %q", cfg.Credential.DocumentNumber)
	}
	if cfg.Credential.PINFile != pinPath {
		t.Errorf("PINFile = %q, want resolved path %q", cfg.Credential.PINFile, pinPath)
	}
}

func TestLoadCANOnlyConfig(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	cfgYAML := `
runtime:
  reader_index: 0
credential:
  can: "740533"
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Credential.CAN != "740533" {
		t.Errorf("CAN = %q", cfg.Credential.CAN)
	}
}

func TestLoadRejectsMissingCredential(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	cfgYAML := `
runtime:
  reader_index: 0
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("expected an error for a config with no credential set")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	cfgYAML := `
runtime:
  reader_index: 0
credential:
  can: "740533"
not_a_real_field: true
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("expected an error for an unknown top-level field")
	}
}

func TestLoadRejectsMissingReaderIndex(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	cfgYAML := `
credential:
  can: "740533"
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("expected an error for a config missing runtime.reader_index")
	}
}
