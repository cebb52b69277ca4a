package main

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cdb2anvil.yml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("missing config should not fail: %v", err)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Fatalf("workers %d, want CPU count", cfg.Workers)
	}
	if cfg.DataVersion != defaultDataVersion {
		t.Fatalf("data version %d", cfg.DataVersion)
	}
	if cfg.FillCorruptedChunks {
		t.Fatal("fill should default off")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level %q", cfg.LogLevel)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
workers: 4
data_version: 3218
fill_corrupted_chunks: true
log_level: debug
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 4 || cfg.DataVersion != 3218 || !cfg.FillCorruptedChunks || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigClampsNonsense(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "workers: -3\ndata_version: 0\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Fatalf("workers %d, want CPU count", cfg.Workers)
	}
	if cfg.DataVersion != defaultDataVersion {
		t.Fatalf("data version %d", cfg.DataVersion)
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "workers: [nope")); err == nil {
		t.Fatal("expect error for malformed yaml")
	}
}
