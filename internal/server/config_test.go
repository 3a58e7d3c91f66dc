package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Addr() != "0.0.0.0:2022" {
		t.Errorf("Addr = %q, want 0.0.0.0:2022", cfg.Addr())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatd.yaml")
	content := "bind: 127.0.0.1\nport: 2200\nmotd: /etc/motd\ndebug: 1\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:2200" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.MotdFile != "/etc/motd" {
		t.Errorf("MotdFile = %q", cfg.MotdFile)
	}
	if cfg.Debug != 1 {
		t.Errorf("Debug = %d", cfg.Debug)
	}
	// Unset keys keep their defaults.
	if cfg.Identity != "" {
		t.Errorf("Identity = %q, want empty", cfg.Identity)
	}
}

func TestLoadConfigRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [not a number\n"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed YAML accepted")
	}
}
