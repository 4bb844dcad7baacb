package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syrup.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadPopulatesFieldsAndDefaults(t *testing.T) {
	path := writeConfig(t, `
target: /tmp/worker
shared_variables: [counter, total]
thread_start_routines: [increment]
`)

	cfg, v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TargetPath != "/tmp/worker" {
		t.Errorf("TargetPath = %q, want /tmp/worker", cfg.TargetPath)
	}
	if cfg.GDBPath != "gdb" {
		t.Errorf("GDBPath default = %q, want gdb", cfg.GDBPath)
	}
	if cfg.CloneSyscallName != "clone" {
		t.Errorf("CloneSyscallName default = %q, want clone", cfg.CloneSyscallName)
	}
	if len(cfg.SharedVariables) != 2 {
		t.Errorf("SharedVariables = %v, want 2 entries", cfg.SharedVariables)
	}
	if v == nil {
		t.Fatal("Load returned nil viper instance")
	}
}

func TestLoadRequiresTarget(t *testing.T) {
	path := writeConfig(t, "gdb_path: /usr/bin/gdb\n")
	if _, _, err := Load(path); err == nil {
		t.Fatal("Load with no target = nil error, want error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load of missing file = nil error, want error")
	}
}
