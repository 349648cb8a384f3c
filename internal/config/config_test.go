package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() with missing file: %v", err)
	}
	if cfg.Device.Index != 1 {
		t.Errorf("Device.Index: got %d, want 1", cfg.Device.Index)
	}
	if cfg.Keys.Quit != "q" {
		t.Errorf("Keys.Quit: got %q, want %q", cfg.Keys.Quit, "q")
	}
	if cfg.Metadata.Provider != "netease" {
		t.Errorf("Metadata.Provider: got %q, want %q", cfg.Metadata.Provider, "netease")
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[device]
index = 3

[theme]
selected = "99"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if cfg.Device.Index != 3 {
		t.Errorf("Device.Index: got %d, want 3 (file override)", cfg.Device.Index)
	}
	if cfg.Theme.Selected != "99" {
		t.Errorf("Theme.Selected: got %q, want %q (file override)", cfg.Theme.Selected, "99")
	}
	if cfg.Device.FramesPerBuffer != 512 {
		t.Errorf("Device.FramesPerBuffer: got %d, want 512 (default preserved)", cfg.Device.FramesPerBuffer)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	path := filepath.Join(dir, "tuneterm.db")
	if err := EnsureDir(path); err != nil {
		t.Fatalf("EnsureDir(): %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("EnsureDir() did not create %s: %v", dir, err)
	}
}
