package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingUsesDefaults(t *testing.T) {
	cfg := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))

	if cfg.LockWaitSeconds != defaultLockWaitSeconds {
		t.Errorf("lock wait default = %d, want %d", cfg.LockWaitSeconds, defaultLockWaitSeconds)
	}
	if cfg.Defaults == nil || len(cfg.Defaults) != 0 {
		t.Errorf("defaults map not empty: %+v", cfg.Defaults)
	}
}

func TestLoadCorruptUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[[[not toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadFrom(path)
	if cfg.LockWaitSeconds != defaultLockWaitSeconds {
		t.Errorf("corrupt config should yield defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	want := &Config{
		Defaults:        map[string]string{"debian": "deb-work", "arch": "arch-box"},
		LockWaitSeconds: 5,
		BinDir:          "/custom/bin",
	}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got := LoadFrom(path)
	if got.Defaults["debian"] != "deb-work" || got.Defaults["arch"] != "arch-box" {
		t.Errorf("defaults lost in round trip: %+v", got.Defaults)
	}
	if got.LockWaitSeconds != 5 {
		t.Errorf("lock wait = %d, want 5", got.LockWaitSeconds)
	}
	if got.BinDir != "/custom/bin" {
		t.Errorf("bin dir = %q", got.BinDir)
	}
}

func TestNegativeLockWaitClampedToZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("lock_wait_seconds = -3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if cfg := LoadFrom(path); cfg.LockWaitSeconds != 0 {
		t.Errorf("negative lock wait should clamp to 0, got %d", cfg.LockWaitSeconds)
	}
}

func TestDirOverrides(t *testing.T) {
	cfg := &Config{BinDir: "/opt/bin", ApplicationsDir: "/opt/apps"}
	if cfg.HostBinDir() != "/opt/bin" {
		t.Errorf("bin override ignored: %q", cfg.HostBinDir())
	}
	if cfg.HostApplicationsDir() != "/opt/apps" {
		t.Errorf("applications override ignored: %q", cfg.HostApplicationsDir())
	}

	def := &Config{}
	if def.HostBinDir() == "" || def.HostApplicationsDir() == "" {
		t.Error("default export directories must resolve to non-empty paths")
	}
}
