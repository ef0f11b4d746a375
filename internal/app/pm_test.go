package app

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/pkgbridge/internal/config"
)

func writeShimConfig(t *testing.T, base, binDir string) string {
	t.Helper()
	cfgPath := filepath.Join(base, "config.toml")
	cfg := &config.Config{
		Defaults: map[string]string{"debian": "deb-work"},
		BinDir:   binDir,
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}
	return cfgPath
}

func swapLookPath(t *testing.T, fn func(string) (string, error)) {
	t.Helper()
	restore := lookPathFn
	lookPathFn = fn
	t.Cleanup(func() { lookPathFn = restore })
}

func TestGenerateShimsSuffixesWhenHostHasManager(t *testing.T) {
	base := t.TempDir()
	binDir := filepath.Join(base, "bin")
	cfgPath := writeShimConfig(t, base, binDir)

	shimBin := filepath.Join(base, "pkgbridge-shim")
	swapLookPath(t, func(name string) (string, error) {
		switch name {
		case "pkgbridge-shim":
			return shimBin, nil
		case "apt":
			return "/usr/bin/apt", nil
		}
		return "", exec.ErrNotFound
	})

	err := runCLI(t,
		"--config", cfgPath,
		"--state-dir", filepath.Join(base, "state"),
		"pm", "generate-shims")
	if err != nil {
		t.Fatalf("generate-shims failed: %v", err)
	}

	// The host provides apt, so the shim takes the suffixed name and the
	// plain name stays free.
	if target, err := os.Readlink(filepath.Join(binDir, "apt-deb-work")); err != nil || target != shimBin {
		t.Errorf("apt-deb-work link = %q, err = %v", target, err)
	}
	if entryExists(filepath.Join(binDir, "apt")) {
		t.Error("host apt must not be shadowed")
	}

	// apt-get is absent on the host and gets the plain name.
	if target, err := os.Readlink(filepath.Join(binDir, "apt-get")); err != nil || target != shimBin {
		t.Errorf("apt-get link = %q, err = %v", target, err)
	}
}

func TestGenerateShimsFallsBackWhenPlainNameTaken(t *testing.T) {
	base := t.TempDir()
	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("creating bin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "apt"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("seeding existing apt: %v", err)
	}
	cfgPath := writeShimConfig(t, base, binDir)

	shimBin := filepath.Join(base, "pkgbridge-shim")
	swapLookPath(t, func(name string) (string, error) {
		if name == "pkgbridge-shim" {
			return shimBin, nil
		}
		return "", exec.ErrNotFound
	})

	err := runCLI(t,
		"--config", cfgPath,
		"--state-dir", filepath.Join(base, "state"),
		"pm", "generate-shims")
	if err != nil {
		t.Fatalf("generate-shims failed: %v", err)
	}

	if target, err := os.Readlink(filepath.Join(binDir, "apt-deb-work")); err != nil || target != shimBin {
		t.Errorf("apt-deb-work link = %q, err = %v", target, err)
	}
	data, err := os.ReadFile(filepath.Join(binDir, "apt"))
	if err != nil || string(data) != "#!/bin/sh\n" {
		t.Errorf("existing apt must be left untouched: %q, err = %v", data, err)
	}
}

func TestGenerateShimsIdempotent(t *testing.T) {
	base := t.TempDir()
	binDir := filepath.Join(base, "bin")
	cfgPath := writeShimConfig(t, base, binDir)

	shimBin := filepath.Join(base, "pkgbridge-shim")
	swapLookPath(t, func(name string) (string, error) {
		if name == "pkgbridge-shim" {
			return shimBin, nil
		}
		return "", exec.ErrNotFound
	})

	args := []string{
		"--config", cfgPath,
		"--state-dir", filepath.Join(base, "state"),
		"pm", "generate-shims"}
	if err := runCLI(t, args...); err != nil {
		t.Fatalf("first generate-shims failed: %v", err)
	}
	if err := runCLI(t, args...); err != nil {
		t.Fatalf("second generate-shims failed: %v", err)
	}

	entries, err := os.ReadDir(binDir)
	if err != nil {
		t.Fatalf("reading bin dir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected apt and apt-get only, got %d entries", len(entries))
	}
}
