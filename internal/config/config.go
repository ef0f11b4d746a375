// Package config loads the user configuration for pkgbridge.
//
// Configuration lives at {XDG_CONFIG_HOME}/pkgbridge/config.toml. It is read
// once at process startup and treated as immutable afterwards; the only
// writer is `pkgbridge pm set-default`, which rewrites the whole file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"

	"github.com/blackwell-systems/pkgbridge/internal/logging"
)

// Config is the full user configuration.
type Config struct {
	// Defaults maps a family key ("debian", "fedora", ...) to the box that
	// family's package-manager shims are bound to.
	Defaults map[string]string `toml:"defaults"`

	// LockWaitSeconds bounds how long a transaction waits for a contended
	// box lock. 0 fails fast.
	LockWaitSeconds int `toml:"lock_wait_seconds"`

	// BinDir and ApplicationsDir override where exports are written. Empty
	// selects the XDG defaults (~/.local/bin and ~/.local/share/applications).
	BinDir          string `toml:"bin_dir"`
	ApplicationsDir string `toml:"applications_dir"`
}

const defaultLockWaitSeconds = 30

// Dir returns the pkgbridge config directory.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, "pkgbridge")
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the configuration, applying defaults. A missing or corrupt file
// yields the default configuration with a warning; configuration problems
// must never block a transaction.
func Load() *Config {
	return LoadFrom(Path())
}

// LoadFrom reads configuration from an explicit path (tests, --config).
func LoadFrom(path string) *Config {
	log := logging.GetLogger("config")
	cfg := &Config{
		Defaults:        map[string]string{},
		LockWaitSeconds: defaultLockWaitSeconds,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("config unreadable; using defaults")
		}
		return cfg
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config corrupt; using defaults")
		return &Config{Defaults: map[string]string{}, LockWaitSeconds: defaultLockWaitSeconds}
	}
	if cfg.Defaults == nil {
		cfg.Defaults = map[string]string{}
	}
	if cfg.LockWaitSeconds < 0 {
		cfg.LockWaitSeconds = 0
	}
	return cfg
}

// Save writes the configuration back to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// HostBinDir resolves the directory command shims are exported into.
func (c *Config) HostBinDir() string {
	if c.BinDir != "" {
		return c.BinDir
	}
	if env := os.Getenv("XDG_BIN_HOME"); env != "" {
		return env
	}
	return filepath.Join(xdg.Home, ".local", "bin")
}

// HostApplicationsDir resolves the directory desktop launchers are exported
// into.
func (c *Config) HostApplicationsDir() string {
	if c.ApplicationsDir != "" {
		return c.ApplicationsDir
	}
	return filepath.Join(xdg.DataHome, "applications")
}
