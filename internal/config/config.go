// Package config loads lockguard's JSONC configuration file, following the
// same precedence chain and hujson-standardize-then-json.Unmarshal approach
// the teacher uses for its own config file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all configuration options for the lockguard CLI and any
// embedder that wants file-based defaults instead of wiring [lockguard.Config]
// by hand.
type Config struct {
	// LockTimeoutMs bounds how long a lock acquisition waits before
	// failing with a timeout. 0 means "use the built-in default";
	// negative means "try once, don't wait".
	LockTimeoutMs int `json:"lock_timeout_ms,omitempty"` //nolint:tagliatelle

	// LockDir is loaded and merged like the other fields. Lock-file
	// placement does not read it: sidecar lock files always follow the
	// built-in rule (next to a file target, inside a directory target).
	LockDir string `json:"lock_dir,omitempty"` //nolint:tagliatelle
}

// Timeout converts LockTimeoutMs to a [time.Duration].
func (c Config) Timeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string
	Project string
}

// DefaultConfig returns the zero-value config: no timeout override, no
// lock-dir override.
func DefaultConfig() Config {
	return Config{}
}

// FileName is the default project config file name.
const FileName = ".lockguard.json"

var (
	errConfigFileNotFound = errors.New("config: file not found")
	errConfigFileRead     = errors.New("config: failed to read file")
	errConfigInvalid      = errors.New("config: invalid")
)

// globalConfigPath returns $XDG_CONFIG_HOME/lockguard/config.json, falling
// back to ~/.config/lockguard/config.json. Returns "" if neither can be
// determined.
func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "lockguard", "config.json")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lockguard", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "lockguard", "config.json")
}

// Load resolves the effective configuration with precedence (lowest to
// highest): defaults, global user config, project config at workDir, an
// explicit configPath override if non-empty. CLI flag overrides are the
// caller's responsibility, applied after Load returns.
func Load(workDir, configPath string, env []string) (Config, Sources, error) {
	cfg := DefaultConfig()

	var sources Sources

	globalCfg, globalPath, err := loadOptional(globalConfigPath(env))
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProject(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	return cfg, sources, nil
}

func loadProject(workDir, configPath string) (Config, string, error) {
	var (
		path      string
		mustExist bool
	)

	if configPath != "" {
		path = configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		mustExist = true

		if _, err := os.Stat(path); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
	} else {
		path = filepath.Join(workDir, FileName)
	}

	cfg, loadedPath, err := loadFile(path, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	return cfg, loadedPath, nil
}

func loadOptional(path string) (Config, string, error) {
	if path == "" {
		return Config{}, "", nil
	}

	return loadFile(path, false)
}

func loadFile(path string, mustExist bool) (Config, string, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, "", nil
		}

		return Config{}, "", fmt.Errorf("%w: %s", errConfigFileRead, path)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, "", fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, path, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := standardizeJSONC(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.LockTimeoutMs != 0 {
		base.LockTimeoutMs = overlay.LockTimeoutMs
	}

	if overlay.LockDir != "" {
		base.LockDir = overlay.LockDir
	}

	return base
}

// Format renders cfg as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting config: %w", err)
	}

	return string(data), nil
}
