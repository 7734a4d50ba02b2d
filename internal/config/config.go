// Package config loads kvs configuration: defaults, then an optional JWCC
// (JSON-with-comments) config file, then CLI flag overrides, mirroring the
// precedence layering convention this codebase uses for all of its
// command-line tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/tailscale/hujson"

	"kvs/internal/engine/walog"
)

// Config holds all configuration options for a Store and its front ends.
type Config struct {
	// DataDir holds the log, snapshot, manifest, and lock files.
	DataDir string `json:"data_dir"`

	// LogFileName is the default log file name on cold start.
	LogFileName string `json:"log_path"`

	// Durability selects the log writer's fsync policy: "flush",
	// "fsync-always", or "fsync-every-n:N".
	Durability string `json:"durability"`

	// MaxLogSize accepts a human-readable byte size ("64MB", "1GiB") or a
	// plain integer. Empty disables auto-snapshot.
	MaxLogSize string `json:"max_log_size"`

	// Addr is the line-protocol server's listen address for the "server"
	// subcommand.
	Addr string `json:"addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		DataDir:     "kvsdata",
		LogFileName: "data.log",
		Durability:  "flush",
		Addr:        "127.0.0.1:7711",
	}
}

// Load merges defaults, an optional config file at configPath (if
// non-empty), and CLI overrides, in that order. A missing configPath when
// explicitly requested is an error; an empty configPath is simply skipped.
func Load(configPath string, overrides Config) (Config, error) {
	cfg := Default()

	if configPath != "" {
		fileCfg, err := loadFile(configPath)
		if err != nil {
			return Config{}, err
		}

		cfg = merge(cfg, fileCfg)
	}

	cfg = merge(cfg, overrides)

	return cfg, nil
}

func loadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}

	// hujson tolerates comments and trailing commas, then standardizes to
	// plain JSON for decoding.
	standard, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
	}

	var cfg Config

	if err := json.Unmarshal(standard, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}

	return cfg, nil
}

// merge overlays non-zero fields of override onto base.
func merge(base, override Config) Config {
	if override.DataDir != "" {
		base.DataDir = override.DataDir
	}

	if override.LogFileName != "" {
		base.LogFileName = override.LogFileName
	}

	if override.Durability != "" {
		base.Durability = override.Durability
	}

	if override.MaxLogSize != "" {
		base.MaxLogSize = override.MaxLogSize
	}

	if override.Addr != "" {
		base.Addr = override.Addr
	}

	return base
}

// ParseMaxLogSize converts the configured human-readable size into bytes.
// An empty string disables auto-snapshot (returns 0, nil).
func ParseMaxLogSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse max_log_size %q: %w", s, err)
	}

	return n, nil
}

// ParseDurability converts the configured durability string into a
// walog.Durability. Accepted forms: "flush", "fsync-always",
// "fsync-every-n:N".
func ParseDurability(s string) (walog.Durability, error) {
	switch {
	case s == "" || s == "flush":
		return walog.DurabilityFlush(), nil
	case s == "fsync-always":
		return walog.DurabilityFsyncAlways(), nil
	case len(s) > len("fsync-every-n:") && s[:len("fsync-every-n:")] == "fsync-every-n:":
		var n int

		_, err := fmt.Sscanf(s[len("fsync-every-n:"):], "%d", &n)
		if err != nil || n < 1 {
			return walog.Durability{}, fmt.Errorf("invalid durability %q: expected fsync-every-n:<positive int>", s)
		}

		return walog.DurabilityFsyncEveryN(n), nil
	default:
		return walog.Durability{}, fmt.Errorf("unknown durability %q: want flush, fsync-always, or fsync-every-n:N", s)
	}
}
