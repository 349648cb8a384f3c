// Package config loads tuneterm's settings from ~/.config/tuneterm/config.toml,
// layered over built-in defaults with koanf.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds every tunable the player, TUI and background services read.
type Config struct {
	Device struct {
		Index           int `koanf:"index"`
		FramesPerBuffer int `koanf:"frames_per_buffer"`
	} `koanf:"device"`

	Ring struct {
		CapacityBytes uint64 `koanf:"capacity_bytes"`
	} `koanf:"ring"`

	Theme struct {
		Selected string `koanf:"selected"`
		Border   string `koanf:"border"`
		Accent   string `koanf:"accent"`
	} `koanf:"theme"`

	Keys struct {
		Quit      string `koanf:"quit"`
		PlayPause string `koanf:"play_pause"`
		Next      string `koanf:"next"`
		Prev      string `koanf:"prev"`
	} `koanf:"keys"`

	Podcast struct {
		RefreshInterval time.Duration `koanf:"refresh_interval"`
	} `koanf:"podcast"`

	Metadata struct {
		Provider string `koanf:"provider"`
	} `koanf:"metadata"`

	Database struct {
		Path string `koanf:"path"`
	} `koanf:"database"`
}

// defaults is the bottom config layer: registered first so the file and
// flag layers override it key by key.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"device.index":             1,
		"device.frames_per_buffer": 512,
		"ring.capacity_bytes":      uint64(192000 * 2),
		"theme.selected":           "205",
		"theme.border":             "240",
		"theme.accent":             "86",
		"keys.quit":                "q",
		"keys.play_pause":          " ",
		"keys.next":                "n",
		"keys.prev":                "p",
		"podcast.refresh_interval": "30m",
		"metadata.provider":        "netease",
		"database.path":            defaultDatabasePath(),
	}
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tuneterm.db"
	}
	return filepath.Join(dir, "tuneterm", "tuneterm.db")
}

// DefaultPath returns ~/.config/tuneterm/config.toml, the file the CLI loads
// from when --config is not given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "tuneterm", "config.toml")
}

// Load layers built-in defaults, then the TOML file at path (if it exists),
// into a Config. A missing file is not an error: the defaults stand alone.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// EnsureDir creates the parent directory of path (config file or database
// file) if it doesn't already exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
