package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "taproot.db"
)

type Config struct {
	ServerURL        string `toml:"server_url"`
	ListenAddr       string `toml:"listen_addr"`
	DBPath           string `toml:"db_path"`
	DefaultView      string `toml:"default_view"`
	SearchDebounceMS int    `toml:"search_debounce_ms"`
}

// DebounceInterval is the quiet window after the last keystroke before a
// search query is dispatched.
func (c Config) DebounceInterval() time.Duration {
	if c.SearchDebounceMS <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.SearchDebounceMS) * time.Millisecond
}

// ResolveConfigPath returns the config file location: $TAPROOT_CONFIG if
// set, otherwise the user config dir.
func ResolveConfigPath() string {
	if p := os.Getenv("TAPROOT_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, "taproot", DefaultConfigFileName)
}

// LoadOrCreate reads the config file, writing one with defaults on first
// launch.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultConfig().ServerURL
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	return cfg, nil
}

func Write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() Config {
	return Config{
		ServerURL:        "http://localhost:8000",
		ListenAddr:       ":8000",
		DBPath:           DefaultDBName,
		DefaultView:      "all",
		SearchDebounceMS: 300,
	}
}
