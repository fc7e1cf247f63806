// Package app carries process-level wiring: configuration and logging.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Debrid    DebridConfig    `toml:"debrid"`
	Metadata  MetadataConfig  `toml:"metadata"`
	Sources   SourcesConfig   `toml:"sources"`
	Player    PlayerConfig    `toml:"player"`
	Streaming StreamingConfig `toml:"streaming"`
	Log       LogConfig       `toml:"log"`
}

type DebridConfig struct {
	// APIKey enables premium cached resolution when set.
	APIKey string `toml:"api_key"`
}

type MetadataConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type SourcesConfig struct {
	BaseURL string `toml:"base_url"`
	// Quality filters sources to one quality label; empty keeps all.
	Quality string `toml:"quality"`
	// Sort orders the source list: quality, seeders or size.
	Sort string `toml:"sort"`
}

type PlayerConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

type StreamingConfig struct {
	Port                     int     `toml:"port"`
	PortAttempts             int     `toml:"port_attempts"`
	DataDir                  string  `toml:"data_dir"`
	MinBufferMB              int64   `toml:"min_buffer_mb"`
	MinBufferSeconds         float64 `toml:"min_buffer_seconds"`
	BufferTimeoutSeconds     int     `toml:"buffer_timeout_seconds"`
	SourceOpenTimeoutSeconds int     `toml:"source_open_timeout_seconds"`
	DegradedStart            bool    `toml:"degraded_start"`
	Cleanup                  string  `toml:"cleanup"`
	MaxConns                 int     `toml:"max_conns"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func DefaultConfig() Config {
	return Config{
		Metadata: MetadataConfig{
			BaseURL: "https://api.themoviedb.org/3",
		},
		Sources: SourcesConfig{
			BaseURL: "https://torrentio.strem.fun",
			Sort:    "seeders",
		},
		Player: PlayerConfig{
			Command: "mpv",
		},
		Streaming: StreamingConfig{
			Port:                     3131,
			PortAttempts:             1,
			MinBufferMB:              10,
			MinBufferSeconds:         5,
			BufferTimeoutSeconds:     90,
			SourceOpenTimeoutSeconds: 60,
			DegradedStart:            true,
			Cleanup:                  "always",
			MaxConns:                 35,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns the config directory, created on demand.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	dir := filepath.Join(base, "peerplay")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// HistoryPath is where the watch-history database lives, next to the config.
func HistoryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Load reads the config file (missing file means defaults), applies
// PEERPLAY_* environment overrides, and validates.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(path)
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config with owner-only permissions; it holds API keys.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Sources.Sort {
	case "", "quality", "seeders", "size":
	default:
		return fmt.Errorf("invalid sources.sort %q (quality, seeders or size)", c.Sources.Sort)
	}
	switch c.Streaming.Cleanup {
	case "", "always", "keep":
	default:
		return fmt.Errorf("invalid streaming.cleanup %q (always or keep)", c.Streaming.Cleanup)
	}
	if c.Streaming.Port < 1 || c.Streaming.Port > 65535 {
		return fmt.Errorf("invalid streaming.port %d", c.Streaming.Port)
	}
	if c.Streaming.PortAttempts < 1 {
		return fmt.Errorf("invalid streaming.port_attempts %d", c.Streaming.PortAttempts)
	}
	if c.Player.Command == "" {
		return fmt.Errorf("player.command must be set")
	}
	return nil
}

// DataDir resolves the session storage directory, defaulting to a
// process-independent temp location.
func (c Config) DataDir() string {
	if c.Streaming.DataDir != "" {
		return c.Streaming.DataDir
	}
	return filepath.Join(os.TempDir(), "peerplay")
}

func applyEnvOverrides(cfg *Config) {
	cfg.Debrid.APIKey = getEnv("PEERPLAY_DEBRID_API_KEY", cfg.Debrid.APIKey)
	cfg.Metadata.APIKey = getEnv("PEERPLAY_TMDB_API_KEY", cfg.Metadata.APIKey)
	cfg.Metadata.BaseURL = getEnv("PEERPLAY_TMDB_BASE_URL", cfg.Metadata.BaseURL)
	cfg.Sources.BaseURL = getEnv("PEERPLAY_SOURCES_BASE_URL", cfg.Sources.BaseURL)
	cfg.Sources.Quality = getEnv("PEERPLAY_SOURCES_QUALITY", cfg.Sources.Quality)
	cfg.Sources.Sort = getEnv("PEERPLAY_SOURCES_SORT", cfg.Sources.Sort)
	cfg.Player.Command = getEnv("PEERPLAY_PLAYER", cfg.Player.Command)
	cfg.Streaming.Port = int(getEnvInt64("PEERPLAY_PORT", int64(cfg.Streaming.Port)))
	cfg.Streaming.PortAttempts = int(getEnvInt64("PEERPLAY_PORT_ATTEMPTS", int64(cfg.Streaming.PortAttempts)))
	cfg.Streaming.DataDir = getEnv("PEERPLAY_DATA_DIR", cfg.Streaming.DataDir)
	cfg.Streaming.Cleanup = strings.ToLower(getEnv("PEERPLAY_CLEANUP", cfg.Streaming.Cleanup))
	cfg.Log.Level = strings.ToLower(getEnv("PEERPLAY_LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(getEnv("PEERPLAY_LOG_FORMAT", cfg.Log.Format))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}
