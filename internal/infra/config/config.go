// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// BlocklistFileName is the blocklist file name inside the config directory.
	BlocklistFileName = "blocked_songs.conf"
	// SocketFileName is the command socket name inside the runtime directory.
	SocketFileName = "audiowarden.sock"
	// CacheFileName is the Spotify sync cache name inside the cache directory.
	CacheFileName = "blocked_songs.json.gz"
	// ConfigFileName is the default YAML file name inside the config directory.
	ConfigFileName = "config.yaml"

	playerBusPrefix = "org.mpris.MediaPlayer2."
)

// Config represents the application configuration.
type Config struct {
	Blocklist BlocklistConfig `yaml:"blocklist"`
	Socket    SocketConfig    `yaml:"socket"`
	MPRIS     MPRISConfig     `yaml:"mpris"`
	Spotify   SpotifyConfig   `yaml:"spotify"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// BlocklistConfig represents the blocklist file configuration.
type BlocklistConfig struct {
	File           string        `yaml:"file"`
	PersistBlocked *bool         `yaml:"persist_blocked" default:"true"`
	Watch          *bool         `yaml:"watch" default:"true"`
	WatchDebounce  time.Duration `yaml:"watch_debounce" default:"250ms" validate:"gte=0"`
}

// SocketConfig represents the command socket configuration.
type SocketConfig struct {
	Path        string        `yaml:"path"`
	ReadTimeout time.Duration `yaml:"read_timeout" default:"5s" validate:"gt=0"`
}

// MPRISConfig represents the media player bus configuration.
type MPRISConfig struct {
	Player              string        `yaml:"player" default:"spotify" validate:"required,excludesall=/"`
	CallTimeout         time.Duration `yaml:"call_timeout" default:"5s" validate:"gt=0"`
	ReconnectMaxElapsed time.Duration `yaml:"reconnect_max_elapsed" default:"2m" validate:"gt=0"`
}

// SpotifyConfig represents the optional Spotify playlist sync configuration.
type SpotifyConfig struct {
	Enabled      bool          `yaml:"enabled"`
	ClientID     string        `yaml:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string        `yaml:"client_secret" validate:"required_if=Enabled true"`
	RefreshToken string        `yaml:"refresh_token" validate:"required_if=Enabled true"`
	Keyword      string        `yaml:"keyword" default:"audiowarden:block_songs" validate:"required"`
	SyncInterval time.Duration `yaml:"sync_interval" default:"1h" validate:"gte=1m"`
	CacheFile    string        `yaml:"cache_file"`
}

// MetricsConfig represents the Prometheus endpoint configuration.
// The endpoint is disabled when Addr is empty.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Load loads configuration from a YAML file.
// A missing file is not an error: all values fall back to defaults.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("AUDIOWARDEN_PLAYER"); v != "" {
		c.MPRIS.Player = v
	}
}

// resolvePaths fills in file locations that were left empty.
func (c *Config) resolvePaths() error {
	if c.Blocklist.File == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		c.Blocklist.File = filepath.Join(dir, BlocklistFileName)
	}
	if c.Socket.Path == "" {
		dir, err := RuntimeDir()
		if err != nil {
			return err
		}
		c.Socket.Path = filepath.Join(dir, SocketFileName)
	}
	if c.Spotify.Enabled && c.Spotify.CacheFile == "" {
		dir, err := CacheDir()
		if err != nil {
			return err
		}
		c.Spotify.CacheFile = filepath.Join(dir, CacheFileName)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// BusName returns the well-known bus name of the configured player.
func (c *Config) BusName() string {
	return playerBusPrefix + c.MPRIS.Player
}

// PersistBlocked reports whether runtime blocks are appended to the blocklist file.
func (c *Config) PersistBlocked() bool {
	return c.Blocklist.PersistBlocked == nil || *c.Blocklist.PersistBlocked
}

// WatchBlocklist reports whether the blocklist file is watched for changes.
func (c *Config) WatchBlocklist() bool {
	return c.Blocklist.Watch == nil || *c.Blocklist.Watch
}
