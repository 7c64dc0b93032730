// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Player  PlayerConfig  `yaml:"player"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info" validate:"omitempty,oneof=debug info warn warning error"`
	File   string `yaml:"file"`
}

// PlayerConfig represents playback engine configuration.
type PlayerConfig struct {
	CommandBuffer int    `yaml:"command_buffer" default:"10" validate:"gte=1,lte=256"`
	NotifyBuffer  int    `yaml:"notify_buffer" default:"64" validate:"gte=1,lte=4096"`
	JumpOffsetSec int    `yaml:"jump_offset_sec" default:"10" validate:"gte=1,lte=300"`
	Quality       string `yaml:"quality" default:"lossless" validate:"oneof=mp3 lossless hires96 hires192"`
}

// CatalogConfig represents catalog provider configuration.
type CatalogConfig struct {
	Provider ProviderConfig `yaml:"provider"`
}

// ProviderConfig represents a single catalog provider.
// Settings are provider-specific and decoded by the provider factory.
type ProviderConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings" validate:"required"`
}

// Load loads configuration from a YAML file. Environment variables take
// precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if c.Catalog.Provider.Settings == nil {
		c.Catalog.Provider.Settings = map[string]any{}
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Catalog.Provider.Settings["client_id"] = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Catalog.Provider.Settings["client_secret"] = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Catalog.Provider.Settings["refresh_token"] = v
	}
}

// JumpOffset returns the jump seek distance as a duration.
func (c *Config) JumpOffset() time.Duration {
	return time.Duration(c.Player.JumpOffsetSec) * time.Second
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
