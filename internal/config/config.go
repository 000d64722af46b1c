// Package config loads punchclock's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/punchclock/internal/adapter/location"
	"github.com/sadopc/punchclock/internal/adapter/photo"
	"github.com/sadopc/punchclock/internal/store"
)

const appDir = "punchclock"

// Config holds settings that belong to the installation rather than to a
// user. Per-user preferences live in the store's settings table.
type Config struct {
	User          string   `yaml:"user"`
	DBPath        string   `yaml:"db_path"`
	LogFile       string   `yaml:"log_file"`
	LogLevel      string   `yaml:"log_level"`
	LogFormat     string   `yaml:"log_format"`
	Location      Location `yaml:"location"`
	Auth          Auth     `yaml:"auth"`
	MaxPhotoBytes int64    `yaml:"max_photo_bytes"`
}

// Location is optional; starting a session fails while it is unset.
type Location struct {
	Latitude  *float64 `yaml:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty"`
}

type Auth struct {
	PINHash string `yaml:"pin_hash,omitempty"`
}

// Dir returns the directory holding the config file, database and log.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDir), nil
}

// DefaultPath returns ~/.config/punchclock/config.yaml
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	c := &Config{
		User:          defaultUser(),
		LogLevel:      "info",
		LogFormat:     "json",
		MaxPhotoBytes: photo.DefaultMaxBytes,
	}
	if p, err := store.DefaultDBPath(); err == nil {
		c.DBPath = p
	}
	if dir, err := Dir(); err == nil {
		c.LogFile = filepath.Join(dir, "punchclock.log")
	}
	return c
}

func defaultUser() string {
	for _, k := range []string{"USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return "me"
}

// Validate fills blanks with defaults and reports values that cannot be used.
func (c *Config) Validate() error {
	def := DefaultConfig()
	c.User = strings.TrimSpace(c.User)
	if c.User == "" {
		c.User = def.User
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.MaxPhotoBytes == 0 {
		c.MaxPhotoBytes = def.MaxPhotoBytes
	}

	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path: cannot determine a default, set it explicitly"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log_format: must be json or text, got %q", c.LogFormat))
	}
	if (c.Location.Latitude == nil) != (c.Location.Longitude == nil) {
		errs = append(errs, errors.New("location: latitude and longitude must be set together"))
	} else if c.Location.Latitude != nil {
		loc := store.Location{Latitude: *c.Location.Latitude, Longitude: *c.Location.Longitude}
		if err := location.Validate(loc); err != nil {
			errs = append(errs, fmt.Errorf("location: %w", err))
		}
	}
	if c.MaxPhotoBytes < 0 {
		errs = append(errs, fmt.Errorf("max_photo_bytes: must be positive, got %d", c.MaxPhotoBytes))
	}
	return errors.Join(errs...)
}

// Load reads the YAML file at path. A missing file yields DefaultConfig().
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory. The file
// may hold a PIN hash so it is private to the owner.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SetLocation records a fixed position.
func (c *Config) SetLocation(lat, lon float64) {
	c.Location.Latitude, c.Location.Longitude = &lat, &lon
}
