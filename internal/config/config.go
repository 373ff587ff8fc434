// Package config loads diagramflow.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that points at the config file.
const EnvPath = "DIAGRAMFLOW_CONFIG"

// DefaultPath is read when neither a flag nor EnvPath is set.
const DefaultPath = "diagramflow.yaml"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
)

// Config is the full application configuration.
type Config struct {
	Theme  string       `mapstructure:"theme"`
	Log    LogConfig    `mapstructure:"log"`
	Render RenderConfig `mapstructure:"render"`
	Export ExportConfig `mapstructure:"export"`
	Store  StoreConfig  `mapstructure:"store"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	// Tools points at the process tool registry (tools.yaml).
	Tools string `mapstructure:"tools"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RenderConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ExportConfig struct {
	Width   int     `mapstructure:"width"`
	Height  int     `mapstructure:"height"`
	Quality float64 `mapstructure:"quality"`
	Dir     string  `mapstructure:"dir"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// Path is the directory for the file driver and the database file for bolt.
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
	// EncryptionKey is a base64 AES key; when set, values are encrypted at rest.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Theme: string(domain.ThemeLight),
		Log:   LogConfig{Level: "info", Format: "text"},
		Render: RenderConfig{
			Debounce: 500 * time.Millisecond,
			Timeout:  10 * time.Second,
		},
		Export: ExportConfig{Width: 1200, Height: 800, Quality: 1.0, Dir: "."},
		Store: StoreConfig{
			Driver: DriverFile,
			Path:   ".diagramflow/store",
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "diagramflow:"},
		},
		HTTP:  HTTPConfig{Addr: ":8080"},
		Tools: "tools.yaml",
	}
}

// Resolve picks the config path: the explicit one, then EnvPath, then DefaultPath.
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads path over the defaults. A missing file is fine unless it was named
// explicitly by flag or environment.
func Load(explicit string) (Config, error) {
	path := Resolve(explicit)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	if _, err := domain.ParseTheme(c.Theme); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverBolt, DriverRedis:
	default:
		return fmt.Errorf("invalid config: unknown store driver %q", c.Store.Driver)
	}
	if c.Render.Debounce < 0 || c.Render.Timeout < 0 {
		return errors.New("invalid config: render durations must not be negative")
	}
	if c.Export.Width <= 0 || c.Export.Height <= 0 {
		return errors.New("invalid config: export size must be positive")
	}
	if c.Export.Quality <= 0 || c.Export.Quality > 1 {
		return errors.New("invalid config: export quality must be in (0, 1]")
	}
	return nil
}
