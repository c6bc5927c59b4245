// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"arbor/internal/safe"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Repository struct {
		Path     string `json:"path" yaml:"path"`
		InMemory bool   `json:"in_memory" yaml:"in_memory"`
	} `json:"repository" yaml:"repository"`

	Cache struct {
		Size int `json:"size" yaml:"size"` // objects kept in the LRU cache
	} `json:"cache" yaml:"cache"`

	Compression struct {
		MinSize int `json:"min_size" yaml:"min_size"`
		Level   int `json:"level" yaml:"level"` // zstd level, 1-22
	} `json:"compression" yaml:"compression"`

	Environment string `json:"environment" yaml:"environment"` // development, production
	LogLevel    string `json:"log_level" yaml:"log_level"`     // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{
		Environment: "development",
		LogLevel:    "info",
	}
	c.Repository.Path = ".arbor"
	c.Cache.Size = 1000

	compression := safe.DefaultCompressionOptions()
	c.Compression.MinSize = compression.MinSize
	c.Compression.Level = compression.Level
	return c
}

// Load reads a JSON or YAML config file, chosen by extension, on top of
// Default. Environment variables in the file are expanded, then ARBOR_REPO
// and ARBOR_LOG_LEVEL override the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(expanded, config)
	case ".json":
		err = json.Unmarshal(expanded, config)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("ARBOR_REPO"); v != "" {
		c.Repository.Path = v
	}
	if v := os.Getenv("ARBOR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Environment, validation.In("development", "production")),
	); err != nil {
		return err
	}

	if !c.Repository.InMemory && c.Repository.Path == "" {
		return fmt.Errorf("repository: path is required unless in_memory is set")
	}
	if err := validation.Validate(c.Cache.Size, validation.Min(0)); err != nil {
		return fmt.Errorf("cache: size %w", err)
	}
	if err := validation.Validate(c.Compression.MinSize, validation.Min(0)); err != nil {
		return fmt.Errorf("compression: min_size %w", err)
	}
	if err := validation.Validate(c.Compression.Level, validation.Required, validation.Min(1), validation.Max(22)); err != nil {
		return fmt.Errorf("compression: level %w", err)
	}
	return nil
}

// CompressionOptions converts the compression section for the object store.
func (c *Config) CompressionOptions() safe.CompressionOptions {
	return safe.CompressionOptions{
		MinSize: c.Compression.MinSize,
		Level:   c.Compression.Level,
	}
}
