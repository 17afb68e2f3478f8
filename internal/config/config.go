// Package config holds nipslock settings loaded from defaults and an
// optional YAML file. Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/pbaille/nipslock/internal/fetcher"
	"gopkg.in/yaml.v3"
)

// DefaultRepo is the upstream NIP repository recorded in the lockfile
const DefaultRepo = "nostr-protocol/nips"

// Config is the full set of sync settings
type Config struct {
	Repo         string        `yaml:"repo"`
	BaseURL      string        `yaml:"base_url"`
	Ref          string        `yaml:"ref"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	DB           string        `yaml:"db"`
	LogLevel     string        `yaml:"log_level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Repo:         DefaultRepo,
		BaseURL:      fetcher.DefaultBaseURL,
		Ref:          "master",
		UserAgent:    fetcher.DefaultUserAgent,
		Timeout:      fetcher.DefaultTimeout,
		MaxBodyBytes: fetcher.DefaultMaxBody,
		LogLevel:     "warn",
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the settings can drive a sync
func (c *Config) Validate() error {
	if c.Repo == "" {
		return errors.New("repo is required")
	}
	if c.Ref == "" {
		return errors.New("ref is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("max_body_bytes must be positive")
	}
	return nil
}

// FetcherOptions maps the config onto fetcher settings
func (c *Config) FetcherOptions() fetcher.Options {
	return fetcher.Options{
		BaseURL:   c.BaseURL,
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout,
		MaxBody:   c.MaxBodyBytes,
	}
}
