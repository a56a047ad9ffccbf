// Package config loads the lastfm-events YAML configuration.
//
// A missing file is not an error: every key has a default. Environment
// variables LASTFM_EVENTS_ADDR and LASTFM_EVENTS_LOG_LEVEL override the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pfrederiksen/lastfm-events/internal/cache"
	"github.com/pfrederiksen/lastfm-events/internal/fetch"
	"github.com/pfrederiksen/lastfm-events/internal/logger"
	"github.com/pfrederiksen/lastfm-events/internal/pipeline"
	"github.com/pfrederiksen/lastfm-events/internal/scraper"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvAddr     = "LASTFM_EVENTS_ADDR"
	EnvLogLevel = "LASTFM_EVENTS_LOG_LEVEL"
)

type Server struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	AllowOrigin  string        `yaml:"allow_origin"`
}

type Source struct {
	Origin     string        `yaml:"origin"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

type Pipeline struct {
	StopAfter *int `yaml:"stop_after"`
}

type Cache struct {
	Backend    string `yaml:"backend"`
	MaxEntries int    `yaml:"max_entries"`
	SQLitePath string `yaml:"sqlite_path"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	Source   Source   `yaml:"source"`
	Pipeline Pipeline `yaml:"pipeline"`
	Cache    Cache    `yaml:"cache"`
	Log      Log      `yaml:"log"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path, fills in defaults and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
		}
	}

	c.applyDefaults()
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 90 * time.Second
	}
	if c.Server.AllowOrigin == "" {
		c.Server.AllowOrigin = "*"
	}
	if c.Source.Origin == "" {
		c.Source.Origin = scraper.Origin
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = fetch.UserAgent
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = fetch.Timeout
	}
	if c.Source.MaxRetries == nil {
		n := fetch.MaxRetries
		c.Source.MaxRetries = &n
	}
	if c.Source.Backoff == 0 {
		c.Source.Backoff = fetch.Backoff
	}
	if c.Source.MaxBackoff == 0 {
		c.Source.MaxBackoff = fetch.MaxBackoff
	}
	if c.Pipeline.StopAfter == nil {
		n := pipeline.DefaultStopAfter
		c.Pipeline.StopAfter = &n
	}
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = cache.BackendMemory
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "lastfm-events-cache.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	u, err := url.Parse(c.Source.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.origin must be an absolute URL, got '%s'", c.Source.Origin)
	}
	if c.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout must not be negative")
	}
	if c.Source.MaxRetries != nil && *c.Source.MaxRetries < 0 {
		return fmt.Errorf("source.max_retries must not be negative, got %d", *c.Source.MaxRetries)
	}
	if c.Pipeline.StopAfter != nil {
		switch n := *c.Pipeline.StopAfter; {
		case n < 0:
			return fmt.Errorf("pipeline.stop_after must not be negative, got %d", n)
		case n == 1:
			return fmt.Errorf("pipeline.stop_after must be 0 (no limit) or at least 2, got 1")
		}
	}
	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendSQLite:
	default:
		return fmt.Errorf("unknown cache.backend: %s (must be memory or sqlite)", c.Cache.Backend)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative, got %d", c.Cache.MaxEntries)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// FetchOptions returns the fetcher settings of the source section
func (c *Config) FetchOptions() fetch.Options {
	opts := fetch.Options{
		UserAgent:  c.Source.UserAgent,
		Timeout:    c.Source.Timeout,
		Backoff:    c.Source.Backoff,
		MaxBackoff: c.Source.MaxBackoff,
	}
	if c.Source.MaxRetries != nil {
		opts.MaxRetries = *c.Source.MaxRetries
	}
	return opts
}

// StopAfter returns the pipeline's early termination threshold
func (c *Config) StopAfter() int {
	if c.Pipeline.StopAfter == nil {
		return pipeline.DefaultStopAfter
	}
	return *c.Pipeline.StopAfter
}
