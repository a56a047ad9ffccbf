package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yml")} {
		c, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) error = %v", path, err)
		}

		if c.Server.Addr != ":5000" {
			t.Errorf("Server.Addr = %q", c.Server.Addr)
		}
		if c.Server.AllowOrigin != "*" {
			t.Errorf("Server.AllowOrigin = %q", c.Server.AllowOrigin)
		}
		if c.Source.Origin != "https://www.last.fm" {
			t.Errorf("Source.Origin = %q", c.Source.Origin)
		}
		if c.Source.Timeout != 15*time.Second {
			t.Errorf("Source.Timeout = %s", c.Source.Timeout)
		}
		if c.StopAfter() != 2 {
			t.Errorf("StopAfter() = %d, want 2", c.StopAfter())
		}
		if c.Cache.Backend != "memory" || c.Cache.MaxEntries != 0 {
			t.Errorf("Cache = %+v", c.Cache)
		}
		if opts := c.FetchOptions(); opts.MaxRetries != 2 {
			t.Errorf("FetchOptions().MaxRetries = %d, want 2", opts.MaxRetries)
		}
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:8080"
  read_timeout: 3s
  allow_origin: "https://gigs.example.com"
source:
  origin: "http://localhost:9999"
  timeout: 500ms
  max_retries: 0
pipeline:
  stop_after: 0
cache:
  backend: SQLite
  sqlite_path: /tmp/events.db
log:
  level: debug
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Server.Addr != "127.0.0.1:8080" || c.Server.ReadTimeout != 3*time.Second {
		t.Errorf("Server = %+v", c.Server)
	}
	if c.Server.WriteTimeout != 60*time.Second {
		t.Errorf("unset WriteTimeout should default, got %s", c.Server.WriteTimeout)
	}
	if c.Source.Timeout != 500*time.Millisecond {
		t.Errorf("Source.Timeout = %s", c.Source.Timeout)
	}
	if opts := c.FetchOptions(); opts.MaxRetries != 0 {
		t.Errorf("explicit max_retries 0 was overridden: %d", opts.MaxRetries)
	}
	if c.StopAfter() != 0 {
		t.Errorf("explicit stop_after 0 was overridden: %d", c.StopAfter())
	}
	if c.Cache.Backend != "sqlite" || c.Cache.SQLitePath != "/tmp/events.db" {
		t.Errorf("Cache = %+v", c.Cache)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAddr, ":7000")
	t.Setenv(EnvLogLevel, "warn")

	c, err := Load(writeConfig(t, "server:\n  addr: \":6000\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q, want the environment value", c.Server.Addr)
	}
	if c.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", c.Log.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed yaml", "server: [", "parse yaml"},
		{"single event threshold", "pipeline:\n  stop_after: 1\n", "stop_after"},
		{"negative threshold", "pipeline:\n  stop_after: -3\n", "stop_after"},
		{"relative origin", "source:\n  origin: www.last.fm\n", "source.origin"},
		{"unknown backend", "cache:\n  backend: redis\n", "cache.backend"},
		{"negative max entries", "cache:\n  max_entries: -1\n", "max_entries"},
		{"negative retries", "source:\n  max_retries: -1\n", "max_retries"},
		{"unknown log level", "log:\n  level: chatty\n", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, should mention %q", err, tt.wantErr)
			}
		})
	}
}
