package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{
		"APP_PORT", "REQUEST_TIMEOUT", "RATE_LIMIT_QPS", "STORAGE_BACKEND",
		"CHECKPOINT_INTERVAL", "LOG_LEVEL", "MINIO_ENDPOINT", "MINIO_USE_SSL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppPort != 8080 || cfg.RequestTimeout != 30*time.Second || cfg.CheckpointInterval != 50 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.StorageBackend != BackendNone || cfg.ResultsDir != "results" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_PORT", "9000")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("STORAGE_BACKEND", "Bolt")
	t.Setenv("BOLT_PATH", "x.db")
	t.Setenv("CHECKPOINT_INTERVAL", "10")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MINIO_ENDPOINT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppPort != 9000 || cfg.RequestTimeout != 5*time.Second || cfg.StorageBackend != BackendBolt {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{StorageBackend: BackendNone, CheckpointInterval: 50, LogLevel: "info"}

	testCases := []struct {
		name   string
		modify func(c *Config)
		want   error
	}{
		{"Valid", func(c *Config) {}, nil},
		{"UnknownBackend", func(c *Config) { c.StorageBackend = "mysql" }, ErrInvalidBackend},
		{"PostgresWithoutURL", func(c *Config) { c.StorageBackend = BackendPostgres }, ErrMissingDatabaseURL},
		{"BoltWithoutPath", func(c *Config) { c.StorageBackend = BackendBolt }, ErrMissingBoltPath},
		{"ZeroInterval", func(c *Config) { c.CheckpointInterval = 0 }, ErrInvalidInterval},
		{"BadLogLevel", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
		{"MinioWithoutBucket", func(c *Config) { c.MinioEndpoint = "localhost:9000" }, ErrMissingMinioBucket},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.modify(&c)
			if err := c.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if err := valid.RequireAPIKey(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestExclusions(t *testing.T) {
	def := DefaultExclusions()
	q := def.QueryString()
	if !strings.HasPrefix(q, "-site:amazon.com -site:ebay.com") {
		t.Errorf("unexpected default exclusions: %.60s", q)
	}
	if !strings.Contains(q, "-site:kompass.com") {
		t.Errorf("expected b2b directories in the default list")
	}

	path := filepath.Join(t.TempDir(), "exclusions.yaml")
	data := `
include_b2b_directories: false
categories:
  social: [Facebook.com, linkedin.com]
  markets: [amazon.com, facebook.com]
b2b_directories: [kompass.com]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	e, err := LoadExclusions(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.QueryString(); got != "-site:facebook.com -site:linkedin.com -site:amazon.com" {
		t.Errorf("unexpected exclusions %q", got)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
