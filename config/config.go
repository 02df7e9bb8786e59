package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingAPIKey      = errors.New("SERPER_API_KEY is required")
	ErrInvalidBackend     = errors.New("STORAGE_BACKEND must be one of: postgres, bolt, none")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres backend")
	ErrMissingBoltPath    = errors.New("BOLT_PATH is required for the bolt backend")
	ErrInvalidInterval    = errors.New("CHECKPOINT_INTERVAL must be at least 1")
	ErrInvalidLogLevel    = errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	ErrMissingMinioBucket = errors.New("MINIO_BUCKET is required when MINIO_ENDPOINT is set")
)

const (
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendNone     = "none"
)

type Config struct {
	AppPort int

	SerperAPIKey   string
	SerperBaseURL  string
	ProxyURL       string
	RequestTimeout time.Duration
	RateLimitQPS   float64

	StorageBackend string
	DatabaseURL    string
	BoltPath       string

	ResultsDir         string
	CheckpointInterval int
	ExclusionsPath     string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	LogLevel string
	LogFile  string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	qps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_QPS", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_QPS: %w", err)
	}
	interval, err := strconv.Atoi(getEnv("CHECKPOINT_INTERVAL", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHECKPOINT_INTERVAL: %w", err)
	}
	useSSL, err := strconv.ParseBool(getEnv("MINIO_USE_SSL", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
	}

	cfg := &Config{
		AppPort:            appPort,
		SerperAPIKey:       getEnv("SERPER_API_KEY", ""),
		SerperBaseURL:      getEnv("SERPER_BASE_URL", "https://google.serper.dev"),
		ProxyURL:           getEnv("PROXY_URL", ""),
		RequestTimeout:     timeout,
		RateLimitQPS:       qps,
		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", BackendNone)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		BoltPath:           getEnv("BOLT_PATH", "leadgen.db"),
		ResultsDir:         getEnv("RESULTS_DIR", "results"),
		CheckpointInterval: interval,
		ExclusionsPath:     getEnv("EXCLUSIONS_PATH", ""),
		MinioEndpoint:      getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:        getEnv("MINIO_BUCKET", ""),
		MinioUseSSL:        useSSL,
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:            getEnv("LOG_FILE", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that do not depend on the command being run.
// The API key is checked separately by commands that call the backend.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	case BackendBolt:
		if c.BoltPath == "" {
			return ErrMissingBoltPath
		}
	case BackendNone:
	default:
		return ErrInvalidBackend
	}

	if c.CheckpointInterval < 1 {
		return ErrInvalidInterval
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	if c.MinioEndpoint != "" && c.MinioBucket == "" {
		return ErrMissingMinioBucket
	}
	return nil
}

// RequireAPIKey reports whether searches can be issued
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.SerperAPIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
