package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects how tokens are issued.
type Mode string

const (
	// ModeSingle serves exactly one document behind one fixed token.
	ModeSingle Mode = "single"
	// ModeMulti mints a token per document and stores them as discoverable files.
	ModeMulti Mode = "multi"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

type Config struct {
	Mode      Mode
	Backend   string
	Dir       string
	TokenFile string

	Host     string
	Port     string
	BaseURL  string
	CertFile string
	KeyFile  string

	PollInterval  time.Duration
	FSNotify      bool
	SessionSecret string

	DatabaseURL string
	S3          S3Config

	LogFile  string
	LogDebug bool
}

type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// TLSEnabled reports whether both certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is fine, the OS environment is used as-is.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can avoid touching the process env.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Mode:          Mode(strings.ToLower(get("JOT_MODE", string(ModeMulti)))),
		Backend:       strings.ToLower(get("JOT_BACKEND", BackendFile)),
		Dir:           get("JOT_DIR", "jots"),
		Host:          get("JOT_HOST", "localhost"),
		Port:          get("JOT_PORT", "8000"),
		CertFile:      get("JOT_CERT_FILE", ""),
		KeyFile:       get("JOT_KEY_FILE", ""),
		SessionSecret: get("JOT_SESSION_SECRET", ""),
		DatabaseURL:   get("JOT_DATABASE_URL", ""),
		S3: S3Config{
			Bucket:    get("JOT_S3_BUCKET", ""),
			Prefix:    get("JOT_S3_PREFIX", ""),
			Region:    get("JOT_S3_REGION", "us-east-1"),
			Endpoint:  get("JOT_S3_ENDPOINT", ""),
			AccessKey: get("JOT_S3_ACCESS_KEY", ""),
			SecretKey: get("JOT_S3_SECRET_KEY", ""),
		},
		LogFile: get("JOT_LOG_FILE", ""),
	}
	cfg.TokenFile = get("JOT_TOKEN_FILE", filepath.Join(cfg.Dir, ".token"))

	var err error
	if cfg.PollInterval, err = time.ParseDuration(get("JOT_POLL_INTERVAL", "100ms")); err != nil {
		return nil, fmt.Errorf("JOT_POLL_INTERVAL: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("JOT_POLL_INTERVAL must be positive")
	}
	if cfg.FSNotify, err = strconv.ParseBool(get("JOT_FS_NOTIFY", "true")); err != nil {
		return nil, fmt.Errorf("JOT_FS_NOTIFY: %w", err)
	}
	if cfg.LogDebug, err = strconv.ParseBool(get("JOT_LOG_DEBUG", "false")); err != nil {
		return nil, fmt.Errorf("JOT_LOG_DEBUG: %w", err)
	}

	switch cfg.Mode {
	case ModeSingle, ModeMulti:
	default:
		return nil, fmt.Errorf("JOT_MODE must be single or multi, got %q", cfg.Mode)
	}

	switch cfg.Backend {
	case BackendFile:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("JOT_DATABASE_URL is required for the postgres backend")
		}
	case BackendS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("JOT_S3_BUCKET is required for the s3 backend")
		}
	default:
		return nil, fmt.Errorf("JOT_BACKEND must be file, postgres or s3, got %q", cfg.Backend)
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("JOT_PORT: %w", err)
	}

	scheme := "http"
	if cfg.TLSEnabled() {
		scheme = "https"
	}
	cfg.BaseURL = strings.TrimSuffix(get("JOT_BASE_URL", fmt.Sprintf("%s://%s:%s", scheme, cfg.Host, cfg.Port)), "/")

	return cfg, nil
}
