// Package config loads folio's configuration from a YAML file and FOLIO_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/folio/internal/circuitbreaker"
	"github.com/oriys/folio/internal/medium"
	"github.com/oriys/folio/internal/observability"
	"github.com/oriys/folio/internal/prefs"
	"github.com/oriys/folio/internal/session"
)

// Content sources.
const (
	SourceMemory   = "memory"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Session modes.
const (
	SessionStatic = "static"
	SessionJWT    = "jwt"
	SessionHTTP   = "http"
)

// ContentConfig selects and configures the content service.
type ContentConfig struct {
	Source      string                `yaml:"source"`
	BaseURL     string                `yaml:"base_url"`
	Token       string                `yaml:"token"`
	Timeout     time.Duration         `yaml:"timeout"`
	PostgresDSN string                `yaml:"postgres_dsn"`
	SeedFile    string                `yaml:"seed_file"`
	Breaker     circuitbreaker.Config `yaml:"breaker"`
}

// StorageConfig configures the media behind persisted preferences. The
// session medium is always in-memory; Durable picks the other one.
type StorageConfig struct {
	Origin            string             `yaml:"origin"`
	Durable           string             `yaml:"durable"`
	SQLitePath        string             `yaml:"sqlite_path"`
	Redis             medium.RedisConfig `yaml:"redis"`
	SessionQuotaBytes int                `yaml:"session_quota_bytes"`
	Timeout           time.Duration      `yaml:"timeout"`
}

// SessionConfig configures the session gate.
type SessionConfig struct {
	Mode          string            `yaml:"mode"`
	Authenticated bool              `yaml:"authenticated"`
	Subject       string            `yaml:"subject"`
	Token         string            `yaml:"token"`
	JWT           session.JWTConfig `yaml:"jwt"`
	Endpoint      string            `yaml:"endpoint"`
}

// LogConfig configures operational and audit logging.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // text, json
	AuditFile string `yaml:"audit_file"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// PrefsConfig holds preference defaults.
type PrefsConfig struct {
	DefaultTheme  string `yaml:"default_theme"`
	DefaultLocale string `yaml:"default_locale"`
}

// ServeConfig configures `folio serve`.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the central configuration struct.
type Config struct {
	Content   ContentConfig        `yaml:"content"`
	Storage   StorageConfig        `yaml:"storage"`
	Session   SessionConfig        `yaml:"session"`
	Log       LogConfig            `yaml:"log"`
	Metrics   MetricsConfig        `yaml:"metrics"`
	Telemetry observability.Config `yaml:"telemetry"`
	Prefs     PrefsConfig          `yaml:"prefs"`
	Serve     ServeConfig          `yaml:"serve"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Content: ContentConfig{
			Source:  SourceMemory,
			Timeout: 10 * time.Second,
			Breaker: circuitbreaker.Config{
				ErrorPct:       50,
				MinRequests:    5,
				WindowDuration: 30 * time.Second,
				OpenDuration:   15 * time.Second,
				HalfOpenProbes: 1,
			},
		},
		Storage: StorageConfig{
			Origin:            "http://localhost",
			Durable:           string(medium.KindSQLite),
			SQLitePath:        "folio.db",
			Redis:             medium.RedisConfig{Addr: "localhost:6379"},
			SessionQuotaBytes: 5 << 20,
			Timeout:           250 * time.Millisecond,
		},
		Session: SessionConfig{
			Mode: SessionStatic,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "folio",
		},
		Telemetry: observability.Config{
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "folio",
			SampleRate:  1.0,
		},
		Prefs: PrefsConfig{
			DefaultTheme:  string(prefs.ThemeSystem),
			DefaultLocale: "en",
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("FOLIO_CONTENT_SOURCE"); v != "" {
		cfg.Content.Source = v
	}
	if v := os.Getenv("FOLIO_CONTENT_URL"); v != "" {
		cfg.Content.BaseURL = v
	}
	if v := os.Getenv("FOLIO_CONTENT_TOKEN"); v != "" {
		cfg.Content.Token = v
	}
	if v := os.Getenv("FOLIO_CONTENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Content.Timeout = d
		}
	}
	if v := os.Getenv("FOLIO_POSTGRES_DSN"); v != "" {
		cfg.Content.PostgresDSN = v
	}
	if v := os.Getenv("FOLIO_SEED_FILE"); v != "" {
		cfg.Content.SeedFile = v
	}
	if v := os.Getenv("FOLIO_STORAGE_ORIGIN"); v != "" {
		cfg.Storage.Origin = v
	}
	if v := os.Getenv("FOLIO_STORAGE_DURABLE"); v != "" {
		cfg.Storage.Durable = v
	}
	if v := os.Getenv("FOLIO_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("FOLIO_REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v := os.Getenv("FOLIO_REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}
	if v := os.Getenv("FOLIO_SESSION_MODE"); v != "" {
		cfg.Session.Mode = v
	}
	if v := os.Getenv("FOLIO_SESSION_AUTHENTICATED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.Authenticated = b
		}
	}
	if v := os.Getenv("FOLIO_SESSION_TOKEN"); v != "" {
		cfg.Session.Token = v
	}
	if v := os.Getenv("FOLIO_JWT_SECRET"); v != "" {
		cfg.Session.JWT.Secret = v
	}
	if v := os.Getenv("FOLIO_SESSION_ENDPOINT"); v != "" {
		cfg.Session.Endpoint = v
	}
	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FOLIO_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("FOLIO_AUDIT_FILE"); v != "" {
		cfg.Log.AuditFile = v
	}
	if v := os.Getenv("FOLIO_OTEL_ENDPOINT"); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = v
	}
	if v := os.Getenv("FOLIO_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Content.Source {
	case SourceMemory:
	case SourceHTTP:
		if strings.TrimSpace(c.Content.BaseURL) == "" {
			return fmt.Errorf("content.base_url is required for source %q", SourceHTTP)
		}
	case SourcePostgres:
		if strings.TrimSpace(c.Content.PostgresDSN) == "" {
			return fmt.Errorf("content.postgres_dsn is required for source %q", SourcePostgres)
		}
	default:
		return fmt.Errorf("content.source must be memory, http or postgres, got %q", c.Content.Source)
	}

	kind, err := medium.ParseKind(c.Storage.Durable)
	if err != nil {
		return fmt.Errorf("storage.durable: %w", err)
	}
	if kind == medium.KindSQLite && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required for the sqlite medium")
	}
	if kind == medium.KindRedis && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr is required for the redis medium")
	}

	switch c.Session.Mode {
	case SessionStatic:
	case SessionJWT:
		if c.Session.JWT.Secret == "" && c.Session.JWT.PublicKeyFile == "" {
			return fmt.Errorf("session.jwt needs a secret or a public key file")
		}
	case SessionHTTP:
		if c.Session.Endpoint == "" {
			return fmt.Errorf("session.endpoint is required for mode %q", SessionHTTP)
		}
	default:
		return fmt.Errorf("session.mode must be static, jwt or http, got %q", c.Session.Mode)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if _, err := prefs.ParseTheme(c.Prefs.DefaultTheme); err != nil {
		return fmt.Errorf("prefs.default_theme: %w", err)
	}
	if _, err := prefs.ParseLocale(c.Prefs.DefaultLocale); err != nil {
		return fmt.Errorf("prefs.default_locale: %w", err)
	}
	return nil
}
