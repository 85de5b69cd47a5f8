// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
	Extraction    ExtractionConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxUploadBytes     int64 // caps statement request bodies
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	// URL overrides the individual fields when set.
	URL string
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type AuthConfig struct {
	JWTSecret string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       string
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

type ExtractionConfig struct {
	// RulesFile points at a YAML rule set; empty means the embedded defaults.
	RulesFile     string
	Workers       int
	MinTextLength int
	// Permissive widens description bounds when no rules file is given.
	Permissive bool
}

// Load reads the configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	var errs []error
	l := loader{errs: &errs}

	cfg := &Config{
		Server: ServerConfig{
			Host:               l.getString("SERVER_HOST", "0.0.0.0"),
			Port:               l.getInt("SERVER_PORT", 8080),
			RateLimitPerSecond: l.getInt("RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     l.getInt("RATE_LIMIT_BURST", 40),
			MaxUploadBytes:     int64(l.getInt("MAX_UPLOAD_BYTES", 10<<20)),
			ShutdownTimeout:    l.getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     l.getString("DB_HOST", "localhost"),
			Port:     l.getInt("DB_PORT", 5432),
			User:     l.getString("DB_USER", "postgres"),
			Password: l.getString("DB_PASSWORD", "postgres"),
			Name:     l.getString("DB_NAME", "familia"),
			SSLMode:  l.getString("DB_SSLMODE", "disable"),
			URL:      l.getString("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret: l.getString("JWT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: l.getBool("METRICS_ENABLED", true),
			LogLevel:       strings.ToLower(l.getString("LOG_LEVEL", "info")),
		},
		Profiling: ProfilingConfig{
			Enabled: l.getBool("PPROF_ENABLED", false),
			Port:    l.getInt("PPROF_PORT", 6060),
		},
		Extraction: ExtractionConfig{
			RulesFile:     l.getString("EXTRACTION_RULES_FILE", ""),
			Workers:       l.getInt("EXTRACTION_WORKERS", 0),
			MinTextLength: l.getInt("EXTRACTION_MIN_TEXT_LENGTH", 50),
			Permissive:    l.getBool("EXTRACTION_PERMISSIVE", false),
		},
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT out of range: %d", cfg.Server.Port))
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if cfg.Extraction.Workers < 0 {
		errs = append(errs, errors.New("EXTRACTION_WORKERS must not be negative"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

type loader struct {
	errs *[]error
}

func (l loader) getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (l loader) getInt(key string, def int) int {
	v := l.getString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (l loader) getBool(key string, def bool) bool {
	v := l.getString(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (l loader) getDuration(key string, def time.Duration) time.Duration {
	v := l.getString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
