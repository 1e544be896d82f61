// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the shell, the HTTP surface, and
// optional object store credentials.
type Config struct {
	// S3 fields are nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string
	S3URLStyle string // "path" (default) or "vhost"

	// Azure and GCS credentials are optional.
	AzureAccount string
	AzureKey     string
	GCSKeyFile   string // service account JSON used by the GCS probe
	GCSHMACKeyID string // HMAC key used by DuckDB's GCS reader
	GCSHMACKey   string

	DuckDBPath string // DuckDB database file; empty means in-memory
	MetaDBPath string // SQLite registry of connected datasets

	// EncryptionKey is a hex-encoded 32-byte AES key. When set, postgres
	// DSNs are encrypted in the registry.
	EncryptionKey string

	LogLevel   string // debug, info, warn, error (default "warn")
	ListenAddr string // HTTP listen address for serve (default ":8080")

	DescribeParallelism int           // concurrent statistic queries per describe (default 4)
	CommandTimeout      time.Duration // per-command engine timeout; 0 disables it

	RestoreDatasets bool // re-register persisted datasets at startup (default true)
	LoadExtensions  bool // INSTALL/LOAD httpfs, json, postgres (default true)

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 50)
	RateLimitBurst int     // burst capacity (default 100)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// HasS3Config returns true if all required S3 fields are set.
func (c *Config) HasS3Config() bool {
	return c.S3KeyID != nil && c.S3Secret != nil &&
		c.S3Endpoint != nil && c.S3Region != nil
}

// HasAzureConfig returns true when an account name and key are set.
func (c *Config) HasAzureConfig() bool {
	return c.AzureAccount != "" && c.AzureKey != ""
}

// HasGCSConfig returns true when GCS HMAC credentials are set.
func (c *Config) HasGCSConfig() bool {
	return c.GCSHMACKeyID != "" && c.GCSHMACKey != ""
}

// LoadFromEnv loads configuration from environment variables.
// Object store variables are optional; local files need none of them.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DuckDBPath:      os.Getenv("TAOTIE_DUCKDB_PATH"),
		MetaDBPath:      os.Getenv("TAOTIE_META_DB_PATH"),
		EncryptionKey:   os.Getenv("TAOTIE_ENCRYPTION_KEY"),
		LogLevel:        os.Getenv("TAOTIE_LOG_LEVEL"),
		ListenAddr:      os.Getenv("TAOTIE_LISTEN_ADDR"),
		S3URLStyle:      os.Getenv("URL_STYLE"),
		AzureAccount:    os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:        os.Getenv("AZURE_STORAGE_KEY"),
		GCSKeyFile:      os.Getenv("GCS_KEY_FILE"),
		GCSHMACKeyID:    os.Getenv("GCS_HMAC_KEY_ID"),
		GCSHMACKey:      os.Getenv("GCS_HMAC_SECRET"),
		RestoreDatasets: parseBoolEnvDefault("TAOTIE_RESTORE_DATASETS", true),
		LoadExtensions:  parseBoolEnvDefault("TAOTIE_LOAD_EXTENSIONS", true),
	}

	if v := os.Getenv("TAOTIE_DESCRIBE_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("TAOTIE_DESCRIBE_PARALLELISM must be a positive integer, got %q", v)
		}
		cfg.DescribeParallelism = n
	}
	if v := os.Getenv("TAOTIE_COMMAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("TAOTIE_COMMAND_TIMEOUT must be a non-negative duration, got %q", v)
		}
		cfg.CommandTimeout = d
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// S3 fields are only set if present
	if v := os.Getenv("KEY_ID"); v != "" {
		cfg.S3KeyID = &v
	}
	if v := os.Getenv("SECRET"); v != "" {
		cfg.S3Secret = &v
	}
	if v := os.Getenv("ENDPOINT"); v != "" {
		cfg.S3Endpoint = &v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.S3Region = &v
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = defaultMetaDBPath()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	if cfg.DescribeParallelism == 0 {
		cfg.DescribeParallelism = 4
	}
	if cfg.S3URLStyle == "" {
		cfg.S3URLStyle = "path"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 100
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.S3KeyID != nil && !cfg.HasS3Config() {
		cfg.Warnings = append(cfg.Warnings, "KEY_ID is set but SECRET, ENDPOINT or REGION is missing; S3 secret not registered")
	}
	if (cfg.AzureAccount == "") != (cfg.AzureKey == "") {
		cfg.Warnings = append(cfg.Warnings, "AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	if cfg.GCSKeyFile != "" {
		if _, err := os.Stat(cfg.GCSKeyFile); err != nil {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("GCS_KEY_FILE %q is not readable: %v", cfg.GCSKeyFile, err))
		}
	}

	return cfg, nil
}

// defaultMetaDBPath returns ~/.taotie/meta.sqlite, falling back to the
// working directory when the home directory cannot be resolved.
func defaultMetaDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "taotie_meta.sqlite"
	}
	return filepath.Join(home, ".taotie", "meta.sqlite")
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
