// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds reader behaviour, logging, HTTP and storage settings.
type Config struct {
	LogLevel  string // log level: debug, info, warn, error (default "info")
	LogFormat string // "text" (default) or "json"

	// AllowMovedPaths rebases recorded file locations onto the table root.
	// Debug/compatibility option for tables copied without rewriting metadata.
	AllowMovedPaths bool
	Concurrency     int    // manifests read in parallel during a load (default 1)
	ListenAddr      string // HTTP listen address for serve (default "127.0.0.1:8181")

	// IO throttling; zero RPS disables it.
	IORequestsPerSecond float64
	IOBurst             int

	// Per-client HTTP rate limit for serve; zero RPS disables it.
	APIRequestsPerSecond float64
	APIBurst             int

	// HTTP API access. Keys are accepted in X-API-Key; the secret validates
	// HS256 bearer tokens. APIAllowedRoots lists the table location prefixes
	// serve may read; nothing is readable when it is empty.
	APIKeys         []string
	APIJWTSecret    *string
	APIAllowedRoots []string

	// S3 fields are optional, nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string
	S3URLStyle string // "path" (default) or "vhost"

	// Azure Blob Storage, shared-key auth.
	AzureAccountName *string
	AzureAccountKey  *string

	// GCS; a nil key file uses application default credentials when
	// GCSEnabled is set.
	GCSKeyFilePath *string
	GCSEnabled     bool

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// fileConfig is the YAML layout accepted by Load.
type fileConfig struct {
	LogLevel        string   `yaml:"log-level"`
	LogFormat       string   `yaml:"log-format"`
	AllowMovedPaths *bool    `yaml:"allow-moved-paths"`
	Concurrency     int      `yaml:"concurrency"`
	ListenAddr      string   `yaml:"listen-addr"`
	IORPS           float64  `yaml:"io-requests-per-second"`
	IOBurst         int      `yaml:"io-burst"`
	APIRPS          float64  `yaml:"api-requests-per-second"`
	APIBurst        int      `yaml:"api-burst"`
	APIKeys         []string `yaml:"api-keys"`
	APIJWTSecret    string   `yaml:"api-jwt-secret"`
	APIAllowedRoots []string `yaml:"api-allowed-roots"`
	S3              struct {
		KeyID    string `yaml:"key-id"`
		Secret   string `yaml:"secret"`
		Endpoint string `yaml:"endpoint"`
		Region   string `yaml:"region"`
		URLStyle string `yaml:"url-style"`
	} `yaml:"s3"`
	Azure struct {
		AccountName string `yaml:"account-name"`
		AccountKey  string `yaml:"account-key"`
	} `yaml:"azure"`
	GCS struct {
		Enabled     bool   `yaml:"enabled"`
		KeyFilePath string `yaml:"key-file"`
	} `yaml:"gcs"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HasS3Config returns true if all required S3 fields are set.
func (c *Config) HasS3Config() bool {
	return c.S3KeyID != nil && c.S3Secret != nil && c.S3Region != nil
}

// HasAzureConfig returns true if shared-key Azure credentials are set.
func (c *Config) HasAzureConfig() bool {
	return c.AzureAccountName != nil && c.AzureAccountKey != nil
}

// HasGCSConfig returns true if GCS access is enabled.
func (c *Config) HasGCSConfig() bool {
	return c.GCSEnabled || c.GCSKeyFilePath != nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Load builds the configuration from an optional YAML file overlaid with
// ICESCAN_* environment variables. Environment values take precedence.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	setString(&cfg.LogLevel, "ICESCAN_LOG_LEVEL")
	setString(&cfg.LogFormat, "ICESCAN_LOG_FORMAT")
	setString(&cfg.ListenAddr, "ICESCAN_LISTEN_ADDR")
	setString(&cfg.S3URLStyle, "ICESCAN_S3_URL_STYLE")
	cfg.AllowMovedPaths = parseBoolEnvDefault("ICESCAN_ALLOW_MOVED_PATHS", cfg.AllowMovedPaths)
	cfg.GCSEnabled = parseBoolEnvDefault("ICESCAN_GCS_ENABLED", cfg.GCSEnabled)

	if v := os.Getenv("ICESCAN_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ICESCAN_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = n
	}
	if v := os.Getenv("ICESCAN_IO_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ICESCAN_IO_RPS: %w", err)
		}
		cfg.IORequestsPerSecond = f
	}
	if v := os.Getenv("ICESCAN_IO_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ICESCAN_IO_BURST: %w", err)
		}
		cfg.IOBurst = n
	}
	if v := os.Getenv("ICESCAN_API_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ICESCAN_API_RPS: %w", err)
		}
		cfg.APIRequestsPerSecond = f
	}
	if v := os.Getenv("ICESCAN_API_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ICESCAN_API_BURST: %w", err)
		}
		cfg.APIBurst = n
	}

	// Credentials are optional, only set if present
	setOptional(&cfg.S3KeyID, "ICESCAN_S3_KEY_ID")
	setOptional(&cfg.S3Secret, "ICESCAN_S3_SECRET")
	setOptional(&cfg.S3Endpoint, "ICESCAN_S3_ENDPOINT")
	setOptional(&cfg.S3Region, "ICESCAN_S3_REGION")
	setOptional(&cfg.AzureAccountName, "ICESCAN_AZURE_ACCOUNT_NAME")
	setOptional(&cfg.AzureAccountKey, "ICESCAN_AZURE_ACCOUNT_KEY")
	setOptional(&cfg.GCSKeyFilePath, "ICESCAN_GCS_KEY_FILE")
	setOptional(&cfg.APIJWTSecret, "ICESCAN_API_JWT_SECRET")
	setList(&cfg.APIKeys, "ICESCAN_API_KEYS")
	setList(&cfg.APIAllowedRoots, "ICESCAN_API_ALLOWED_ROOTS")

	// Defaults
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8181"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.S3URLStyle == "" {
		cfg.S3URLStyle = "path"
	}
	if cfg.IORequestsPerSecond > 0 && cfg.IOBurst <= 0 {
		cfg.IOBurst = max(1, int(cfg.IORequestsPerSecond))
	}
	if cfg.APIRequestsPerSecond > 0 && cfg.APIBurst <= 0 {
		cfg.APIBurst = max(1, int(cfg.APIRequestsPerSecond))
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("unsupported log format %q: use 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.S3URLStyle != "path" && cfg.S3URLStyle != "vhost" {
		return nil, fmt.Errorf("unsupported S3 URL style %q: use 'path' or 'vhost'", cfg.S3URLStyle)
	}
	if cfg.AllowMovedPaths {
		cfg.Warnings = append(cfg.Warnings, "allow-moved-paths is enabled; recorded file locations are rebased onto the table root")
	}
	if (cfg.S3KeyID == nil) != (cfg.S3Secret == nil) {
		cfg.Warnings = append(cfg.Warnings, "S3 key id and secret must be set together; S3 access is disabled")
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.LogLevel = fc.LogLevel
	cfg.LogFormat = fc.LogFormat
	if fc.AllowMovedPaths != nil {
		cfg.AllowMovedPaths = *fc.AllowMovedPaths
	}
	cfg.Concurrency = fc.Concurrency
	cfg.ListenAddr = fc.ListenAddr
	cfg.IORequestsPerSecond = fc.IORPS
	cfg.IOBurst = fc.IOBurst
	cfg.APIRequestsPerSecond = fc.APIRPS
	cfg.APIBurst = fc.APIBurst
	cfg.APIKeys = fc.APIKeys
	cfg.APIJWTSecret = nonEmpty(fc.APIJWTSecret)
	cfg.APIAllowedRoots = fc.APIAllowedRoots
	cfg.S3KeyID = nonEmpty(fc.S3.KeyID)
	cfg.S3Secret = nonEmpty(fc.S3.Secret)
	cfg.S3Endpoint = nonEmpty(fc.S3.Endpoint)
	cfg.S3Region = nonEmpty(fc.S3.Region)
	cfg.S3URLStyle = fc.S3.URLStyle
	cfg.AzureAccountName = nonEmpty(fc.Azure.AccountName)
	cfg.AzureAccountKey = nonEmpty(fc.Azure.AccountKey)
	cfg.GCSEnabled = fc.GCS.Enabled
	cfg.GCSKeyFilePath = nonEmpty(fc.GCS.KeyFilePath)
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setOptional(dst **string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = &v
	}
}

// setList splits a comma-separated variable, dropping blank items.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

// HasAPIAuth returns true if the HTTP API has any credential configured.
func (c *Config) HasAPIAuth() bool {
	return len(c.APIKeys) > 0 || c.APIJWTSecret != nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
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
		key = strings.TrimSpace(key)
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
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
