package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ICESCAN_LOG_LEVEL", "ICESCAN_LOG_FORMAT", "ICESCAN_LISTEN_ADDR",
		"ICESCAN_ALLOW_MOVED_PATHS", "ICESCAN_CONCURRENCY", "ICESCAN_IO_RPS",
		"ICESCAN_IO_BURST", "ICESCAN_S3_KEY_ID", "ICESCAN_S3_SECRET",
		"ICESCAN_S3_ENDPOINT", "ICESCAN_S3_REGION", "ICESCAN_S3_URL_STYLE",
		"ICESCAN_AZURE_ACCOUNT_NAME", "ICESCAN_AZURE_ACCOUNT_KEY",
		"ICESCAN_GCS_KEY_FILE", "ICESCAN_GCS_ENABLED",
		"ICESCAN_API_RPS", "ICESCAN_API_BURST", "ICESCAN_API_KEYS",
		"ICESCAN_API_JWT_SECRET", "ICESCAN_API_ALLOWED_ROOTS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "127.0.0.1:8181", cfg.ListenAddr)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "path", cfg.S3URLStyle)
	assert.False(t, cfg.AllowMovedPaths)
	assert.Nil(t, cfg.S3KeyID)
	assert.False(t, cfg.HasS3Config())
	assert.False(t, cfg.HasAzureConfig())
	assert.False(t, cfg.HasGCSConfig())
	assert.False(t, cfg.HasAPIAuth())
	assert.Empty(t, cfg.APIAllowedRoots)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("ICESCAN_LOG_LEVEL", "debug")
	t.Setenv("ICESCAN_LOG_FORMAT", "json")
	t.Setenv("ICESCAN_ALLOW_MOVED_PATHS", "true")
	t.Setenv("ICESCAN_CONCURRENCY", "8")
	t.Setenv("ICESCAN_IO_RPS", "50")
	t.Setenv("ICESCAN_S3_KEY_ID", "testkey")
	t.Setenv("ICESCAN_S3_SECRET", "testsecret")
	t.Setenv("ICESCAN_S3_ENDPOINT", "s3.example.com")
	t.Setenv("ICESCAN_S3_REGION", "us-east-1")
	t.Setenv("ICESCAN_AZURE_ACCOUNT_NAME", "acct")
	t.Setenv("ICESCAN_AZURE_ACCOUNT_KEY", "a2V5")
	t.Setenv("ICESCAN_GCS_KEY_FILE", "/secrets/gcs.json")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.AllowMovedPaths)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.InDelta(t, 50.0, cfg.IORequestsPerSecond, 0.001)
	assert.Equal(t, 50, cfg.IOBurst)
	assert.True(t, cfg.HasS3Config())
	require.NotNil(t, cfg.S3Endpoint)
	assert.Equal(t, "s3.example.com", *cfg.S3Endpoint)
	assert.True(t, cfg.HasAzureConfig())
	assert.True(t, cfg.HasGCSConfig())
	assert.Len(t, cfg.Warnings, 1)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"concurrency", "ICESCAN_CONCURRENCY", "many"},
		{"rps", "ICESCAN_IO_RPS", "fast"},
		{"burst", "ICESCAN_IO_BURST", "x"},
		{"log format", "ICESCAN_LOG_FORMAT", "xml"},
		{"url style", "ICESCAN_S3_URL_STYLE", "virtual"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)
			_, err := LoadFromEnv()
			require.Error(t, err)
		})
	}
}

func TestLoadFromEnv_PartialS3Credentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("ICESCAN_S3_KEY_ID", "testkey")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.HasS3Config())
	assert.Len(t, cfg.Warnings, 1)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tc.level}
			assert.Equal(t, tc.want, cfg.SlogLevel())
		})
	}
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "icescan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log-level: warn
allow-moved-paths: true
concurrency: 4
s3:
  key-id: filekey
  secret: filesecret
  region: eu-central-1
  url-style: vhost
gcs:
  enabled: true
`), 0o600))
	t.Setenv("ICESCAN_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.LogLevel)
	assert.True(t, cfg.AllowMovedPaths)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "vhost", cfg.S3URLStyle)
	require.NotNil(t, cfg.S3KeyID)
	assert.Equal(t, "filekey", *cfg.S3KeyID)
	assert.Nil(t, cfg.S3Endpoint)
	assert.True(t, cfg.HasS3Config())
	assert.True(t, cfg.HasGCSConfig())
	assert.Nil(t, cfg.GCSKeyFilePath)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := `# Comment line
ICESCAN_TEST_KEY_A=value_a
ICESCAN_TEST_KEY_B="quoted value"
ICESCAN_TEST_KEY_C='single quoted'

ICESCAN_TEST_KEY_D = spaced
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	for _, k := range []string{"ICESCAN_TEST_KEY_A", "ICESCAN_TEST_KEY_B", "ICESCAN_TEST_KEY_C", "ICESCAN_TEST_KEY_D"} {
		t.Setenv(k, "")
	}

	require.NoError(t, LoadDotEnv(envFile))

	assert.Equal(t, "value_a", os.Getenv("ICESCAN_TEST_KEY_A"))
	assert.Equal(t, "quoted value", os.Getenv("ICESCAN_TEST_KEY_B"))
	assert.Equal(t, "single quoted", os.Getenv("ICESCAN_TEST_KEY_C"))
	assert.Equal(t, "spaced", os.Getenv("ICESCAN_TEST_KEY_D"))
}

func TestLoadDotEnv_DoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ICESCAN_TEST_EXISTING=from_file\n"), 0o644))

	t.Setenv("ICESCAN_TEST_EXISTING", "from_env")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from_env", os.Getenv("ICESCAN_TEST_EXISTING"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	assert.NoError(t, err)
}

func TestLoadFromEnv_APIRateLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("ICESCAN_API_RPS", "2.5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.InDelta(t, 2.5, cfg.APIRequestsPerSecond, 0.001)
	assert.Equal(t, 2, cfg.APIBurst)

	t.Setenv("ICESCAN_API_BURST", "many")
	_, err = LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_APIAccess(t *testing.T) {
	clearEnv(t)
	t.Setenv("ICESCAN_API_KEYS", "k1, ,k2")
	t.Setenv("ICESCAN_API_ALLOWED_ROOTS", "s3://warehouse/, /srv/tables")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, cfg.APIKeys)
	assert.Equal(t, []string{"s3://warehouse/", "/srv/tables"}, cfg.APIAllowedRoots)
	assert.Nil(t, cfg.APIJWTSecret)
	assert.True(t, cfg.HasAPIAuth())
}

func TestLoad_FileAPIAccess(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "icescan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api-jwt-secret: s3cret
api-allowed-roots:
  - gs://lake/tables
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.APIJWTSecret)
	assert.Equal(t, "s3cret", *cfg.APIJWTSecret)
	assert.Equal(t, []string{"gs://lake/tables"}, cfg.APIAllowedRoots)
	assert.True(t, cfg.HasAPIAuth())
}
