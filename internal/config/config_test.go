package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/clientboot/internal/foundation/errors"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("activation:\n  base_url: https://api.example.test\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test", cfg.Activation.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Activation.Timeout)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, DefaultWindow, cfg.Coordinator.Window)
	assert.Equal(t, DefaultPollAttempts, cfg.Coordinator.PollAttempts)
	assert.Equal(t, RetryBackoffFixed, cfg.Coordinator.PollBackoff)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Equal(t, DefaultCookieName, cfg.Server.CookieName)
	assert.Equal(t, DefaultRefreshInterval, cfg.Daemon.RefreshInterval)
}

func TestParse_Durations(t *testing.T) {
	cfg, err := Parse([]byte(`
coordinator:
  window: 250ms
  poll_attempts: 3
storage:
  backend: SQLite
logging:
  level: Warning
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Coordinator.Window)
	assert.Equal(t, 3, cfg.Coordinator.PollAttempts)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, DefaultStoragePath+".db", cfg.Storage.Path)
	assert.Equal(t, LogLevelWarn, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("CB_TEST_URL", "http://activation.internal:9000")
	cfg, err := Parse([]byte("activation:\n  base_url: ${CB_TEST_URL}\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://activation.internal:9000", cfg.Activation.BaseURL)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown backend", "storage:\n  backend: redis\n", "storage.backend"},
		{"bad base url", "activation:\n  base_url: not-a-url\n", "activation.base_url"},
		{"negative window", "coordinator:\n  window: -1s\n", "coordinator.window"},
		{"nats without url", "storage:\n  backend: nats\n", "storage.nats_url"},
		{"bad backoff", "coordinator:\n  poll_backoff: random\n", "coordinator.poll_backoff"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("activation: [unterminated"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestInitThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clientboot.yaml")
	t.Setenv("CLIENTBOOT_BASE_URL", "http://127.0.0.1:8080")

	require.NoError(t, Init(path, false))
	err := Init(path, false)
	require.Error(t, err, "second init without force must refuse to overwrite")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Activation.BaseURL)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, "./clientboot-state.db", cfg.Storage.Path)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, DefaultBaseURL, cfg.Activation.BaseURL)
}

func TestLoadEnvFiles_DoesNotOverride(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, os.WriteFile(".env", []byte("CB_ENV_KEEP=file\nCB_ENV_NEW=file\n"), 0o600))
	t.Setenv("CB_ENV_KEEP", "process")
	t.Setenv("CB_ENV_NEW", "")
	require.NoError(t, os.Unsetenv("CB_ENV_NEW"))

	loadEnvFiles()
	assert.Equal(t, "process", os.Getenv("CB_ENV_KEEP"))
	assert.Equal(t, "file", os.Getenv("CB_ENV_NEW"))
}

func TestLoggingConfig_NewLogger(t *testing.T) {
	var buf safeBuffer
	logger := LoggingConfig{Level: LogLevelWarn, Format: LogFormatJSON}.NewLogger(&buf, false)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	verbose := LoggingConfig{Level: LogLevelWarn}.NewLogger(&buf, true)
	verbose.Debug("debugging")
	assert.Contains(t, buf.String(), "debugging")
}
