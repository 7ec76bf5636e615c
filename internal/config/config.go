package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/clientboot/internal/foundation/errors"
)

// DefaultPath is where the CLI looks for configuration unless -c is given.
const DefaultPath = "clientboot.yaml"

// Config represents the application configuration.
type Config struct {
	Activation  ActivationConfig  `yaml:"activation"`
	Storage     StorageConfig     `yaml:"storage"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Server      ServerConfig      `yaml:"server"`
	Daemon      DaemonConfig      `yaml:"daemon"`
}

// ActivationConfig describes how to reach the client activation endpoint.
type ActivationConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	UserAgent string        `yaml:"user_agent,omitempty"`
}

// StorageConfig selects the shared key-value store. All instances pointing at
// the same path, or the same NATS bucket, form one storage origin.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend"`
	Path    string         `yaml:"path,omitempty"`
	NATSURL string         `yaml:"nats_url,omitempty"`
	Bucket  string         `yaml:"bucket,omitempty"`
}

// CoordinatorConfig holds the lease/poll timing.
type CoordinatorConfig struct {
	Window       time.Duration    `yaml:"window,omitempty"`
	PollAttempts int              `yaml:"poll_attempts,omitempty"`
	PollBackoff  RetryBackoffMode `yaml:"poll_backoff,omitempty"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// MetricsConfig toggles Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig configures the reference activation endpoint.
type ServerConfig struct {
	ListenAddr string        `yaml:"listen_addr,omitempty"`
	CookieName string        `yaml:"cookie_name,omitempty"`
	TokenTTL   time.Duration `yaml:"token_ttl,omitempty"`
	// FailEvery makes every n-th activation request fail with ErrorCode (0 disables).
	FailEvery int `yaml:"fail_every,omitempty"`
	ErrorCode int `yaml:"error_code,omitempty"`
}

// DaemonConfig configures periodic re-activation.
type DaemonConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`
}

// ErrNotFound is returned by Load when the configuration file does not exist.
var ErrNotFound = errors.NewError(errors.CategoryNotFound, "configuration file not found").Build()

// Load reads, expands, defaults and validates the configuration at configPath.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ErrNotFound.WithContext("path", configPath)
	}

	// #nosec G304 -- configPath is chosen by the operator
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).Fatal().Build()
	}
	return Parse(data)
}

// Parse decodes YAML (after environment expansion), applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration built only from defaults.
func Default() *Config {
	var cfg Config
	_ = applyDefaults(&cfg) // defaults never fail on an empty config
	return &cfg
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", configPath).Fatal().Build()
	}
	return nil
}

const exampleConfig = `# clientboot configuration
activation:
  base_url: "${CLIENTBOOT_BASE_URL}"
  timeout: 10s

storage:
  # memory | fs | sqlite | nats
  backend: sqlite
  path: ./clientboot-state.db
  # nats_url: nats://127.0.0.1:4222
  # bucket: clientboot

coordinator:
  window: 5s
  poll_attempts: 5
  poll_backoff: fixed

logging:
  level: info
  format: text

metrics:
  enabled: false

server:
  listen_addr: ":8080"
  cookie_name: clientboot_client
  token_ttl: 720h

daemon:
  refresh_interval: 1h
`
