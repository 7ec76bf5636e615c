package config

import (
	"net/url"
	"time"

	"git.home.luguber.info/inful/clientboot/internal/foundation"
)

var configValidators = foundation.NewValidatorChain(
	validBaseURL,
	foundation.PositiveDuration("activation.timeout", func(c *Config) time.Duration { return c.Activation.Timeout }),
	foundation.PositiveDuration("coordinator.window", func(c *Config) time.Duration { return c.Coordinator.Window }),
	foundation.AtLeast("coordinator.poll_attempts", func(c *Config) int { return c.Coordinator.PollAttempts }, 1),
	foundation.OneOf("coordinator.poll_backoff", func(c *Config) RetryBackoffMode { return c.Coordinator.PollBackoff },
		RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential),
	validStoragePaths,
	foundation.Required("server.cookie_name", func(c *Config) string { return c.Server.CookieName }),
	foundation.PositiveDuration("server.token_ttl", func(c *Config) time.Duration { return c.Server.TokenTTL }),
	foundation.AtLeast("server.fail_every", func(c *Config) int { return c.Server.FailEvery }, 0),
	foundation.AtLeast("server.error_code", func(c *Config) int { return c.Server.ErrorCode }, 0),
	foundation.PositiveDuration("daemon.refresh_interval", func(c *Config) time.Duration { return c.Daemon.RefreshInterval }),
)

// ValidateConfig checks a fully defaulted configuration.
func ValidateConfig(cfg *Config) error {
	return configValidators.Validate(cfg).ToError()
}

func validBaseURL(c *Config) foundation.ValidationResult {
	u, err := url.Parse(c.Activation.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return foundation.Fail("activation.base_url", "url", "must be an absolute http(s) URL")
	}
	return foundation.ValidationResult{}
}

func validStoragePaths(c *Config) foundation.ValidationResult {
	switch c.Storage.Backend {
	case StorageFS, StorageSQLite:
		if c.Storage.Path == "" {
			return foundation.Fail("storage.path", "required", "is required for the "+string(c.Storage.Backend)+" backend")
		}
	case StorageNATS:
		if c.Storage.NATSURL == "" {
			return foundation.Fail("storage.nats_url", "required", "is required for the nats backend")
		}
	case StorageMemory, StorageUnavailable:
	}
	return foundation.ValidationResult{}
}
