package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/clientboot/internal/foundation/errors"
)

const (
	DefaultBaseURL         = "http://localhost:8080"
	DefaultTimeout         = 10 * time.Second
	DefaultUserAgent       = "clientboot"
	DefaultWindow          = 5 * time.Second
	DefaultPollAttempts    = 5
	DefaultStoragePath     = "clientboot-state"
	DefaultBucket          = "clientboot"
	DefaultListenAddr      = ":8080"
	DefaultCookieName      = "clientboot_client"
	DefaultTokenTTL        = 30 * 24 * time.Hour
	DefaultRefreshInterval = time.Hour
)

// defaultApplier fills zero values for one configuration section.
type defaultApplier interface {
	applyDefaults(cfg *Config) error
}

type activationDefaults struct{}

func (activationDefaults) applyDefaults(cfg *Config) error {
	if cfg.Activation.BaseURL == "" {
		cfg.Activation.BaseURL = DefaultBaseURL
	}
	if cfg.Activation.Timeout == 0 {
		cfg.Activation.Timeout = DefaultTimeout
	}
	if cfg.Activation.UserAgent == "" {
		cfg.Activation.UserAgent = DefaultUserAgent
	}
	return nil
}

type storageDefaults struct{}

func (storageDefaults) applyDefaults(cfg *Config) error {
	backend, err := NormalizeStorageBackend(string(cfg.Storage.Backend))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid storage.backend").Build()
	}
	cfg.Storage.Backend = backend
	if cfg.Storage.Path == "" {
		switch backend {
		case StorageFS:
			cfg.Storage.Path = DefaultStoragePath
		case StorageSQLite:
			cfg.Storage.Path = DefaultStoragePath + ".db"
		case StorageMemory, StorageNATS, StorageUnavailable:
		}
	}
	if backend == StorageNATS && cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = DefaultBucket
	}
	return nil
}

type coordinatorDefaults struct{}

func (coordinatorDefaults) applyDefaults(cfg *Config) error {
	if cfg.Coordinator.Window == 0 {
		cfg.Coordinator.Window = DefaultWindow
	}
	if cfg.Coordinator.PollAttempts == 0 {
		cfg.Coordinator.PollAttempts = DefaultPollAttempts
	}
	if cfg.Coordinator.PollBackoff == "" {
		cfg.Coordinator.PollBackoff = RetryBackoffFixed
	} else if mode := NormalizeRetryBackoff(string(cfg.Coordinator.PollBackoff)); mode != "" {
		cfg.Coordinator.PollBackoff = mode
	}
	return nil
}

type loggingDefaults struct{}

func (loggingDefaults) applyDefaults(cfg *Config) error {
	level, err := logLevelNormalizer.NormalizeWithError(string(cfg.Logging.Level))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid logging.level").Build()
	}
	format, err := logFormatNormalizer.NormalizeWithError(string(cfg.Logging.Format))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid logging.format").Build()
	}
	cfg.Logging.Level = level
	cfg.Logging.Format = format
	return nil
}

type serverDefaults struct{}

func (serverDefaults) applyDefaults(cfg *Config) error {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.CookieName == "" {
		cfg.Server.CookieName = DefaultCookieName
	}
	if cfg.Server.TokenTTL == 0 {
		cfg.Server.TokenTTL = DefaultTokenTTL
	}
	return nil
}

type daemonDefaults struct{}

func (daemonDefaults) applyDefaults(cfg *Config) error {
	if cfg.Daemon.RefreshInterval == 0 {
		cfg.Daemon.RefreshInterval = DefaultRefreshInterval
	}
	return nil
}

func applyDefaults(cfg *Config) error {
	appliers := []defaultApplier{
		activationDefaults{},
		storageDefaults{},
		coordinatorDefaults{},
		loggingDefaults{},
		serverDefaults{},
		daemonDefaults{},
	}
	for _, a := range appliers {
		if err := a.applyDefaults(cfg); err != nil {
			return fmt.Errorf("apply defaults: %w", err)
		}
	}
	return nil
}
