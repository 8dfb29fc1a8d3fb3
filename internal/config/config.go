// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	vigilerr "github.com/vigil-dev/vigil/pkg/errors"
)

// Config is the top-level vigil configuration.
type Config struct {
	Listen    string         `mapstructure:"listen"`
	DataDir   string         `mapstructure:"data_dir"`
	StateFile string         `mapstructure:"state_file"`
	Storage   StorageConfig  `mapstructure:"storage"`
	Watchdog  WatchdogConfig `mapstructure:"watchdog"`
	Notify    NotifyConfig   `mapstructure:"notify"`
	Log       LogConfig      `mapstructure:"log"`
}

// StorageConfig selects the state store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// WatchdogConfig holds the liveness policy.
type WatchdogConfig struct {
	// Timeout is the maximum tolerated heartbeat silence before alerting.
	Timeout time.Duration `mapstructure:"timeout"`
	// ExpectedAlertname is the alert label a heartbeat must carry.
	ExpectedAlertname string `mapstructure:"expected_alertname"`
	// ResendInterval is the minimum spacing between repeated alerts.
	ResendInterval time.Duration `mapstructure:"resend_interval"`
}

// NotifyConfig controls the outbound notification channel.
type NotifyConfig struct {
	WebhookURL  string        `mapstructure:"webhook_url"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SetDefaults installs vigil's default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:5001")
	v.SetDefault("data_dir", "/var/lib/vigil")
	v.SetDefault("state_file", "watchdog_state.json")
	v.SetDefault("storage.backend", "file")
	v.SetDefault("watchdog.timeout", time.Hour)
	v.SetDefault("watchdog.expected_alertname", "Watchdog")
	v.SetDefault("watchdog.resend_interval", 6*time.Hour)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.send_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
}

// SetupEnv binds environment variables with the VIGIL_ prefix, so e.g.
// VIGIL_WATCHDOG_TIMEOUT=90s overrides watchdog.timeout.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (optional) with environment
// variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, vigilerr.Errorf(vigilerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a prepared viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue, "config: listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"config: listen must be a valid host:port address, got %q: %w", c.Listen, err))
	} else if port, err := strconv.Atoi(portStr); err != nil || port < 1 || port > 65535 {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"config: listen port must be between 1 and 65535, got %q", portStr))
	}

	if c.DataDir == "" {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue, "config: data_dir must not be empty"))
	}
	if c.StateFile == "" {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue, "config: state_file must not be empty"))
	}

	validBackends := map[string]bool{"file": true, "sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [file, sqlite, memory], got %q", c.Storage.Backend))
	}

	if c.Watchdog.Timeout <= 0 {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"config: watchdog.timeout must be greater than 0, got %s", c.Watchdog.Timeout))
	}
	if c.Watchdog.ExpectedAlertname == "" {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue, "config: watchdog.expected_alertname must not be empty"))
	}
	if c.Watchdog.ResendInterval <= 0 {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"config: watchdog.resend_interval must be greater than 0, got %s", c.Watchdog.ResendInterval))
	}

	if c.Notify.SendTimeout <= 0 {
		errs = append(errs, vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"config: notify.send_timeout must be greater than 0, got %s", c.Notify.SendTimeout))
	}

	return errs
}
