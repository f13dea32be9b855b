/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-appkit/config"
)

// DefaultConfigKeyPrefix is a default key prefix for the backoff configuration parameters.
const DefaultConfigKeyPrefix = "retry"

// Default parameter values for ExponentialBackoff.
const (
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
)

// Configuration keys.
const (
	cfgKeyInitialDelay = "initialDelay"
	cfgKeyMaxDelay     = "maxDelay"
)

// Config represents a configuration for the exponential backoff.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// InitialDelay is a delay before the first retry attempt.
	InitialDelay config.TimeDuration `mapstructure:"initialDelay" yaml:"initialDelay" json:"initialDelay"`

	// MaxDelay is an upper bound for the delay between retry attempts.
	MaxDelay config.TimeDuration `mapstructure:"maxDelay" yaml:"maxDelay" json:"maxDelay"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: DefaultConfigKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return DefaultConfigKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyInitialDelay, DefaultInitialDelay.String())
	dp.SetDefault(cfgKeyMaxDelay, DefaultMaxDelay.String())
}

// Set sets backoff configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	if err := dp.Unmarshal(c, func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		)
	}); err != nil {
		return err
	}
	return c.Validate()
}

// Validate validates configuration.
func (c *Config) Validate() error {
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial delay should be >= 0, got %s", time.Duration(c.InitialDelay))
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max delay should be >= initial delay, got %s < %s",
			time.Duration(c.MaxDelay), time.Duration(c.InitialDelay))
	}
	return nil
}

// NewExponentialBackoffFromConfig creates a new exponential backoff from the configuration.
func NewExponentialBackoffFromConfig(cfg *Config) (*ExponentialBackoff, error) {
	return NewExponentialBackoff(time.Duration(cfg.InitialDelay), time.Duration(cfg.MaxDelay))
}
