/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-appkit/config"
)

// DefaultConfigKeyPrefix is a default key prefix for the rate limiting configuration parameters.
const DefaultConfigKeyPrefix = "rateLimit"

// Config represents a configuration for client-side rate limiting.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Methods contains per-method limits. Key is an RPC method name,
	// and value is the method's bucket configuration.
	// Methods not listed here are not limited at all.
	Methods map[string]MethodLimitConfig `mapstructure:"methods" yaml:"methods" json:"methods"`

	// Adaptive contains parameters of the adaptive rate limiter.
	Adaptive AdaptiveConfig `mapstructure:"adaptive" yaml:"adaptive" json:"adaptive"`

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
func (c *Config) SetProviderDefaults(_ config.DataProvider) {
}

// Set sets rate limiting configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	if err := dp.Unmarshal(c, func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.DecodeHook = MapstructureDecodeHook()
	}); err != nil {
		return err
	}
	return c.Validate()
}

// Validate validates configuration.
func (c *Config) Validate() error {
	for method, limit := range c.Methods {
		if err := limit.Validate(); err != nil {
			return fmt.Errorf("validate limit for method %q: %w", method, err)
		}
	}
	if c.Adaptive.Enabled {
		if err := c.Adaptive.Validate(); err != nil {
			return fmt.Errorf("validate adaptive rate limit: %w", err)
		}
	}
	return nil
}

// MethodLimitConfig represents a token bucket configuration for a single RPC method.
type MethodLimitConfig struct {
	// RateLimit is a sustained refill rate of the method's bucket in the "N/(s|m|h)" form.
	RateLimit Rate `mapstructure:"rateLimit" yaml:"rateLimit" json:"rateLimit"`

	// BurstLimit is the bucket capacity. If it's not specified, the rate limit count is used.
	BurstLimit int `mapstructure:"burstLimit" yaml:"burstLimit" json:"burstLimit"`
}

// Validate validates method limit configuration.
func (c *MethodLimitConfig) Validate() error {
	if c.RateLimit.Count < 1 {
		return fmt.Errorf("rate limit should be >= 1, got %d", c.RateLimit.Count)
	}
	if c.BurstLimit < 0 {
		return fmt.Errorf("burst limit should be >= 0, got %d", c.BurstLimit)
	}
	return nil
}

func (c *MethodLimitConfig) capacity() int {
	if c.BurstLimit > 0 {
		return c.BurstLimit
	}
	return c.RateLimit.Count
}

// AdaptiveConfig represents a configuration of the adaptive rate limiter.
type AdaptiveConfig struct {
	// Enabled specifies whether the adaptive rate limiting is used.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// InitialRate is a starting target rate in requests per second.
	InitialRate float64 `mapstructure:"initialRate" yaml:"initialRate" json:"initialRate"`

	// MinRate is a lower bound of the target rate in requests per second.
	MinRate float64 `mapstructure:"minRate" yaml:"minRate" json:"minRate"`

	// MaxRate is an upper bound of the target rate in requests per second.
	MaxRate float64 `mapstructure:"maxRate" yaml:"maxRate" json:"maxRate"`
}

// Validate validates adaptive rate limiter configuration.
func (c *AdaptiveConfig) Validate() error {
	if c.MinRate <= 0 {
		return fmt.Errorf("min rate should be positive, got %g", c.MinRate)
	}
	if c.MaxRate < c.MinRate {
		return fmt.Errorf("max rate should be >= min rate, got %g < %g", c.MaxRate, c.MinRate)
	}
	if c.InitialRate < c.MinRate || c.InitialRate > c.MaxRate {
		return fmt.Errorf("initial rate should be within [%g, %g], got %g", c.MinRate, c.MaxRate, c.InitialRate)
	}
	return nil
}

// NewPerMethodLimiterFromConfig creates a new per-method limiter
// with a bucket registered for every method of the configuration.
func NewPerMethodLimiterFromConfig(cfg *Config) (*PerMethodLimiter, error) {
	return NewPerMethodLimiterFromConfigWithOpts(cfg, PerMethodLimiterOpts{})
}

// NewPerMethodLimiterFromConfigWithOpts creates a new per-method limiter from the configuration
// with the provided options.
func NewPerMethodLimiterFromConfigWithOpts(cfg *Config, opts PerMethodLimiterOpts) (*PerMethodLimiter, error) {
	pl := NewPerMethodLimiterWithOpts(opts)
	for method, limit := range cfg.Methods {
		if err := pl.RegisterMethod(method, limit.capacity(), limit.RateLimit.PerSecond()); err != nil {
			return nil, fmt.Errorf("register method %q: %w", method, err)
		}
	}
	return pl, nil
}

// NewAdaptiveRateLimiterFromConfig creates a new adaptive rate limiter from the configuration.
// The caller should check Config.Adaptive.Enabled before calling it.
func NewAdaptiveRateLimiterFromConfig(cfg *Config) (*AdaptiveRateLimiter, error) {
	return NewAdaptiveRateLimiterFromConfigWithOpts(cfg, AdaptiveRateLimiterOpts{})
}

// NewAdaptiveRateLimiterFromConfigWithOpts creates a new adaptive rate limiter from the configuration
// with the provided options.
func NewAdaptiveRateLimiterFromConfigWithOpts(cfg *Config, opts AdaptiveRateLimiterOpts) (*AdaptiveRateLimiter, error) {
	return NewAdaptiveRateLimiterWithOpts(cfg.Adaptive.InitialRate, cfg.Adaptive.MinRate, cfg.Adaptive.MaxRate, opts)
}

// MapstructureDecodeHook returns a DecodeHookFunc for mapstructure to handle custom types.
func MapstructureDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}
