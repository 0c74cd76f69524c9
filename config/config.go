// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package config loads throttler settings from defaults, an optional
// config file and THROTTLER_ prefixed environment variables.
//
// Rates and sizes accept plain numbers of bytes or human readable sizes,
// "512KiB" is base 2 and "10MB" is metric. Rates may carry a trailing "/s".
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/go-core-stack/throttler/errors"
	"github.com/go-core-stack/throttler/throttler"
)

// EnvPrefix is the prefix of environment variables overriding settings,
// e.g. THROTTLER_AVG_RATE.
const EnvPrefix = "THROTTLER"

// configuration keys
const (
	KeyAvgRate     = "avg_rate"
	KeyPeakRate    = "peak_rate"
	KeyBucketLimit = "bucket_limit"
	KeyLogInterval = "log_interval"
)

// Config holds the raw, not yet normalized, throttler settings.
type Config struct {
	// average rate in bytes/sec, 0 disables throttling
	AvgRate float64 `mapstructure:"avg_rate"`

	// peak rate in bytes/sec, 0 picks one from the average rate
	PeakRate float64 `mapstructure:"peak_rate"`

	// bucket limit in bytes, 0 sizes it from the peak rate
	BucketLimit float64 `mapstructure:"bucket_limit"`

	// interval between periodic stats logs, 0 disables them
	LogInterval time.Duration `mapstructure:"log_interval"`
}

// NewViper returns a viper instance with the defaults and environment
// bindings of the throttler settings.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAvgRate, 0)
	v.SetDefault(KeyPeakRate, 0)
	v.SetDefault(KeyBucketLimit, 0)
	v.SetDefault(KeyLogInterval, "0s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes the settings held by v.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToBytesHookFunc(),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot be normalized. Inconsistent rates
// are not errors, they are resolved by throttler.ConfigureOptions.
func (c *Config) Validate() error {
	if c.LogInterval < 0 {
		return errors.Wrapf(errors.InvalidArgument, "log interval %s must not be negative", c.LogInterval)
	}
	return nil
}

// Throttler builds a throttler from the settings.
func (c *Config) Throttler(opts ...throttler.Option) *throttler.Throttler {
	return throttler.MakeThrottler(c.AvgRate, c.PeakRate, c.BucketLimit, c.LogInterval.Milliseconds(), opts...)
}

// ParseBytes parses a plain or human readable number of bytes, with an
// optional "/s" suffix for rates.
func ParseBytes(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "/s"))
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	n, err := units.ParseStrictBytes(s)
	if err != nil {
		return 0, errors.Wrapf(errors.InvalidArgument, "invalid byte size %q: %s", s, err)
	}
	return float64(n), nil
}

func stringToBytesHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Float64 {
			return data, nil
		}
		return ParseBytes(data.(string))
	}
}
