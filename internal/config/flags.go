package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Flag names shared by every command
const (
	FlagConfig        = "config"
	FlagLogLevel      = "log-level"
	FlagLogFormat     = "log-format"
	FlagProfile       = "profile"
	FlagMaxInFlight   = "max-in-flight"
	FlagSymbolTimeout = "symbol-timeout"
	FlagMinBars       = "min-bars"
	FlagRedisAddr     = "redis-addr"
	FlagNoSentiment   = "no-sentiment"
)

// BindFlags registers the override flags, showing the built-in defaults
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, DefaultPath, "engine configuration file")
	fs.String(FlagLogLevel, d.Log.Level, "log level (trace, debug, info, warn, error)")
	fs.String(FlagLogFormat, d.Log.Format, "log format (auto, console, json)")
	fs.String(FlagProfile, d.Scan.Profile, "indicator profile (scalping, swing, reversal)")
	fs.Int(FlagMaxInFlight, d.Scan.MaxInFlight, "symbols analyzed concurrently")
	fs.Duration(FlagSymbolTimeout, d.Scan.SymbolTimeout, "per-symbol analysis timeout")
	fs.Int(FlagMinBars, d.Scan.MinBars, "closed bars required for analysis (30-50)")
	fs.String(FlagRedisAddr, "", "redis address for the shared candle cache")
	fs.Bool(FlagNoSentiment, false, "skip the fear & greed lookup and score sentiment as neutral")
}

// LoadWithFlags loads the file named by --config, then applies only the
// flags the user actually set
func LoadWithFlags(fs *pflag.FlagSet) (*Config, error) {
	path, err := fs.GetString(FlagConfig)
	if err != nil {
		return nil, err
	}
	c, err := Load(path, fs.Changed(FlagConfig))
	if err != nil {
		return nil, err
	}
	if err := ApplyFlags(fs, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return c, nil
}

// ApplyFlags copies changed flag values into c
func ApplyFlags(fs *pflag.FlagSet, c *Config) error {
	var firstErr error
	str := func(name string, dst *string) {
		if fs.Changed(name) && firstErr == nil {
			*dst, firstErr = fs.GetString(name)
		}
	}
	integer := func(name string, dst *int) {
		if fs.Changed(name) && firstErr == nil {
			*dst, firstErr = fs.GetInt(name)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if fs.Changed(name) && firstErr == nil {
			*dst, firstErr = fs.GetDuration(name)
		}
	}

	str(FlagLogLevel, &c.Log.Level)
	str(FlagLogFormat, &c.Log.Format)
	str(FlagProfile, &c.Scan.Profile)
	integer(FlagMaxInFlight, &c.Scan.MaxInFlight)
	dur(FlagSymbolTimeout, &c.Scan.SymbolTimeout)
	if fs.Changed(FlagMinBars) && firstErr == nil {
		integer(FlagMinBars, &c.Scan.MinBars)
		c.Data.MinBars = c.Scan.MinBars
	}
	str(FlagRedisAddr, &c.Cache.Redis.Addr)
	if fs.Changed(FlagNoSentiment) && firstErr == nil {
		var off bool
		off, firstErr = fs.GetBool(FlagNoSentiment)
		c.Sentiment.Enabled = !off
	}
	if firstErr != nil {
		return fmt.Errorf("read flags: %w", firstErr)
	}
	return nil
}
