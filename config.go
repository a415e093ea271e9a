package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const appName = "zipchord"

// Config is the validated runtime configuration.
type Config struct {
	Timing         TimingConfig
	DictionaryDir  string
	RescanInterval time.Duration
	KeyTapDelay    time.Duration
}

// configFile is the raw YAML shape. Durations are plain milliseconds so
// the file stays editable by hand.
type configFile struct {
	Timing struct {
		Alpha         float64 `yaml:"alpha"`
		Multiplier    float64 `yaml:"multiplier"`
		BaseTimeoutMs int     `yaml:"base_timeout_ms"`
		MinTimeoutMs  int     `yaml:"min_timeout_ms"`
		MaxTimeoutMs  int     `yaml:"max_timeout_ms"`
		WarmupSamples int     `yaml:"warmup_samples"`
	} `yaml:"timing"`
	DictionaryDir    string `yaml:"dictionary_dir"`
	RescanIntervalMs int    `yaml:"rescan_interval_ms"`
	KeyTapDelayMs    int    `yaml:"key_tap_delay_ms"`
}

// DefaultConfig returns the built-in defaults. The multiplier is below
// one on purpose: chord presses land well inside the user's natural
// inter-key interval, sequential typing at cadence must not.
func DefaultConfig() *Config {
	return &Config{
		Timing: TimingConfig{
			Alpha:         0.1,
			Multiplier:    0.5,
			BaseTimeout:   40 * time.Millisecond,
			MinTimeout:    20 * time.Millisecond,
			MaxTimeout:    150 * time.Millisecond,
			WarmupSamples: 8,
		},
		DictionaryDir:  filepath.Join(configDir(), "dict"),
		RescanInterval: 2 * time.Second,
		KeyTapDelay:    8 * time.Millisecond,
	}
}

// configDir resolves the application's XDG config directory.
func configDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// LoadConfig reads dir/config.yml over the defaults. Configuration
// problems are never fatal: a missing file, a parse error or an invalid
// value falls back to the built-in default with a warning.
func LoadConfig(dir string, log *zap.SugaredLogger) *Config {
	cfg := DefaultConfig()

	path := filepath.Join(dir, "config.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("read %s: %v (using defaults)", path, err)
		}
		return cfg
	}

	var raw configFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		log.Warnf("parse %s: %v (using defaults)", path, err)
		return cfg
	}

	if err := applyTiming(&cfg.Timing, raw, cfg.Timing); err != nil {
		log.Warnf("%s: %v (using default timing)", path, err)
		cfg.Timing = DefaultConfig().Timing
	}
	if raw.DictionaryDir != "" {
		cfg.DictionaryDir = expandHome(raw.DictionaryDir)
	}
	if raw.RescanIntervalMs > 0 {
		cfg.RescanInterval = time.Duration(raw.RescanIntervalMs) * time.Millisecond
	}
	if raw.KeyTapDelayMs > 0 {
		cfg.KeyTapDelay = time.Duration(raw.KeyTapDelayMs) * time.Millisecond
	}
	return cfg
}

// applyTiming copies set fields from the raw file and validates the
// result as a whole, so one bad value rejects only the timing block.
func applyTiming(tc *TimingConfig, raw configFile, defaults TimingConfig) error {
	*tc = defaults
	rt := raw.Timing
	if rt.Alpha != 0 {
		tc.Alpha = rt.Alpha
	}
	if rt.Multiplier != 0 {
		tc.Multiplier = rt.Multiplier
	}
	if rt.BaseTimeoutMs != 0 {
		tc.BaseTimeout = time.Duration(rt.BaseTimeoutMs) * time.Millisecond
	}
	if rt.MinTimeoutMs != 0 {
		tc.MinTimeout = time.Duration(rt.MinTimeoutMs) * time.Millisecond
	}
	if rt.MaxTimeoutMs != 0 {
		tc.MaxTimeout = time.Duration(rt.MaxTimeoutMs) * time.Millisecond
	}
	if rt.WarmupSamples != 0 {
		tc.WarmupSamples = rt.WarmupSamples
	}

	if tc.Alpha <= 0 || tc.Alpha >= 1 {
		return fmt.Errorf("alpha must be in (0,1), got %v", tc.Alpha)
	}
	if tc.Multiplier <= 0 || tc.Multiplier > 5 {
		return fmt.Errorf("multiplier must be in (0,5], got %v", tc.Multiplier)
	}
	if tc.MinTimeout <= 0 || tc.MaxTimeout < tc.MinTimeout {
		return fmt.Errorf("invalid timeout bounds [%v, %v]", tc.MinTimeout, tc.MaxTimeout)
	}
	if tc.BaseTimeout < tc.MinTimeout || tc.BaseTimeout > tc.MaxTimeout {
		return fmt.Errorf("base timeout %v outside [%v, %v]", tc.BaseTimeout, tc.MinTimeout, tc.MaxTimeout)
	}
	if tc.WarmupSamples < 0 {
		return fmt.Errorf("warmup_samples must be >= 0, got %d", tc.WarmupSamples)
	}
	return nil
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
