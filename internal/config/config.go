// Package config loads map-core settings from an optional YAML file with
// environment-variable overrides for deployment knobs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`

	Map     MapConfig     `yaml:"map"`
	Refresh RefreshConfig `yaml:"refresh"`
}

// MapConfig tunes the interaction controller.
type MapConfig struct {
	MaxSelections    int             `yaml:"max_selections"`
	CountryThreshold float64         `yaml:"country_threshold"`
	CityThreshold    float64         `yaml:"city_threshold"`
	MaxScale         float64         `yaml:"max_scale"`
	ViewportHeight   float64         `yaml:"viewport_height"`
	ViewportWidth    float64         `yaml:"viewport_width"`
	MarkerBaseSizes  map[int]float64 `yaml:"marker_base_sizes"`

	ClickDelayMS      int `yaml:"click_delay_ms"`
	RapidClickGuardMS int `yaml:"rapid_click_guard_ms"`
	TransitionMS      int `yaml:"transition_ms"`
}

// RefreshConfig tunes the background tree reload worker.
type RefreshConfig struct {
	Enabled   bool `yaml:"enabled"`
	IntervalS int  `yaml:"interval_s"`
	JitterPct int  `yaml:"jitter_pct"`
	TimeoutS  int  `yaml:"timeout_s"`
}

// Defaults returns the configuration used when no file is supplied.
func Defaults() Config {
	return Config{
		HTTPAddr: ":8082",
		LogLevel: "info",
		Map: MapConfig{
			MaxSelections:    10,
			CountryThreshold: 2.5,
			CityThreshold:    5,
			MaxScale:         12,
			ViewportHeight:   600,
		},
		Refresh: RefreshConfig{
			Enabled:   true,
			IntervalS: 300,
			JitterPct: 10,
			TimeoutS:  30,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies env
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
}

func (c Config) validate() error {
	if c.Map.CountryThreshold >= c.Map.CityThreshold {
		return fmt.Errorf("config: country_threshold %v must be below city_threshold %v",
			c.Map.CountryThreshold, c.Map.CityThreshold)
	}
	if c.Map.MaxScale <= 0 {
		return fmt.Errorf("config: max_scale must be positive")
	}
	// The zoom clamp caps the scale before the level mapping, so a threshold
	// above max_scale would make the deepest level unreachable.
	if c.Map.CityThreshold > c.Map.MaxScale {
		return fmt.Errorf("config: city_threshold %v must not exceed max_scale %v",
			c.Map.CityThreshold, c.Map.MaxScale)
	}
	if c.Map.MaxSelections < 0 {
		return fmt.Errorf("config: max_selections must not be negative")
	}
	if c.Refresh.IntervalS <= 0 {
		return fmt.Errorf("config: refresh interval_s must be positive")
	}
	return nil
}

// ClickDelay returns the configured click disambiguation delay, or 0 to use
// the controller default.
func (m MapConfig) ClickDelay() time.Duration {
	return time.Duration(m.ClickDelayMS) * time.Millisecond
}

// RapidClickGuard returns the configured rapid-click debounce.
func (m MapConfig) RapidClickGuard() time.Duration {
	return time.Duration(m.RapidClickGuardMS) * time.Millisecond
}

// TransitionDuration returns the configured transition guard duration.
func (m MapConfig) TransitionDuration() time.Duration {
	return time.Duration(m.TransitionMS) * time.Millisecond
}

// Interval returns the refresh poll interval.
func (r RefreshConfig) Interval() time.Duration {
	return time.Duration(r.IntervalS) * time.Second
}

// Timeout returns the per-reload timeout.
func (r RefreshConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutS) * time.Second
}
