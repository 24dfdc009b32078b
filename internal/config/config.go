package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Port     string `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	StateDir string `yaml:"state_dir"`

	// AchievementZooms are the zoom levels with cluster and square tracking
	AchievementZooms []int `yaml:"achievement_zooms"`

	LogLevel string `yaml:"log_level"`

	// ComputeRatePerMinute limits compute requests per client IP
	ComputeRatePerMinute float64 `yaml:"compute_rate_per_minute"`
	ComputeBurst         int     `yaml:"compute_burst"`
}

// Default returns the built-in defaults
func Default() *Config {
	return &Config{
		Port:                 ":8080",
		DBPath:               "./data/records.db",
		StateDir:             "./data/explorer",
		AchievementZooms:     []int{14, 17},
		LogLevel:             "info",
		ComputeRatePerMinute: 6,
		ComputeBurst:         2,
	}
}

// Load 加载配置: defaults, then the YAML file named by CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ACHIEVEMENT_ZOOMS"); v != "" {
		zooms, err := ParseZooms(v)
		if err != nil {
			return fmt.Errorf("invalid ACHIEVEMENT_ZOOMS: %w", err)
		}
		c.AchievementZooms = zooms
	}
	return nil
}

// ParseZooms parses a comma separated zoom list such as "14,17"
func ParseZooms(s string) ([]int, error) {
	var zooms []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		zoom, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("zoom %q: %w", part, err)
		}
		zooms = append(zooms, zoom)
	}
	return zooms, nil
}

// Validate checks the configuration for values the explorer cannot work with
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	for _, zoom := range c.AchievementZooms {
		if zoom < 0 || zoom > 19 {
			return fmt.Errorf("achievement zoom %d outside [0, 19]", zoom)
		}
	}
	if c.ComputeRatePerMinute <= 0 || c.ComputeBurst < 1 {
		return fmt.Errorf("compute rate limit must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
