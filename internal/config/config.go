// Package config reads server settings from the environment and the
// optional game-tuning YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Config is the full server configuration.
type Config struct {
	Port        string
	NATSURL     string
	CORSOrigins []string
	Database    DatabaseConfig
}

// FromEnv reads configuration from environment variables with defaults.
func FromEnv() Config {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		dbPort = 5432
	}

	return Config{
		Port:        getEnv("PORT", "8080"),
		NATSURL:     os.Getenv("NATS_URL"),
		CORSOrigins: splitOrigins(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "mathrumble"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// GameConfig tunes round behavior. Zero values fall back to defaults when
// loaded through LoadGameConfig.
type GameConfig struct {
	WinThreshold      int `yaml:"win_threshold"`
	RoundDuration     int `yaml:"round_duration"`
	MaxPlayersPerTeam int `yaml:"max_players_per_team"`
	TimeLimits        struct {
		Easy    int `yaml:"easy"`
		Medium  int `yaml:"medium"`
		Hard    int `yaml:"hard"`
		Extreme int `yaml:"extreme"`
	} `yaml:"time_limits"`
}

// DefaultGameConfig returns the stock tuning values.
func DefaultGameConfig() GameConfig {
	cfg := GameConfig{
		WinThreshold:      10,
		RoundDuration:     120,
		MaxPlayersPerTeam: 5,
	}
	cfg.TimeLimits.Easy = 15
	cfg.TimeLimits.Medium = 12
	cfg.TimeLimits.Hard = 10
	cfg.TimeLimits.Extreme = 7
	return cfg
}

// LoadGameConfig reads tuning from a YAML file, filling any omitted field
// with its default. A missing file yields the defaults.
func LoadGameConfig(path string) (GameConfig, error) {
	cfg := DefaultGameConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read game config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse game config: %w", err)
	}
	defaults := DefaultGameConfig()
	if cfg.WinThreshold <= 0 {
		cfg.WinThreshold = defaults.WinThreshold
	}
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = defaults.RoundDuration
	}
	if cfg.MaxPlayersPerTeam <= 0 {
		cfg.MaxPlayersPerTeam = defaults.MaxPlayersPerTeam
	}
	if cfg.TimeLimits.Easy <= 0 {
		cfg.TimeLimits.Easy = defaults.TimeLimits.Easy
	}
	if cfg.TimeLimits.Medium <= 0 {
		cfg.TimeLimits.Medium = defaults.TimeLimits.Medium
	}
	if cfg.TimeLimits.Hard <= 0 {
		cfg.TimeLimits.Hard = defaults.TimeLimits.Hard
	}
	if cfg.TimeLimits.Extreme <= 0 {
		cfg.TimeLimits.Extreme = defaults.TimeLimits.Extreme
	}
	return cfg, nil
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
