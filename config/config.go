// Package config loads budgetd settings from a YAML file with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		RolloverCron string `yaml:"rollover_cron"`
		Enabled      *bool  `yaml:"enabled"`
	} `yaml:"schedule"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BUDGET_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("BUDGET_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("BUDGET_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("BUDGET_DB"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("BUDGET_ROLLOVER_CRON"); v != "" {
		cfg.Schedule.RolloverCron = v
	}
	if v := os.Getenv("BUDGET_SCHEDULER"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("BUDGET_SCHEDULER: %w", err)
		}
		cfg.Schedule.Enabled = &enabled
	}
	if v := os.Getenv("BUDGET_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("BUDGET_LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("BUDGET_LOG_PRETTY: %w", err)
		}
		cfg.Log.Pretty = pretty
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/budget.db"
	}
	if cfg.Schedule.RolloverCron == "" {
		cfg.Schedule.RolloverCron = "0 5 0 * * *"
	}
	if cfg.Schedule.Enabled == nil {
		enabled := true
		cfg.Schedule.Enabled = &enabled
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks that every field is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is outside 1-65535", c.Server.Port)
	}
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Schedule.RolloverCron); err != nil {
		return fmt.Errorf("schedule.rollover_cron: %w", err)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// SchedulerEnabled reports whether the rollover job should run.
func (c *Config) SchedulerEnabled() bool {
	return c.Schedule.Enabled == nil || *c.Schedule.Enabled
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
