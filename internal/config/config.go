// Package config loads pool, session and logging configuration from a
// YAML file with environment-variable overrides, the same two-stage
// approach as the teacher proxy's configuration loader.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a pgsession deployment.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Pool     PoolConfig     `yaml:"pool"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PostgresConfig describes how to reach the PostgreSQL server.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// PoolConfig controls the session pool's sizing and lifecycle behavior.
// IdleTimeout and LoopWait correspond to the core's MAX_IDLE/LOOP_WAIT
// observational constants (spec §5, §9 Open Question (b)). No code in
// this module reads them: neither the session loop nor the pool
// terminates a session on idle.
type PoolConfig struct {
	MaxSessions int           `yaml:"max_sessions"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	LoopWait    time.Duration `yaml:"loop_wait"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
}

// LoggingConfig controls the package-wide logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configPath (if non-empty and present), applies environment
// overrides, and validates the result. Mirrors the teacher's
// LoadConfig/loadFromEnv/validateConfig split.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "postgres",
			User:     "postgres",
		},
		Pool: PoolConfig{
			MaxSessions: 10,
			IdleTimeout: 5 * time.Second,
			LoopWait:    1 * time.Second,
			ConnTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PGSESSION_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PGSESSION_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = p
		}
	}
	if v := os.Getenv("PGSESSION_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PGSESSION_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PGSESSION_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PGSESSION_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MaxSessions = n
		}
	}
	if v := os.Getenv("PGSESSION_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pool.IdleTimeout = d
		}
	}
	if v := os.Getenv("PGSESSION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PGSESSION_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
}

func validate(cfg *Config) error {
	if cfg.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if cfg.Postgres.Port == 0 {
		return fmt.Errorf("postgres port is required")
	}
	if cfg.Postgres.Database == "" {
		return fmt.Errorf("postgres database is required")
	}
	if cfg.Pool.MaxSessions <= 0 {
		return fmt.Errorf("pool.max_sessions must be positive")
	}
	return nil
}

// DSN assembles a libpq-style connection string for pgx.ParseConfig.
func (c PostgresConfig) DSN(appName string) string {
	return fmt.Sprintf("host=%s port=%d database=%s user=%s password=%s application_name=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, appName)
}
