/*
Package config loads runtime configuration for the compensation engine.

SOURCES (later wins):
  1. Defaults below
  2. .env file, if present (joho/godotenv; existing variables are kept)
  3. PAYROLL_* environment variables (viper AutomaticEnv)
  4. Command-line flags, applied by cmd/server

KEYS:
  PAYROLL_ENV                 development | production (logger format)
  PAYROLL_PORT                HTTP port
  PAYROLL_DB_DRIVER           sqlite | postgres
  PAYROLL_DB_DSN              SQLite path or Postgres URL
  PAYROLL_WORKERS             batch worker pool size
  PAYROLL_TIMEZONE            IANA zone used to find circle boundaries
  PAYROLL_SCHEDULER_ENABLED   run closed circles automatically
  PAYROLL_SCHEDULER_INTERVAL  how often the scheduler checks, e.g. 15m
  PAYROLL_LOCATIONS_FILE      optional JSON seed of locations and rates
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/warp/compensation-engine/generic"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env               string
	Port              int
	DBDriver          string
	DBDSN             string
	Workers           int
	TimeZone          string
	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	LocationsFile     string
}

// Load reads configuration from dotEnvPath (ignored when missing) and the
// environment. An empty dotEnvPath means ".env".
func Load(dotEnvPath string) (*Config, error) {
	if dotEnvPath == "" {
		dotEnvPath = ".env"
	}
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", dotEnvPath, err)
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("env", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("db_driver", DriverSQLite)
	v.SetDefault("db_dsn", "payroll.db")
	v.SetDefault("workers", 4)
	v.SetDefault("timezone", "Asia/Bangkok")
	v.SetDefault("scheduler_enabled", false)
	v.SetDefault("scheduler_interval", 15*time.Minute)
	v.SetDefault("locations_file", "")

	v.SetEnvPrefix("PAYROLL")
	v.AutomaticEnv()

	cfg := &Config{
		Env:               strings.ToLower(v.GetString("env")),
		Port:              v.GetInt("port"),
		DBDriver:          strings.ToLower(v.GetString("db_driver")),
		DBDSN:             v.GetString("db_dsn"),
		Workers:           v.GetInt("workers"),
		TimeZone:          v.GetString("timezone"),
		SchedulerEnabled:  v.GetBool("scheduler_enabled"),
		SchedulerInterval: v.GetDuration("scheduler_interval"),
		LocationsFile:     v.GetString("locations_file"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown db driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("db dsn is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.SchedulerEnabled && c.SchedulerInterval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", c.SchedulerInterval)
	}
	if _, err := generic.LoadZone(c.TimeZone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Zone returns the configured time zone. Validate has already checked it.
func (c *Config) Zone() *time.Location {
	zone, err := generic.LoadZone(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return zone
}
