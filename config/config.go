// Package config loads the service configuration.
//
// Priority: environment (ATTENDANCE_*) > config file > defaults. A .env file
// in the working directory is loaded into the environment first.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/warp/attendance-engine/schedule"
)

type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Database  DatabaseConfig      `mapstructure:"db"`
	Timezone  string              `mapstructure:"timezone"`
	Tolerance schedule.Tolerances `mapstructure:"tolerance"`
	Redis     RedisConfig         `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig      `mapstructure:"rabbitmq"`
	Breaker   BreakerConfig       `mapstructure:"breaker"`
	Scheduler SchedulerConfig     `mapstructure:"scheduler"`
	Catalog   CatalogConfig       `mapstructure:"catalog"`
	Log       LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig selects the store. DSN is a file path for sqlite and a
// connection URL for postgres.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig: an empty URL keeps justification codes in memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// RabbitMQConfig: an empty URL logs incidents instead of publishing them.
type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// CatalogConfig: File is a JSON catalog applied at startup when set.
type CatalogConfig struct {
	File string `mapstructure:"file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path (optional), the environment and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"*"})

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "./data/attendance.db")
	v.SetDefault("db.max_conns", 10)

	v.SetDefault("timezone", "Local")

	tol := schedule.DefaultTolerances()
	v.SetDefault("tolerance.tolerance", tol.Tolerance)
	v.SetDefault("tolerance.early_check_in", tol.EarlyCheckIn)
	v.SetDefault("tolerance.late_check_in", tol.LateCheckIn)
	v.SetDefault("tolerance.early_check_out", tol.EarlyCheckOut)
	v.SetDefault("tolerance.late_checkout", tol.LateCheckout)
	v.SetDefault("tolerance.early_departure", tol.EarlyDeparture)

	v.SetDefault("redis.url", "")
	v.SetDefault("rabbitmq.url", "")

	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "1m")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.failure_threshold", 5)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "5m")

	v.SetDefault("catalog.file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid config: db.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("invalid config: db.dsn is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: timezone: %w", err)
	}
	t := c.Tolerance
	for name, m := range map[string]int{
		"tolerance":       t.Tolerance,
		"early_check_in":  t.EarlyCheckIn,
		"late_check_in":   t.LateCheckIn,
		"early_check_out": t.EarlyCheckOut,
		"late_checkout":   t.LateCheckout,
		"early_departure": t.EarlyDeparture,
	} {
		if m < 0 {
			return fmt.Errorf("invalid config: tolerance.%s must not be negative", name)
		}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid config: log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("invalid config: scheduler.interval must be positive")
	}
	return nil
}

// Location resolves Timezone. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
