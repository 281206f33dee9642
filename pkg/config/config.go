package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	PolicyStrict = "strict"
	PolicyLegacy = "legacy"
)

type (
	Config struct {
		HTTP
		Database
		Log
		Circulation
		Overdue
		Global
	}

	HTTP struct {
		Host string
		Port int
	}
	Database struct {
		Driver          string
		Host            string
		Port            string
		User            string
		Password        string
		Name            string
		Path            string // sqlite file, ":memory:" for a throwaway database
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
		ConnectRetries  int
		RetryDelay      time.Duration
		SeedDemoData    bool
	}
	Log struct {
		Level      string
		File       string // empty means console only
		MaxSize    int    // megabytes
		MaxBackups int
		MaxAge     int // days
		Compress   bool
	}
	Circulation struct {
		Policy         string
		LoanPeriodDays int
		Timezone       string
	}
	Overdue struct {
		SweepEnabled  bool
		SweepSchedule string // cron format, "0 * * * *" = hourly
	}
	Global struct {
		ShutdownTimeout time.Duration
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_host", "0.0.0.0")
	v.SetDefault("http_port", 8060)

	v.SetDefault("db_driver", DriverPostgres)
	v.SetDefault("db_host", "postgres")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "program")
	v.SetDefault("db_password", "test")
	v.SetDefault("db_name", "library")
	v.SetDefault("db_path", "./library.db")
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 10)
	v.SetDefault("db_conn_max_lifetime", 5*time.Minute)
	v.SetDefault("db_connect_retries", 10)
	v.SetDefault("db_retry_delay", 5*time.Second)
	v.SetDefault("seed_demo_data", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size", 100)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age", 28)
	v.SetDefault("log_compress", false)

	v.SetDefault("borrow_policy", PolicyStrict)
	v.SetDefault("loan_period_days", 30)
	v.SetDefault("library_timezone", "UTC")

	v.SetDefault("overdue_sweep_enabled", false)
	v.SetDefault("overdue_sweep_schedule", "0 * * * *")

	v.SetDefault("shutdown_timeout", 5*time.Second)
}

// Load reads configuration from the environment and, when file is not
// empty, from a config file whose keys use the same names as the
// environment variables in lower case.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return nil, errors.Wrapf(err, "unable to access config file %s", file)
		}
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "unable to read config file %s", file)
		}
	}

	cfg := &Config{
		HTTP: HTTP{
			Host: v.GetString("http_host"),
			Port: v.GetInt("http_port"),
		},
		Database: Database{
			Driver:          strings.ToLower(v.GetString("db_driver")),
			Host:            v.GetString("db_host"),
			Port:            v.GetString("db_port"),
			User:            v.GetString("db_user"),
			Password:        v.GetString("db_password"),
			Name:            v.GetString("db_name"),
			Path:            v.GetString("db_path"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
			ConnectRetries:  v.GetInt("db_connect_retries"),
			RetryDelay:      v.GetDuration("db_retry_delay"),
			SeedDemoData:    v.GetBool("seed_demo_data"),
		},
		Log: Log{
			Level:      v.GetString("log_level"),
			File:       v.GetString("log_file"),
			MaxSize:    v.GetInt("log_max_size"),
			MaxBackups: v.GetInt("log_max_backups"),
			MaxAge:     v.GetInt("log_max_age"),
			Compress:   v.GetBool("log_compress"),
		},
		Circulation: Circulation{
			Policy:         strings.ToLower(v.GetString("borrow_policy")),
			LoanPeriodDays: v.GetInt("loan_period_days"),
			Timezone:       v.GetString("library_timezone"),
		},
		Overdue: Overdue{
			SweepEnabled:  v.GetBool("overdue_sweep_enabled"),
			SweepSchedule: v.GetString("overdue_sweep_schedule"),
		},
		Global: Global{
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return errors.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Circulation.Policy {
	case PolicyStrict, PolicyLegacy:
	default:
		return errors.Errorf("unsupported borrow policy %q", c.Circulation.Policy)
	}
	if c.Circulation.LoanPeriodDays <= 0 {
		return errors.Errorf("loan period must be positive, got %d", c.Circulation.LoanPeriodDays)
	}
	if _, err := time.LoadLocation(c.Circulation.Timezone); err != nil {
		return errors.Wrapf(err, "unknown timezone %q", c.Circulation.Timezone)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.Errorf("invalid http port %d", c.HTTP.Port)
	}
	return nil
}

// Location returns the library's timezone. Load has already validated it.
func (c Circulation) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PostgresDSN builds the connection string in the form the postgres driver expects.
func (d Database) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

func (h HTTP) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}
