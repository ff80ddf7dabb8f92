/*
Package config loads the server configuration.

SOURCES (later wins):
  1. Built-in defaults (SetDefault below)
  2. config.yaml in the working directory, or the file given by -config
  3. .env in the working directory (loaded into the process environment)
  4. CRM_-prefixed environment variables, dots replaced by underscores
     (CRM_DATABASE_DSN overrides database.dsn)

REFERENCE LOCATION:
  calendar.timezone is the single location in which "today" is computed for
  reminders, listings and the dashboard.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // calendar.timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/warp/crm-engine/calendar"
	"github.com/warp/crm-engine/reminder"
)

type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Calendar struct {
		Timezone  string `mapstructure:"timezone"`
		MonthRule string `mapstructure:"month_rule"`
	} `mapstructure:"calendar"`
	Reminder struct {
		Enabled      bool   `mapstructure:"enabled"`
		Spec         string `mapstructure:"spec"`
		Mode         string `mapstructure:"mode"`
		WindowMonths int    `mapstructure:"window_months"`
		Recipient    string `mapstructure:"recipient"`
		Claims       string `mapstructure:"claims"`
	} `mapstructure:"reminder"`
	Redis struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"redis"`
	AMQP struct {
		URL        string `mapstructure:"url"`
		Exchange   string `mapstructure:"exchange"`
		RoutingKey string `mapstructure:"routing_key"`
	} `mapstructure:"amqp"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`
}

// Claim backends for reminder.claims.
const (
	ClaimsNone  = "none"
	ClaimsSQL   = "sql"
	ClaimsRedis = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "crm.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("calendar.timezone", "UTC")
	v.SetDefault("calendar.month_rule", "roll_over")
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.spec", reminder.DefaultSpec)
	v.SetDefault("reminder.mode", string(reminder.ModeWindow))
	v.SetDefault("reminder.window_months", 2)
	v.SetDefault("reminder.recipient", "")
	v.SetDefault("reminder.claims", ClaimsSQL)
	v.SetDefault("redis.addr", "")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "crm.reminders")
	v.SetDefault("amqp.routing_key", "recurring_payment.due")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
}

// Load reads the configuration. path may be empty.
func Load(path string) (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("config: database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.MonthRule(); err != nil {
		return err
	}
	if _, err := reminder.ParseMode(c.Reminder.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Reminder.WindowMonths < 0 {
		return fmt.Errorf("config: reminder.window_months must not be negative")
	}
	switch c.Reminder.Claims {
	case ClaimsNone, ClaimsSQL:
	case ClaimsRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: reminder.claims=redis needs redis.addr")
		}
	default:
		return fmt.Errorf("config: reminder.claims must be none, sql or redis, got %q", c.Reminder.Claims)
	}
	return nil
}

// Location is the reference location for "today".
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: calendar.timezone: %w", err)
	}
	return loc, nil
}

func (c Config) MonthRule() (calendar.MonthRule, error) {
	rule, err := calendar.ParseMonthRule(c.Calendar.MonthRule)
	if err != nil {
		return rule, fmt.Errorf("config: calendar.month_rule: %w", err)
	}
	return rule, nil
}
