package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crm-engine/calendar"
	"github.com/warp/crm-engine/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 2, cfg.Reminder.WindowMonths)
	assert.Equal(t, "window", cfg.Reminder.Mode)
	assert.Equal(t, config.ClaimsSQL, cfg.Reminder.Claims)
	assert.Len(t, cfg.CORS.AllowedOrigins, 2)

	rule, err := cfg.MonthRule()
	require.NoError(t, err)
	assert.Equal(t, calendar.RollOver, rule)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	// GIVEN: a config file and an env override on top of it
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
  dsn: postgres://file
calendar:
  timezone: Europe/Paris
  month_rule: clamp
reminder:
  mode: due_on
  window_months: 1
`)
	t.Setenv("CRM_DATABASE_DSN", "postgres://env")
	t.Setenv("CRM_REMINDER_RECIPIENT", "ops@example.com")

	// WHEN
	cfg, err := config.Load(path)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, "ops@example.com", cfg.Reminder.Recipient)
	assert.Equal(t, 1, cfg.Reminder.WindowMonths)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())

	rule, err := cfg.MonthRule()
	require.NoError(t, err)
	assert.Equal(t, calendar.ClampToMonthEnd, rule)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"driver":     "database:\n  driver: oracle\n",
		"timezone":   "calendar:\n  timezone: Mars/Olympus\n",
		"month rule": "calendar:\n  month_rule: sideways\n",
		"mode":       "reminder:\n  mode: hourly\n",
		"claims":     "reminder:\n  claims: etcd\n",
		"redis addr": "reminder:\n  claims: redis\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
