package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres", cfg.Database.Host)
	assert.Equal(t, 8060, cfg.HTTP.Port)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, PolicyStrict, cfg.Circulation.Policy)
	assert.Equal(t, 30, cfg.Circulation.LoanPeriodDays)
	assert.Equal(t, time.UTC, cfg.Circulation.Location())
	assert.False(t, cfg.Overdue.SweepEnabled)
	assert.Equal(t, "0 * * * *", cfg.Overdue.SweepSchedule)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("BORROW_POLICY", "legacy")
	t.Setenv("LOAN_PERIOD_DAYS", "14")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, PolicyLegacy, cfg.Circulation.Policy)
	assert.Equal(t, 14, cfg.Circulation.LoanPeriodDays)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	content := "db_name: circulation\nlibrary_timezone: Europe/Berlin\noverdue_sweep_enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "circulation", cfg.Database.Name)
	assert.Equal(t, "Europe/Berlin", cfg.Circulation.Location().String())
	assert.True(t, cfg.Overdue.SweepEnabled)
	assert.Contains(t, cfg.Database.PostgresDSN(), "dbname=circulation")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown driver", key: "DB_DRIVER", val: "oracle"},
		{name: "unknown policy", key: "BORROW_POLICY", val: "lenient"},
		{name: "zero loan period", key: "LOAN_PERIOD_DAYS", val: "0"},
		{name: "unknown timezone", key: "LIBRARY_TIMEZONE", val: "Mars/Olympus"},
		{name: "bad port", key: "HTTP_PORT", val: "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
