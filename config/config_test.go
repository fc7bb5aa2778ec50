package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/schedule"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, schedule.DefaultTolerances(), cfg.Tolerance)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
	assert.Empty(t, cfg.Redis.URL)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_FileAndEnv(t *testing.T) {
	// GIVEN: A YAML file and an overriding environment variable
	// WHEN: Loading
	// THEN: The environment wins over the file, the file over defaults

	dir := t.TempDir()
	path := filepath.Join(dir, "attendance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
timezone: America/Bogota
tolerance:
  tolerance: 10
  late_check_in: 120
scheduler:
  interval: 30s
`), 0o600))
	t.Setenv("ATTENDANCE_SERVER_PORT", "7070")
	t.Setenv("ATTENDANCE_REDIS_URL", "redis://localhost:6379/2")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
	assert.Equal(t, 10, cfg.Tolerance.Tolerance)
	assert.Equal(t, 120, cfg.Tolerance.LateCheckIn)
	assert.Equal(t, 30, cfg.Tolerance.EarlyCheckIn, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Bogota", loc.String())
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Server:    config.ServerConfig{Port: 8080},
			Database:  config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
			Tolerance: schedule.DefaultTolerances(),
			Scheduler: config.SchedulerConfig{Enabled: true, Interval: time.Minute},
			Log:       config.LogConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"port", func(c *config.Config) { c.Server.Port = 0 }},
		{"driver", func(c *config.Config) { c.Database.Driver = "mysql" }},
		{"dsn", func(c *config.Config) { c.Database.DSN = "" }},
		{"timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus" }},
		{"negative tolerance", func(c *config.Config) { c.Tolerance.EarlyDeparture = -1 }},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }},
		{"scheduler interval", func(c *config.Config) { c.Scheduler.Interval = 0 }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
