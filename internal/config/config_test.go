package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mperrors "github.com/VatsalSy/MPTimer/internal/errors"
	"github.com/VatsalSy/MPTimer/internal/threshold"
	"github.com/VatsalSy/MPTimer/internal/throttle"
	"github.com/VatsalSy/MPTimer/internal/visibility"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaultConfig(t *testing.T) {
	v, err := New(filepath.Join(t.TempDir(), "non_existent_config.yaml"))
	require.NoError(t, err, "a missing config file is not an error")

	cfg, err := LoadFromViper(v)
	require.NoError(t, err)

	assert.True(t, cfg.Display.Enabled)
	assert.True(t, cfg.Display.ShowThreshold)
	assert.False(t, cfg.Display.LockBar)
	assert.Equal(t, 3*time.Second, cfg.Timing.Period)
	assert.Equal(t, throttle.DefaultInterval, cfg.Timing.PollInterval)
	assert.Equal(t, threshold.DefaultParams(), cfg.ThresholdParams())
	assert.Equal(t, "#73CBF7", cfg.Colors.Border)
	assert.Equal(t, "#082C55", cfg.Colors.Background)
	assert.Equal(t, "#FFFFFF", cfg.Colors.Fill)
	assert.Equal(t, "#FFA622", cfg.Colors.Threshold)
	assert.Equal(t, filepath.Join(DataDir(), "mptimer.db"), cfg.Store.Path)
	assert.Equal(t, 500, cfg.Store.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
display:
  hide_out_of_combat: true
  always_show_in_duty: true
  lock_bar: true
timing:
  period: 4s
  cast_time: 2s
  poll_interval: 50ms
colors:
  threshold: "#FF0000"
log:
  level: debug
`)

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := LoadFromViper(v)
	require.NoError(t, err)

	assert.True(t, cfg.Display.HideOutOfCombat)
	assert.True(t, cfg.Display.AlwaysShowInDuty)
	assert.True(t, cfg.Display.LockBar)
	assert.Equal(t, 4*time.Second, cfg.Timing.Period)
	assert.Equal(t, 2*time.Second, cfg.Timing.CastTime)
	assert.Equal(t, 50*time.Millisecond, cfg.Timing.PollInterval)
	assert.Equal(t, "#FF0000", cfg.Colors.Threshold)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Keys missing from the file keep their defaults.
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.GracePeriod)
	assert.Equal(t, "#73CBF7", cfg.Colors.Border)
	assert.True(t, cfg.Display.Enabled)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
log:
  level: info
timing:
  period: 3s
`)
	t.Setenv("MPTIMER_LOG_LEVEL", "debug")
	t.Setenv("MPTIMER_TIMING_PERIOD", "5s")
	t.Setenv("MPTIMER_DISPLAY_ENABLED", "false")

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := LoadFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.Timing.Period)
	assert.False(t, cfg.Display.Enabled)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "timing: [unclosed")

	_, err := New(path)
	require.Error(t, err)
	assert.True(t, mperrors.IsType(err, mperrors.ErrorTypeConfiguration))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		v, err := New(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		cfg, err := LoadFromViper(v)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"cast longer than window", func(c *Config) { c.Timing.CastTime = 3 * time.Second }},
		{"negative grace", func(c *Config) { c.Timing.GracePeriod = -time.Second }},
		{"acceleration above one", func(c *Config) { c.Timing.AccelerationFactor = 1.5 }},
		{"poll longer than period", func(c *Config) { c.Timing.PollInterval = 4 * time.Second }},
		{"bad colour", func(c *Config) { c.Colors.Fill = "white" }},
		{"narrow bar", func(c *Config) { c.Display.BarWidth = 2 }},
		{"zero batch", func(c *Config) { c.Store.BatchSize = 0 }},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }},
		{"file output without file", func(c *Config) { c.Log.Output = "file" }},
		{"unknown output", func(c *Config) { c.Log.Output = "syslog" }},
	}

	require.NoError(t, base().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, mperrors.IsType(err, mperrors.ErrorTypeConfiguration))
		})
	}
}

func TestInvalidTuningFailsLoad(t *testing.T) {
	path := writeConfig(t, `
timing:
  cast_time: 2600ms
`)
	v, err := New(path)
	require.NoError(t, err)

	_, err = LoadFromViper(v)
	require.Error(t, err)
	assert.True(t, mperrors.IsType(err, mperrors.ErrorTypeConfiguration))
}

func TestConverters(t *testing.T) {
	cfg := &Config{
		Display: DisplayConfig{
			Enabled:                     true,
			ShowThreshold:               true,
			HideOutOfCombat:             true,
			AlwaysShowWithHostileTarget: true,
		},
		Timing: TimingConfig{
			Period:             4 * time.Second,
			PollInterval:       20 * time.Millisecond,
			CastTime:           time.Second,
			GracePeriod:        250 * time.Millisecond,
			AccelerationFactor: 0.9,
		},
		Log: LogConfig{Level: "warn", Format: "json", Output: "file", File: "x.log", MaxSize: 5, MaxBackups: 1},
	}

	assert.Equal(t, visibility.Preferences{
		Enabled:                     true,
		HideOutOfCombat:             true,
		AlwaysShowWithHostileTarget: true,
	}, cfg.Preferences())

	opts := cfg.TrackerOptions()
	assert.Equal(t, 4*time.Second, opts.Period)
	assert.Equal(t, 20*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 4*time.Second, opts.Threshold.Period)
	assert.Equal(t, 0.9, opts.Threshold.AccelerationFactor)
	assert.True(t, opts.ShowThreshold)
	assert.Nil(t, opts.Observer)

	logOpts := cfg.LoggerOptions()
	assert.Equal(t, "warn", logOpts.Level)
	assert.Equal(t, "x.log", logOpts.File)
	assert.Equal(t, 5, logOpts.MaxSizeMB)
}

func TestSetAndReset(t *testing.T) {
	v := viper.New()
	setViperDefaults(v)

	require.NoError(t, Set(v, "display.enabled", "false"))
	require.NoError(t, Set(v, "timing.period", "4s"))
	require.NoError(t, Set(v, "timing.acceleration_factor", "0.8"))
	require.NoError(t, Set(v, "store.batch_size", "50"))
	require.NoError(t, Set(v, "Colors.Fill", "#000000"))

	assert.False(t, v.GetBool("display.enabled"))
	assert.Equal(t, 4*time.Second, v.GetDuration("timing.period"))
	assert.Equal(t, 0.8, v.GetFloat64("timing.acceleration_factor"))
	assert.Equal(t, 50, v.GetInt("store.batch_size"))
	assert.Equal(t, "#000000", v.GetString("colors.fill"))

	assert.Error(t, Set(v, "display.enabled", "maybe"))
	assert.Error(t, Set(v, "timing.period", "soon"))
	assert.Error(t, Set(v, "sync.max_concurrent", "3"))

	require.NoError(t, ResetKey(v, "timing.period"))
	assert.Equal(t, 3*time.Second, v.GetDuration("timing.period"))
	assert.False(t, v.GetBool("display.enabled"))
	assert.Error(t, ResetKey(v, "nope"))

	ResetAll(v)
	assert.True(t, v.GetBool("display.enabled"))
	assert.Equal(t, "#FFFFFF", v.GetString("colors.fill"))
	assert.Equal(t, 500, v.GetInt("store.batch_size"))
}

func TestDefaultsTable(t *testing.T) {
	keys := Keys()
	assert.Len(t, keys, len(Defaults()))
	assert.IsIncreasing(t, keys)
	assert.True(t, IsKnownKey("display.lock_bar"))
	assert.True(t, IsKnownKey("TIMING.PERIOD"))
	assert.False(t, IsKnownKey("sync.chunk_size"))

	// Every key maps onto a Config field.
	v := viper.New()
	setViperDefaults(v)
	cfg, err := LoadFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, 40, cfg.Display.BarWidth)
	assert.Equal(t, 3, cfg.Log.MaxBackups)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	v, err := New(path)
	require.NoError(t, err)
	require.NoError(t, Set(v, "timing.period", "4s"))
	require.NoError(t, Set(v, "display.lock_bar", "true"))
	require.NoError(t, Save(v))
	assert.Equal(t, path, ConfigPath(v))

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "period: 4s")
	assert.Contains(t, string(saved), "grace_period: 500ms")
	assert.NotContains(t, string(saved), "4000000000")

	reloaded, err := New(path)
	require.NoError(t, err)
	cfg, err := LoadFromViper(reloaded)
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, cfg.Timing.Period)
	assert.True(t, cfg.Display.LockBar)
	assert.Equal(t, throttle.DefaultInterval, cfg.Timing.PollInterval)
}
