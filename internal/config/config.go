// Package config loads display preferences and timing tuning through viper.
// Every key has an entry in the Defaults table, which also drives reset.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	mperrors "github.com/VatsalSy/MPTimer/internal/errors"
	"github.com/VatsalSy/MPTimer/internal/logger"
	"github.com/VatsalSy/MPTimer/internal/threshold"
	"github.com/VatsalSy/MPTimer/internal/throttle"
	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/internal/timer"
	"github.com/VatsalSy/MPTimer/internal/visibility"
)

// EnvPrefix prefixes every environment override, e.g. MPTIMER_TIMING_PERIOD.
const EnvPrefix = "MPTIMER"

var (
	once    sync.Once
	loadErr error
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Config represents the application configuration
type Config struct {
	Display DisplayConfig `mapstructure:"display"`
	Timing  TimingConfig  `mapstructure:"timing"`
	Colors  ColorConfig   `mapstructure:"colors"`
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`

	Version string `mapstructure:"version"`
}

// DisplayConfig holds the user's visibility and bar preferences.
type DisplayConfig struct {
	Enabled                     bool `mapstructure:"enabled"`
	LockBar                     bool `mapstructure:"lock_bar"`
	ShowThreshold               bool `mapstructure:"show_threshold"`
	HideOutOfCombat             bool `mapstructure:"hide_out_of_combat"`
	AlwaysShowInDuty            bool `mapstructure:"always_show_in_duty"`
	AlwaysShowWithHostileTarget bool `mapstructure:"always_show_with_hostile_target"`
	BarWidth                    int  `mapstructure:"bar_width"`
}

// TimingConfig holds the estimator and predictor tuning.
type TimingConfig struct {
	Period             time.Duration `mapstructure:"period"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	CastTime           time.Duration `mapstructure:"cast_time"`
	GracePeriod        time.Duration `mapstructure:"grace_period"`
	AccelerationFactor float64       `mapstructure:"acceleration_factor"`
}

// ColorConfig holds the bar colours as #RRGGBB.
type ColorConfig struct {
	Border     string `mapstructure:"border"`
	Background string `mapstructure:"background"`
	Fill       string `mapstructure:"fill"`
	Threshold  string `mapstructure:"threshold"`
}

// StoreConfig locates the session journal.
type StoreConfig struct {
	Path      string `mapstructure:"path"`
	BatchSize int    `mapstructure:"batch_size"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, pretty
	Output     string `mapstructure:"output"` // stderr, stdout, file
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
}

// Defaults returns the reset-to-default table keyed by dotted config key.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"display.enabled":                         true,
		"display.lock_bar":                        false,
		"display.show_threshold":                  true,
		"display.hide_out_of_combat":              false,
		"display.always_show_in_duty":             false,
		"display.always_show_with_hostile_target": false,
		"display.bar_width":                       40,

		"timing.period":              tick.DefaultPeriod,
		"timing.poll_interval":       throttle.DefaultInterval,
		"timing.cast_time":           threshold.DefaultCastTime,
		"timing.grace_period":        threshold.DefaultGracePeriod,
		"timing.acceleration_factor": threshold.DefaultAccelerationFactor,

		"colors.border":     "#73CBF7",
		"colors.background": "#082C55",
		"colors.fill":       "#FFFFFF",
		"colors.threshold":  "#FFA622",

		"store.path":       filepath.Join(DataDir(), "mptimer.db"),
		"store.batch_size": 500,

		"log.level":       "info",
		"log.format":      "pretty",
		"log.output":      "stderr",
		"log.file":        "",
		"log.max_size":    10,
		"log.max_backups": 3,

		"version": "1.0.0",
	}
}

// Keys returns every known key in sorted order.
func Keys() []string {
	defaults := Defaults()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key has a default.
func IsKnownKey(key string) bool {
	_, ok := Defaults()[strings.ToLower(key)]
	return ok
}

// Load initializes the global viper instance once and decodes it.
func Load(cfgFile ...string) (*Config, error) {
	once.Do(func() {
		configFile := ""
		if len(cfgFile) > 0 {
			configFile = cfgFile[0]
		}
		loadErr = initViper(viper.GetViper(), configFile)
	})
	if loadErr != nil {
		return nil, loadErr
	}

	return LoadFromViper(viper.GetViper())
}

// New returns a fresh viper instance with defaults, environment overrides
// and, when present, the config file applied.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	if err := initViper(v, cfgFile); err != nil {
		return nil, err
	}
	return v, nil
}

// LoadFromViper decodes and validates a configured viper instance.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, mperrors.WrapTyped(mperrors.ErrorTypeConfiguration, "config.load",
			fmt.Errorf("failed to unmarshal config: %w", err))
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initViper sets up viper configuration
func initViper(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(DataDir())
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return mperrors.New(mperrors.ErrorTypeConfiguration, "config.read", cfgFile, err)
	}
	return nil
}

// setViperDefaults sets default values in viper
func setViperDefaults(v *viper.Viper) {
	for key, value := range Defaults() {
		v.SetDefault(key, storedValue(value))
	}
}

// storedValue converts a typed value into the form written to the config
// file. Durations are kept as strings like "3s" rather than nanoseconds.
func storedValue(value interface{}) interface{} {
	if d, ok := value.(time.Duration); ok {
		return d.String()
	}
	return value
}

// applyDefaults fills fields a sparse config left at their zero value where
// zero is never meaningful.
func applyDefaults(cfg *Config) {
	if cfg.Timing.Period == 0 {
		cfg.Timing.Period = tick.DefaultPeriod
	}
	if cfg.Timing.PollInterval == 0 {
		cfg.Timing.PollInterval = throttle.DefaultInterval
	}
	if cfg.Timing.AccelerationFactor == 0 {
		cfg.Timing.AccelerationFactor = threshold.DefaultAccelerationFactor
	}
	if cfg.Display.BarWidth == 0 {
		cfg.Display.BarWidth = 40
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(DataDir(), "mptimer.db")
	}
	if cfg.Store.BatchSize == 0 {
		cfg.Store.BatchSize = 500
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate rejects tuning that cannot describe a usable tick window.
func (c *Config) Validate() error {
	if err := c.ThresholdParams().Validate(); err != nil {
		return mperrors.Configuration("config.validate", "timing", "%v", err)
	}
	if c.Timing.PollInterval < 0 || c.Timing.PollInterval >= c.Timing.Period {
		return mperrors.Configuration("config.validate", "timing.poll_interval",
			"poll interval %s must be positive and shorter than the period %s",
			c.Timing.PollInterval, c.Timing.Period)
	}

	colors := map[string]string{
		"colors.border":     c.Colors.Border,
		"colors.background": c.Colors.Background,
		"colors.fill":       c.Colors.Fill,
		"colors.threshold":  c.Colors.Threshold,
	}
	for key, value := range colors {
		if value != "" && !hexColor.MatchString(value) {
			return mperrors.Configuration("config.validate", key, "%q is not a #RRGGBB colour", value)
		}
	}

	if c.Display.BarWidth < 10 || c.Display.BarWidth > 200 {
		return mperrors.Configuration("config.validate", "display.bar_width",
			"bar width must be between 10 and 200, got %d", c.Display.BarWidth)
	}
	if c.Store.BatchSize < 1 {
		return mperrors.Configuration("config.validate", "store.batch_size",
			"batch size must be positive, got %d", c.Store.BatchSize)
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return mperrors.Configuration("config.validate", "log.level", "unknown log level %q", c.Log.Level)
	}
	switch c.Log.Output {
	case "", "stderr", "stdout":
	case "file":
		if c.Log.File == "" {
			return mperrors.Configuration("config.validate", "log.file", "log.output is file but log.file is empty")
		}
	default:
		return mperrors.Configuration("config.validate", "log.output", "unknown log output %q", c.Log.Output)
	}

	return nil
}

// Preferences returns the visibility preferences.
func (c *Config) Preferences() visibility.Preferences {
	return visibility.Preferences{
		Enabled:                     c.Display.Enabled,
		HideOutOfCombat:             c.Display.HideOutOfCombat,
		AlwaysShowInDuty:            c.Display.AlwaysShowInDuty,
		AlwaysShowWithHostileTarget: c.Display.AlwaysShowWithHostileTarget,
	}
}

// ThresholdParams returns the predictor constants.
func (c *Config) ThresholdParams() threshold.Params {
	return threshold.Params{
		Period:             c.Timing.Period,
		CastTime:           c.Timing.CastTime,
		GracePeriod:        c.Timing.GracePeriod,
		AccelerationFactor: c.Timing.AccelerationFactor,
	}
}

// TrackerOptions returns tracker options without hooks attached.
func (c *Config) TrackerOptions() timer.Options {
	return timer.Options{
		Period:        c.Timing.Period,
		PollInterval:  c.Timing.PollInterval,
		Threshold:     c.ThresholdParams(),
		Preferences:   c.Preferences(),
		ShowThreshold: c.Display.ShowThreshold,
	}
}

// LoggerOptions returns the logger setup options.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		Output:     c.Log.Output,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
	}
}

// Set parses value according to the type of key's default and stores it.
func Set(v *viper.Viper, key, value string) error {
	key = strings.ToLower(key)
	def, ok := Defaults()[key]
	if !ok {
		return mperrors.Configuration("config.set", key, "unknown key")
	}

	var (
		parsed interface{}
		err    error
	)
	switch def.(type) {
	case bool:
		parsed, err = cast.ToBoolE(value)
	case int:
		parsed, err = cast.ToIntE(value)
	case float64:
		parsed, err = cast.ToFloat64E(value)
	case time.Duration:
		parsed, err = time.ParseDuration(value)
	default:
		parsed = value
	}
	if err != nil {
		return mperrors.Configuration("config.set", key, "invalid value %q: %v", value, err)
	}

	v.Set(key, storedValue(parsed))
	return nil
}

// ResetKey restores one key to its default.
func ResetKey(v *viper.Viper, key string) error {
	key = strings.ToLower(key)
	def, ok := Defaults()[key]
	if !ok {
		return mperrors.Configuration("config.reset", key, "unknown key")
	}
	v.Set(key, storedValue(def))
	return nil
}

// ResetAll restores every key to its default.
func ResetAll(v *viper.Viper) {
	for key, def := range Defaults() {
		v.Set(key, storedValue(def))
	}
}

// Save writes the current configuration to file
func Save(v *viper.Viper) error {
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		configFile = filepath.Join(DataDir(), "config.yaml")
	}

	dir := filepath.Dir(configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return mperrors.New(mperrors.ErrorTypeStorage, "config.save", dir, err)
	}

	if err := v.WriteConfigAs(configFile); err != nil {
		return mperrors.New(mperrors.ErrorTypeStorage, "config.save", configFile, err)
	}
	return nil
}

// ConfigPath returns the path to the config file
func ConfigPath(v *viper.Viper) string {
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		configFile = filepath.Join(DataDir(), "config.yaml")
	}
	return configFile
}

// DataDir returns the MPTimer data directory
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mptimer"
	}
	return filepath.Join(home, ".mptimer")
}
