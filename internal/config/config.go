package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/loykin/procwatch/internal/logger"
	"github.com/loykin/procwatch/internal/process"
	"github.com/spf13/viper"
)

// Defaults for the CLI surface. Delays are milliseconds on the wire.
const (
	DefaultRestartDelayMS = 1000
	DefaultRecheckDelayMS = 500
	DefaultStopTimeoutMS  = 2000

	DefaultUsageIntervalMS = 5000
)

var (
	ErrPathRequired     = errors.New("path is required")
	ErrNegativeDuration = errors.New("duration must not be negative")
)

// Config is the validated, immutable supervisor configuration.
type Config struct {
	Path              string
	WatchFiles        bool
	Recursive         bool
	OnlyNonZeroExit   bool
	AllowNoExtension  bool // accept executables without a file extension
	RestartDelay      time.Duration
	RecheckDelay      time.Duration
	ForceRestartDelay time.Duration // 0 disables forced restarts
	StopTimeout       time.Duration

	Log           logger.Config
	MetricsListen string
	UsageInterval time.Duration
	HistoryDSN    string
}

// FileConfig is the TOML layout. Keys mirror the command line flags; delays
// are integers in milliseconds.
type FileConfig struct {
	Path              string        `mapstructure:"path"`
	WatchFiles        bool          `mapstructure:"watch_files"`
	Recursive         bool          `mapstructure:"recursive"`
	OnlyNonZeroExit   bool          `mapstructure:"only_non_zero_exit"`
	AllowNoExtension  bool          `mapstructure:"allow_no_extension"`
	RestartDelay      int64         `mapstructure:"restart_delay"`
	RecheckDelay      int64         `mapstructure:"recheck_delay"`
	ForceRestartDelay int64         `mapstructure:"force_restart_delay"`
	StopTimeout       int64         `mapstructure:"stop_timeout"`
	Log               LogConfig     `mapstructure:"log"`
	Metrics           MetricsConfig `mapstructure:"metrics"`
	History           HistoryConfig `mapstructure:"history"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Color      bool   `mapstructure:"color"`
	TimeStamps bool   `mapstructure:"timestamps"`
	Dir        string `mapstructure:"dir"`
	Stdout     string `mapstructure:"stdout"`
	Stderr     string `mapstructure:"stderr"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type MetricsConfig struct {
	Listen        string `mapstructure:"listen"`
	UsageInterval int64  `mapstructure:"usage_interval"`
}

type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DefaultFile returns the file layout populated with defaults.
func DefaultFile() FileConfig {
	return FileConfig{
		RestartDelay: DefaultRestartDelayMS,
		RecheckDelay: DefaultRecheckDelayMS,
		StopTimeout:  DefaultStopTimeoutMS,
		Metrics:      MetricsConfig{UsageInterval: DefaultUsageIntervalMS},
		Log: LogConfig{
			Level:      string(logger.LevelInfo),
			Format:     string(logger.FormatText),
			TimeStamps: true,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultFile()
	v.SetDefault("restart_delay", d.RestartDelay)
	v.SetDefault("recheck_delay", d.RecheckDelay)
	v.SetDefault("stop_timeout", d.StopTimeout)
	v.SetDefault("metrics.usage_interval", d.Metrics.UsageInterval)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.timestamps", d.Log.TimeStamps)
}

// LoadFile reads a TOML config file. An empty path yields DefaultFile().
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return DefaultFile(), nil
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

// Build validates fc and converts it into a Config.
func (fc FileConfig) Build() (Config, error) {
	if fc.Path == "" {
		return Config{}, ErrPathRequired
	}
	for name, v := range map[string]int64{
		"restartDelay":           fc.RestartDelay,
		"recheckDelay":           fc.RecheckDelay,
		"forceRestartDelay":      fc.ForceRestartDelay,
		"stopTimeout":            fc.StopTimeout,
		"metrics.usage_interval": fc.Metrics.UsageInterval,
	} {
		if v < 0 {
			return Config{}, fmt.Errorf("%s=%d: %w", name, v, ErrNegativeDuration)
		}
	}
	return Config{
		Path:              fc.Path,
		WatchFiles:        fc.WatchFiles,
		Recursive:         fc.Recursive,
		OnlyNonZeroExit:   fc.OnlyNonZeroExit,
		AllowNoExtension:  fc.AllowNoExtension,
		RestartDelay:      ms(fc.RestartDelay),
		RecheckDelay:      ms(fc.RecheckDelay),
		ForceRestartDelay: ms(fc.ForceRestartDelay),
		StopTimeout:       ms(fc.StopTimeout),
		Log: logger.Config{
			Slog: logger.SlogConfig{
				Level:      logger.Level(fc.Log.Level),
				Format:     logger.Format(fc.Log.Format),
				Color:      fc.Log.Color,
				TimeStamps: fc.Log.TimeStamps,
			},
			File: logger.FileConfig{
				Dir:        fc.Log.Dir,
				StdoutPath: fc.Log.Stdout,
				StderrPath: fc.Log.Stderr,
				MaxSizeMB:  fc.Log.MaxSizeMB,
				MaxBackups: fc.Log.MaxBackups,
				MaxAgeDays: fc.Log.MaxAgeDays,
				Compress:   fc.Log.Compress,
			},
		},
		MetricsListen: fc.Metrics.Listen,
		UsageInterval: ms(fc.Metrics.UsageInterval),
		HistoryDSN:    fc.History.DSN,
	}, nil
}

// ProcessSpec resolves the executable and derives the managed process spec.
func (c Config) ProcessSpec() (process.Spec, error) {
	t, err := Resolve(c.Path, c.AllowNoExtension)
	if err != nil {
		return process.Spec{}, err
	}
	return process.Spec{
		Dir:             t.Dir,
		Name:            t.Name,
		OnlyNonZeroExit: c.OnlyNonZeroExit,
		RestartDelay:    c.RestartDelay,
		StopTimeout:     c.StopTimeout,
		Log:             c.Log,
	}, nil
}
