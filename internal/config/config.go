// Package config loads zenmode settings with viper from defaults, an optional
// config file, ZENMODE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/zenmode/internal/domain"
)

// Setting keys.
const (
	KeyPollInterval = "poll_interval"
	KeyLogLevel     = "log_level"
	KeyLogFile      = "log_file"
	KeyDataDir      = "data_dir"
	KeySchedule     = "schedule"
	KeyBlocklist    = "blocklist"
)

// EnvPrefix is prepended to every environment variable, e.g. ZENMODE_LOG_LEVEL.
const EnvPrefix = "ZENMODE"

const (
	defaultPollInterval = 5 * time.Second
	defaultLogLevel     = "info"
)

// Settings is one resolved configuration.
type Settings struct {
	PollInterval time.Duration
	LogLevel     string
	LogFile      string
	DataDir      string
	Schedule     []string // Day=HH:MM-HH:MM entries
	Blocklist    []string
}

// NewViper returns a viper instance with defaults and environment binding.
// In the environment, schedule entries are whitespace separated and blocklist
// entries are newline separated, since identifiers may contain spaces.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyPollInterval, defaultPollInterval)
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeySchedule, []string{})
	v.SetDefault(KeyBlocklist, []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile loads path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// Load resolves the current values of v.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		PollInterval: v.GetDuration(KeyPollInterval),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFile:      v.GetString(KeyLogFile),
		DataDir:      v.GetString(KeyDataDir),
		Schedule:     stringList(v, KeySchedule, strings.Fields),
		Blocklist:    stringList(v, KeyBlocklist, splitLines),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// EncodeList renders values for a ZENMODE_* variable so Load reads them back
// unchanged.
func EncodeList(values []string) string {
	return strings.Join(values, "\n")
}

// stringList reads a list key. Plain strings (environment values, scalar file
// entries) are broken up with split; lists from files and flags are used as is.
func stringList(v *viper.Viper, key string, split func(string) []string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return split(raw)
	}
	return v.GetStringSlice(key)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Validate checks every field that can be wrong.
func (s *Settings) Validate() error {
	var errs []error
	if s.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyPollInterval, s.PollInterval))
	}
	if _, err := zapcore.ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyLogLevel, err))
	}
	if _, err := s.BuildSchedule(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level returns the configured log level, defaulting to info.
func (s *Settings) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// BuildSchedule parses the schedule entries.
func (s *Settings) BuildSchedule() (domain.Schedule, error) {
	windows := make([]domain.Window, 0, len(s.Schedule))
	for _, entry := range s.Schedule {
		w, err := ParseWindow(entry)
		if err != nil {
			return domain.Schedule{}, err
		}
		windows = append(windows, w)
	}
	return domain.NewSchedule(windows...)
}

// BuildBlocklist returns the configured identifiers as a Blocklist.
func (s *Settings) BuildBlocklist() domain.Blocklist {
	return domain.NewBlocklist(s.Blocklist...)
}

// ParseWindow parses "Monday=09:00-17:00".
func ParseWindow(entry string) (domain.Window, error) {
	dayPart, span, ok := strings.Cut(strings.TrimSpace(entry), "=")
	if !ok {
		return domain.Window{}, fmt.Errorf("%w: %q is not Day=HH:MM-HH:MM", domain.ErrMalformedSchedule, entry)
	}
	startPart, endPart, ok := strings.Cut(span, "-")
	if !ok {
		return domain.Window{}, fmt.Errorf("%w: %q is missing the end time", domain.ErrMalformedSchedule, entry)
	}

	day, err := domain.ParseWeekday(dayPart)
	if err != nil {
		return domain.Window{}, err
	}
	start, err := domain.ParseTimeOfDay(startPart)
	if err != nil {
		return domain.Window{}, err
	}
	end, err := domain.ParseTimeOfDay(endPart)
	if err != nil {
		return domain.Window{}, err
	}
	return domain.Window{Day: day, Start: start, End: end}, nil
}

// Watch reloads the config file on change and hands valid settings to onChange.
// Invalid edits are logged and ignored, leaving the previous settings in force.
func Watch(v *viper.Viper, logger *zap.Logger, onChange func(*Settings)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		s, err := Load(v)
		if err != nil {
			logger.Warn("ignoring invalid config change",
				zap.String("file", e.Name),
				zap.Error(err))
			return
		}
		logger.Debug("config file changed", zap.String("file", e.Name))
		onChange(s)
	})
	v.WatchConfig()
}
