package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewDaemonLogger builds the JSON file logger used by the background daemon.
// logPath is used when the settings name no log file. If the file cannot be
// opened it falls back to a production logger on stderr.
func NewDaemonLogger(s *Settings, logPath string) *zap.Logger {
	path := s.LogFile
	if path == "" {
		path = logPath
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(s.Level())
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// NewConsoleLogger builds the human-readable logger for foreground commands.
// It writes to stderr unless the settings name a log file.
func NewConsoleLogger(s *Settings) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(s.Level())
	config.DisableStacktrace = true
	if s.LogFile != "" {
		config.OutputPaths = []string{s.LogFile}
	}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
