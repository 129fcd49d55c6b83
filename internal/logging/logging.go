// Package logging builds the console's zap logger. Output goes to a file
// so the REPL screen stays clean.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file created under the home directory.
const FileName = "harmony-cli.log"

// Options configures New.
type Options struct {
	// Level is a zap level name; empty means info.
	Level string
	// Path is the log file. Empty discards everything.
	Path string
	// Dev switches to the human-readable console encoder.
	Dev bool
}

// Logger bundles the logger with its adjustable level.
type Logger struct {
	*zap.Logger
	Level zap.AtomicLevel
}

// New builds a logger writing to opts.Path.
func New(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		l, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level.SetLevel(l)
	}
	if opts.Path == "" {
		return &Logger{Logger: zap.NewNop(), Level: level}, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if opts.Dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	cfg.OutputPaths = []string{opts.Path}
	cfg.ErrorOutputPaths = []string{opts.Path}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{Logger: logger, Level: level}, nil
}

// SetVerbose toggles debug output at runtime.
func (l *Logger) SetVerbose(on bool) {
	if on {
		l.Level.SetLevel(zapcore.DebugLevel)
		return
	}
	l.Level.SetLevel(zapcore.InfoLevel)
}
