package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Constants for logging levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Logger interface defines the logging contract
// It also satisfies retryablehttp.LeveledLogger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// Rotation settings of the optional log file
type FileConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
	Compress   bool
}

type options struct {
	file *FileConfig
}

type Option func(*options)

// Duplicate log records into the rotating file
func WithFile(cfg FileConfig) Option {
	return func(o *options) {
		if cfg.MaxSize == 0 {
			cfg.MaxSize = 100
		}
		if cfg.MaxAge == 0 {
			cfg.MaxAge = 28
		}
		if cfg.MaxBackups == 0 {
			cfg.MaxBackups = 3
		}
		o.file = &cfg
	}
}

// New returns text logger for development environment and JSON logger otherwise
func New(env string, level string, opts ...Option) (Logger, error) {
	if env == "dev" || env == "development" {
		return NewTextLogger(level, opts...)
	}
	return NewJSONLogger(level, opts...)
}

// NewTextLogger creates a new text logger with the specified level
func NewTextLogger(level string, opts ...Option) (Logger, error) {
	handlerOpts, w, err := prepare(level, opts)
	if err != nil {
		return nil, err
	}

	return &slogLogger{logger: slog.New(slog.NewTextHandler(w, handlerOpts))}, nil
}

// NewJSONLogger creates a new JSON logger with the specified level
func NewJSONLogger(level string, opts ...Option) (Logger, error) {
	handlerOpts, w, err := prepare(level, opts)
	if err != nil {
		return nil, err
	}

	return &slogLogger{logger: slog.New(slog.NewJSONHandler(w, handlerOpts))}, nil
}

// NewNoOpLogger creates a logger that discards all log messages
func NewNoOpLogger() Logger {
	logger := slog.New(slog.DiscardHandler)
	return &slogLogger{logger: logger}
}

func prepare(level string, opts []Option) (*slog.HandlerOptions, io.Writer, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var w io.Writer = os.Stderr
	if o.file != nil {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   o.file.Filename,
			MaxSize:    o.file.MaxSize,
			MaxAge:     o.file.MaxAge,
			MaxBackups: o.file.MaxBackups,
			Compress:   o.file.Compress,
			LocalTime:  true,
		})
	}

	return &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   true,
		ReplaceAttr: replace,
	}, w, nil
}
