// Package gologrus backs the glog logger contract with logrus, optionally
// writing to a rotating file.
package gologrus

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config controls level, format and destination. File empty means stderr.
type Config struct {
	Level      string `koanf:"level" mapstructure:"level"`
	Format     string `koanf:"format" mapstructure:"format"`
	File       string `koanf:"file" mapstructure:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `koanf:"compress" mapstructure:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    FormatText,
		MaxSizeMB: 10,
	}
}

type Logger struct {
	entry  *logrus.Entry
	closer io.Closer
}

type Option func(*logrus.Logger)

// WithOutput overrides the configured destination.
func WithOutput(w io.Writer) Option {
	return func(l *logrus.Logger) {
		if w != nil {
			l.SetOutput(w)
		}
	}
}

func New(cfg Config, opts ...Option) (*Logger, error) {
	base := logrus.New()

	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("gologrus: %w", err)
	}
	base.SetLevel(parsed)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", FormatText:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	case FormatJSON:
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("gologrus: unsupported format %q", cfg.Format)
	}

	var closer io.Closer
	base.SetOutput(os.Stderr)
	if file := strings.TrimSpace(cfg.File); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("gologrus: create log directory: %w", err)
		}
		writer := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		base.SetOutput(writer)
		closer = writer
	}

	for _, opt := range opts {
		if opt != nil {
			opt(base)
		}
	}
	return &Logger{entry: logrus.NewEntry(base), closer: closer}, nil
}

// Wrap adapts an existing logrus logger.
func Wrap(base *logrus.Logger) *Logger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return &Logger{entry: logrus.NewEntry(base)}
}

func (l *Logger) Trace(msg string, args ...any) { l.log(logrus.TraceLevel, msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.log(logrus.DebugLevel, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.log(logrus.InfoLevel, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(logrus.WarnLevel, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.log(logrus.ErrorLevel, msg, args) }

// Fatal logs at fatal level without exiting the process.
func (l *Logger) Fatal(msg string, args ...any) { l.log(logrus.FatalLevel, msg, args) }

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if l == nil || l.entry == nil {
		return l
	}
	return &Logger{entry: l.entry.WithContext(ctx), closer: l.closer}
}

func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if l == nil || l.entry == nil {
		return l
	}
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields)), closer: l.closer}
}

// GetLogger returns a child logger tagged with the component name.
func (l *Logger) GetLogger(name string) glog.Logger {
	if strings.TrimSpace(name) == "" {
		return l
	}
	return l.WithFields(map[string]any{"logger": name})
}

// Close releases the rotating file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) log(level logrus.Level, msg string, args []any) {
	if l == nil || l.entry == nil {
		return
	}
	entry := l.entry
	if fields := argsToFields(args); len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Log(level, msg)
}

func argsToFields(args []any) logrus.Fields {
	if len(args) == 0 {
		return nil
	}
	fields := make(logrus.Fields, (len(args)+1)/2)
	for index := 0; index < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok || strings.TrimSpace(key) == "" {
			key = fmt.Sprintf("arg%d", index)
		}
		if index+1 >= len(args) {
			fields[key] = nil
			continue
		}
		fields[key] = args[index+1]
	}
	return fields
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Logger)(nil)
)
