// Package logger provides the structured logger used across kraken's
// services, built on top of logrus.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger so callers depend on this package, not logrus
// directly.
type Logger struct {
	*logrus.Logger
}

// Config controls level, format and output destination.
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePrefix string `mapstructure:"file_prefix"`
}

// New builds a Logger from Config.
func New(cfg Config) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		if cfg.FilePrefix == "" {
			cfg.FilePrefix = "kraken"
		}
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Errorf("failed to create log dir: %v", err)
			break
		}
		path := filepath.Join(logDir, cfg.FilePrefix+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Errorf("failed to open log file: %v", err)
			break
		}
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	default:
		log.SetOutput(os.Stdout)
	}

	return &Logger{Logger: log}
}

// NewDefault builds a Logger with sane defaults (info level, text format,
// stdout). name does not appear on emitted entries: the returned Logger
// carries no fields.
func NewDefault(name string) *Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	l := &Logger{Logger: log}
	if name == "" {
		return l
	}
	return &Logger{Logger: log.WithField("component", name).Logger}
}

func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}
