package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ObservabilityLogger provides structured logging using logrus
type ObservabilityLogger struct {
	logger *logrus.Logger
	file   *os.File
}

// Component constants for consistent labeling
const (
	ComponentParser    = "parser"
	ComponentFilter    = "metadata_filter"
	ComponentHighlight = "highlight"
	ComponentServer    = "server"
	ComponentStream    = "stream_reader"
	ComponentSpeech    = "speech"
	ComponentBreaker   = "circuit_breaker"
	ComponentConfig    = "configuration"
)

// Category constants for log classification
const (
	CategoryRequest    = "request"
	CategoryParse      = "parse"
	CategoryStreaming  = "streaming"
	CategoryValidation = "validation"
	CategoryWarning    = "warning"
	CategoryError      = "error"
	CategoryDebug      = "debug"
	CategorySession    = "session"
)

// Options selects where and how verbosely the logger writes
type Options struct {
	Dir   string // when empty, logs go to stderr
	Level string // logrus level name, defaults to info
}

// NewObservabilityLogger creates a new structured logger writing JSON lines
func NewObservabilityLogger(opts Options) (*ObservabilityLogger, error) {
	var out io.Writer = os.Stderr
	var file *os.File

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, err
		}
		logPath := filepath.Join(opts.Dir, "blockstream.jsonl")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		out, file = f, f
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	return newWithWriter(out, level, file), nil
}

func newWithWriter(out io.Writer, level logrus.Level, file *os.File) *ObservabilityLogger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetLevel(level)

	return &ObservabilityLogger{
		logger: logger,
		file:   file,
	}
}

// Close closes the log file
func (o *ObservabilityLogger) Close() error {
	if o.file != nil {
		return o.file.Close()
	}
	return nil
}

// createEntry creates a logrus entry with standard fields
func (o *ObservabilityLogger) createEntry(component, category, requestID string, fields map[string]interface{}) *logrus.Entry {
	entry := o.logger.WithFields(logrus.Fields{
		"service":   "blockstream",
		"component": component,
		"category":  category,
	})

	if requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	if fields != nil {
		entry = entry.WithFields(fields)
	}

	return entry
}

// Debug logs a debug message
func (o *ObservabilityLogger) Debug(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Debug(message)
}

// Info logs an info message
func (o *ObservabilityLogger) Info(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Info(message)
}

// Warn logs a warning message
func (o *ObservabilityLogger) Warn(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Warn(message)
}

// Error logs an error message
func (o *ObservabilityLogger) Error(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Error(message)
}

// DebugEnabled reports whether debug entries are written
func (o *ObservabilityLogger) DebugEnabled() bool {
	return o.logger.IsLevelEnabled(logrus.DebugLevel)
}
