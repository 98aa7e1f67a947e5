package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ObservabilityLogger provides structured JSON logging using logrus
type ObservabilityLogger struct {
	logger *logrus.Logger
	file   *os.File
}

// Component constants for consistent labeling
const (
	ComponentTokenizer  = "tokenizer"
	ComponentSanitizer  = "sanitizer"
	ComponentValidator  = "validator"
	ComponentSerializer = "serializer"
	ComponentWorkspace  = "workspace"
	ComponentServer     = "server"
	ComponentConfig     = "configuration"
	ComponentCLI        = "cli"
)

// Category constants for log classification
const (
	CategoryRequest        = "request"
	CategoryTransformation = "transformation"
	CategorySuccess        = "success"
	CategoryWarning        = "warning"
	CategoryError          = "error"
	CategoryValidation     = "validation"
	CategoryDebug          = "debug"
)

// LogFileName is the JSONL file written inside the configured log directory
const LogFileName = "tagpipe.jsonl"

// NewObservabilityLogger creates a logger writing JSON lines to logDir/tagpipe.jsonl,
// or to stderr when logDir is empty
func NewObservabilityLogger(logDir string, level string) (*ObservabilityLogger, error) {
	if logDir == "" {
		return newLogger(os.Stderr, nil, level), nil
	}

	// Ensure log directory exists
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	logPath := filepath.Join(logDir, LogFileName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return newLogger(file, file, level), nil
}

// NewWriterLogger creates a logger writing JSON lines to w; used by tests and the CLI
func NewWriterLogger(w io.Writer, level string) *ObservabilityLogger {
	return newLogger(w, nil, level)
}

func newLogger(w io.Writer, file *os.File, level string) *ObservabilityLogger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetLevel(ParseLevel(level))

	return &ObservabilityLogger{
		logger: logger,
		file:   file,
	}
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR to a logrus level, defaulting to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
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
		"service":   "tagpipe",
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

// Event routes by category: warnings and errors keep their severity, the rest log at info.
// Its signature matches the LogFunc callbacks accepted by the pipeline packages.
func (o *ObservabilityLogger) Event(component, category, requestID, message string, fields map[string]interface{}) {
	switch category {
	case CategoryError:
		o.Error(component, category, requestID, message, fields)
	case CategoryWarning:
		o.Warn(component, category, requestID, message, fields)
	case CategoryDebug:
		o.Debug(component, category, requestID, message, fields)
	default:
		o.Info(component, category, requestID, message, fields)
	}
}

// Request logs request-related events
func (o *ObservabilityLogger) Request(requestID, message string, fields map[string]interface{}) {
	o.Info(ComponentServer, CategoryRequest, requestID, message, fields)
}
