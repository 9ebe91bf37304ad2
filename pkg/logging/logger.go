package logging

import (
	"bytes"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger wraps log.Logger from charmbracelet/log. Buffer is non-nil only
// for test loggers and captures everything the logger writes.
type Logger struct {
	*log.Logger
	Buffer *bytes.Buffer
}

var (
	logger *Logger
	once   sync.Once
)

// CreateLogger sets up the package-level logger. Safe to call more than
// once; only the first call has any effect.
func CreateLogger() {
	once.Do(func() {
		baseLogger := log.New(os.Stderr)

		if os.Getenv("DEBUG") == "1" {
			baseLogger = log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				Prefix:          "looker-agent",
			})
			baseLogger.SetLevel(log.DebugLevel)
		} else {
			baseLogger.SetLevel(log.InfoLevel)
		}

		logger = &Logger{Logger: baseLogger}
	})
}

// GetLogger returns the package-level Logger, creating it if necessary.
func GetLogger() *Logger {
	if logger == nil {
		CreateLogger()
	}
	return logger
}

// NewTestLogger returns a Logger that writes to an in-memory buffer so
// tests can assert on output.
func NewTestLogger() *Logger {
	buf := new(bytes.Buffer)
	baseLogger := log.NewWithOptions(buf, log.Options{
		ReportTimestamp: false,
	})
	baseLogger.SetLevel(log.DebugLevel)
	return &Logger{Logger: baseLogger, Buffer: buf}
}

// GetOutput returns everything captured by a test logger.
func (l *Logger) GetOutput() string {
	if l.Buffer == nil {
		return ""
	}
	return l.Buffer.String()
}

// ResetForTest clears the package-level logger so tests can exercise
// CreateLogger under different environments.
func ResetForTest() {
	logger = nil
	once = sync.Once{}
}
