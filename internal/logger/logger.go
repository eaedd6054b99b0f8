package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	constants "hostmon/config"
)

// Level represents log level
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
	LevelSuccess Level = "SUCCESS"
	LevelDebug   Level = "DEBUG"
)

// Logger writes leveled lines to a file or any writer
type Logger struct {
	filePath string
	logFile  *os.File
	out      io.Writer
	mu       sync.Mutex
}

// New creates a new logger instance appending to filePath.
// An empty path or an unopenable file yields a logger that discards output.
func New(filePath string) *Logger {
	logger := &Logger{filePath: filePath}

	if filePath != "" {
		logFile, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			logger.logFile = logFile
			logger.out = logFile
		}
	}

	return logger
}

// NewWithWriter creates a logger that writes to w
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{out: w}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New(constants.LOG_FILE)
}

// Path returns the file the logger appends to, if any
func (l *Logger) Path() string {
	return l.filePath
}

func (l *Logger) write(level Level, message string, args ...interface{}) {
	timestamp := time.Now().Format(constants.TIME_FORMAT)
	formattedMsg := message
	if len(args) > 0 {
		formattedMsg = fmt.Sprintf(message, args...)
	}
	logEntry := fmt.Sprintf("[%s] %s: %s\n", timestamp, level, formattedMsg)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out != nil {
		io.WriteString(l.out, logEntry)
	}
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
		l.out = nil
	}
}

// Info logs an informational message
func (l *Logger) Info(message string, args ...interface{}) {
	l.write(LevelInfo, message, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(message string, args ...interface{}) {
	l.write(LevelWarning, message, args...)
}

// Error logs an error message
func (l *Logger) Error(message string, args ...interface{}) {
	l.write(LevelError, message, args...)
}

// Success logs a success message
func (l *Logger) Success(message string, args ...interface{}) {
	l.write(LevelSuccess, message, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, args ...interface{}) {
	l.write(LevelDebug, message, args...)
}

var (
	defaultLogger = Default()
	defaultMu     sync.RWMutex
)

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Init points the package logger at a new file. The previous file is closed.
func Init(filePath string) {
	SetDefault(New(filePath))
}

// SetOutput points the package logger at w
func SetOutput(w io.Writer) {
	SetDefault(NewWithWriter(w))
}

// SetDefault replaces the package logger
func SetDefault(l *Logger) {
	defaultMu.Lock()
	old := defaultLogger
	defaultLogger = l
	defaultMu.Unlock()
	if old != nil && old != l {
		old.Close()
	}
}

// Info logs an informational message using the default logger
func Info(message string, args ...interface{}) {
	current().Info(message, args...)
}

// Warning logs a warning message using the default logger
func Warning(message string, args ...interface{}) {
	current().Warning(message, args...)
}

// Error logs an error message using the default logger
func Error(message string, args ...interface{}) {
	current().Error(message, args...)
}

// Success logs a success message using the default logger
func Success(message string, args ...interface{}) {
	current().Success(message, args...)
}

// Debug logs a debug message using the default logger
func Debug(message string, args ...interface{}) {
	current().Debug(message, args...)
}
