package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel defines log level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	// OFF disables all output
	OFF
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case OFF:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config string to a LogLevel, defaulting to INFO
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "off", "none":
		return OFF
	default:
		return INFO
	}
}

const filePrefix = "webrag-"

// sink owns the rotating file and is shared by a logger and its children
type sink struct {
	mu          sync.Mutex
	logDir      string
	maxDays     int
	currentFile *os.File
	currentDate string
	console     io.Writer
	now         func() time.Time
}

// Logger is a leveled logger with daily rotation. A nil *Logger discards
// everything, so components can hold one unconditionally.
type Logger struct {
	level  LogLevel
	prefix string
	out    *sink
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Config logger configuration
type Config struct {
	LogDir     string   // Log directory, empty disables file output
	Level      LogLevel // Log level
	MaxDays    int      // Max days to keep logs
	ConsoleOut bool     // Output to stderr as well
}

// Init initializes the default logger
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		defaultLogger, err = NewLogger(cfg)
	})
	return err
}

// NewLogger creates a new logger instance
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 7
	}

	s := &sink{
		logDir:  cfg.LogDir,
		maxDays: cfg.MaxDays,
		now:     time.Now,
	}
	if cfg.ConsoleOut {
		s.console = os.Stderr
	}

	if s.logDir != "" {
		if err := os.MkdirAll(s.logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		if err := s.rotateIfNeeded(); err != nil {
			return nil, err
		}
	}

	return &Logger{level: cfg.Level, out: s}, nil
}

// NewWriter creates a logger that writes plain lines to w, without rotation
func NewWriter(w io.Writer, level LogLevel) *Logger {
	return &Logger{level: level, out: &sink{console: w, now: time.Now}}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{level: OFF}
}

// With returns a child logger whose lines are tagged with component
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	child := *l
	if child.prefix == "" {
		child.prefix = "[" + component + "] "
	} else {
		child.prefix = strings.TrimSuffix(child.prefix, "] ") + "/" + component + "] "
	}
	return &child
}

// rotateIfNeeded checks if log rotation is needed and performs it
func (s *sink) rotateIfNeeded() error {
	today := s.now().Format("2006-01-02")
	if s.currentDate == today && s.currentFile != nil {
		return nil
	}

	if s.currentFile != nil {
		s.currentFile.Close()
	}

	filename := filepath.Join(s.logDir, fmt.Sprintf("%s%s.log", filePrefix, today))
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	s.currentFile = f
	s.currentDate = today

	go s.cleanOldLogs()

	return nil
}

// cleanOldLogs removes log files older than maxDays
func (s *sink) cleanOldLogs() {
	files, err := filepath.Glob(filepath.Join(s.logDir, filePrefix+"*.log"))
	if err != nil {
		return
	}

	if len(files) <= s.maxDays {
		return
	}

	// Names sort by date
	sort.Strings(files)

	for i := 0; i < len(files)-s.maxDays; i++ {
		os.Remove(files[i])
	}
}

// log writes a log message
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l == nil || l.out == nil || level < l.level || level >= OFF {
		return
	}

	s := l.out
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logDir != "" {
		if err := s.rotateIfNeeded(); err != nil {
			fmt.Fprintf(os.Stderr, "Logger rotation error: %v\n", err)
			return
		}
	}

	timestamp := s.now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	logLine := fmt.Sprintf("[%s] [%s] %s%s\n", timestamp, level.String(), l.prefix, message)

	if s.currentFile != nil {
		s.currentFile.WriteString(logLine)
	}
	if s.console != nil {
		io.WriteString(s.console, logLine)
	}
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level LogLevel) bool {
	return l != nil && l.out != nil && level >= l.level && level < OFF
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Close closes the logger's file. Children share the file, so only the
// root logger should be closed.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.currentFile != nil {
		err := l.out.currentFile.Close()
		l.out.currentFile = nil
		return err
	}
	return nil
}

// GetWriter returns an io.Writer for the logger at the specified level
func (l *Logger) GetWriter(level LogLevel) io.Writer {
	return &logWriter{logger: l, level: level}
}

// logWriter implements io.Writer interface
type logWriter struct {
	logger *Logger
	level  LogLevel
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.logger.log(w.level, "%s", msg)
	}
	return len(p), nil
}

// Close closes the default logger
func Close() error {
	return defaultLogger.Close()
}

// GetDefault returns the default logger
func GetDefault() *Logger {
	return defaultLogger
}
