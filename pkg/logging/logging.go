// pkg/logging/logging.go - run logging for provision.
//
// A single process-wide logger writes every decision three ways:
// - the console (coloured when attached to a terminal)
// - a plain-text run log (install.log / uninstall.log) in the logs directory
// - events.jsonl, one JSON object per entry, for external tooling

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	// Define log levels.
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func (ll LogLevel) zerolog() zerolog.Level {
	switch ll {
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel converts ERROR/WARN/INFO/DEBUG (any case) into a LogLevel.
// Unknown values fall back to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// LoggerConfig holds configuration for the run logger
type LoggerConfig struct {
	LogDir     string    // Directory for the run log and events stream
	FileName   string    // Run log file name, install.log by default
	Level      LogLevel  // Minimum level written anywhere
	Component  string    // Value of the component field on every entry
	Console    io.Writer // Console sink, os.Stdout when nil
	EnableJSON bool      // Write events.jsonl next to the run log
}

// Logger encapsulates the run logger and its open files.
type Logger struct {
	mu           sync.Mutex
	zl           zerolog.Logger
	logFile      *os.File
	jsonFile     *os.File
	config       LoggerConfig
	sessionStart time.Time
	logPath      string
}

// singleton instance and sync.Once for thread-safe initialization
var (
	instance *Logger
	once     sync.Once

	fallback = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
)

// Init initializes the singleton Logger. Until it is called, messages go to stderr.
func Init(cfg LoggerConfig) error {
	var initErr error
	once.Do(func() {
		instance, initErr = newLogger(cfg)
	})
	return initErr
}

// ReInit closes the current logger (if any) and opens a new one, e.g. when the
// uninstall run switches to its own logs directory.
func ReInit(cfg LoggerConfig) error {
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	CloseLogger()
	once.Do(func() {})
	instance = l
	return nil
}

func newLogger(cfg LoggerConfig) (*Logger, error) {
	if cfg.FileName == "" {
		cfg.FileName = "install.log"
	}
	if cfg.Component == "" {
		cfg.Component = "provision"
	}
	if cfg.Console == nil {
		cfg.Console = os.Stdout
	}
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", cfg.LogDir, err)
	}

	l := &Logger{
		config:       cfg,
		sessionStart: time.Now(),
		logPath:      filepath.Join(cfg.LogDir, cfg.FileName),
	}

	var err error
	l.logFile, err = os.OpenFile(l.logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open main log file: %w", err)
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: cfg.Console, NoColor: !isTerminal(cfg.Console), TimeFormat: "15:04:05"},
		zerolog.ConsoleWriter{Out: l.logFile, NoColor: true, TimeFormat: "2006-01-02 15:04:05"},
	}
	if cfg.EnableJSON {
		jsonPath := filepath.Join(cfg.LogDir, "events.jsonl")
		l.jsonFile, err = os.OpenFile(jsonPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			l.logFile.Close()
			return nil, fmt.Errorf("failed to open JSON log file: %w", err)
		}
		writers = append(writers, l.jsonFile)
	}

	l.zl = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(cfg.Level.zerolog()).
		With().
		Timestamp().
		Str("component", cfg.Component).
		Logger()
	return l, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// CloseLogger closes all log files if they're open.
func CloseLogger() {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	defer instance.mu.Unlock()

	if instance.logFile != nil {
		if err := instance.logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close main log file: %v\n", err)
		}
		instance.logFile = nil
	}
	if instance.jsonFile != nil {
		if err := instance.jsonFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close JSON log file: %v\n", err)
		}
		instance.jsonFile = nil
	}
	instance.zl = zerolog.Nop()
}

// LogFile returns the path of the current run log, or "" before Init.
func LogFile() string {
	if instance == nil {
		return ""
	}
	return instance.logPath
}

// LogDir returns the directory of the current run log, or "" before Init.
func LogDir() string {
	if instance == nil {
		return ""
	}
	return instance.config.LogDir
}

func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	emit(l.zl, level, message, keyValues)
}

func emit(zl zerolog.Logger, level LogLevel, message string, keyValues []interface{}) {
	var ev *zerolog.Event
	switch level {
	case LevelError:
		ev = zl.Error()
	case LevelWarn:
		ev = zl.Warn()
	case LevelDebug:
		ev = zl.Debug()
	default:
		ev = zl.Info()
	}
	if len(keyValues) > 0 {
		ev = ev.Fields(keyValues)
	}
	ev.Msg(message)
}

func logAt(level LogLevel, message string, keyValues []interface{}) {
	if instance == nil {
		emit(fallback, level, message, keyValues)
		return
	}
	instance.logMessage(level, message, keyValues...)
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) {
	logAt(LevelInfo, message, keyValues)
}

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) {
	logAt(LevelDebug, message, keyValues)
}

// Warn logs warning messages.
func Warn(message string, keyValues ...interface{}) {
	logAt(LevelWarn, message, keyValues)
}

// Error logs error messages.
func Error(message string, keyValues ...interface{}) {
	logAt(LevelError, message, keyValues)
}
