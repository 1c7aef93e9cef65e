package zarr

import (
	"fmt"
	"log"
	"strings"

	"github.com/natefinch/lumberjack"
)

type LogMode uint

const (
	DebugMode LogMode = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

// ParseLogMode maps "debug", "info", "warning", "error" and "silent" to a LogMode
func ParseLogMode(s string) (LogMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugMode, nil
	case "", "info":
		return InfoMode, nil
	case "warn", "warning":
		return WarningMode, nil
	case "error":
		return ErrorMode, nil
	case "silent", "off":
		return SilentMode, nil
	}
	return InfoMode, fmt.Errorf("unknown log level %q", s)
}

// Logger records messages at different severities
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Shutdown()
}

var (
	logger Logger = stdLogger{}
	mode          = InfoMode
)

// SetLogMode sets the severity required for a message to be printed.
// SetLogMode(SilentMode) turns logging off.
func SetLogMode(m LogMode) {
	mode = m
}

// SetLogger replaces the package logger. Passing nil restores the default,
// which writes through the standard log package.
func SetLogger(l Logger) {
	if l == nil {
		l = stdLogger{}
	}
	logger = l
}

func Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		logger.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		logger.Warningf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		logger.Errorf(format, args...)
	}
}

// LogConfig sets up logging. An empty Logfile logs to stderr.
type LogConfig struct {
	Logfile string `toml:"logfile"`
	MaxSize int    `toml:"max_log_size"`
	MaxAge  int    `toml:"max_log_age"`
	Level   string `toml:"level"`
}

// SetLogger applies the level and, when a log file is configured, sends
// messages to a rotating file
func (c *LogConfig) SetLogger() error {
	if c == nil {
		return nil
	}
	m, err := ParseLogMode(c.Level)
	if err != nil {
		return err
	}
	SetLogMode(m)
	if c.Logfile == "" {
		return nil
	}
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	log.SetOutput(l)
	SetLogger(stdLogger{l})
	return nil
}

type stdLogger struct {
	*lumberjack.Logger
}

func (stdLogger) Debugf(format string, args ...interface{}) {
	log.Printf(" DEBUG "+format, args...)
}

func (stdLogger) Infof(format string, args ...interface{}) {
	log.Printf(" INFO "+format, args...)
}

func (stdLogger) Warningf(format string, args ...interface{}) {
	log.Printf(" WARNING "+format, args...)
}

func (stdLogger) Errorf(format string, args ...interface{}) {
	log.Printf(" ERROR "+format, args...)
}

func (l stdLogger) Shutdown() {
	if l.Logger != nil {
		l.Close()
	}
}

// Shutdown flushes and closes the package logger
func Shutdown() {
	logger.Shutdown()
}
