// Package logging wraps zerolog with the key/value call style used across poster-oracle.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a zerolog logger taking alternating key/value fields.
type Logger struct {
	logger zerolog.Logger
	closer io.Closer
}

// Init builds the process logger from configuration and installs it as the
// zerolog global. output is "stdout", "stderr" or a file path.
func Init(level, format, output string) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var (
		writer io.Writer = os.Stdout
		closer io.Closer
	)
	switch output {
	case "", "stdout":
	case "stderr":
		writer = os.Stderr
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- operator supplied log path
		if err != nil {
			return nil, fmt.Errorf("open log output: %w", err)
		}
		writer, closer = file, file
	}

	logger := New(writer, format)
	logger.closer = closer
	log.Logger = logger.logger
	return logger, nil
}

// New builds a logger writing to w without touching global state.
// format is "text" for console output, anything else for JSON.
func New(w io.Writer, format string) *Logger {
	if strings.EqualFold(format, "text") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return &Logger{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// NewNoopLogger returns a logger that discards everything.
func NewNoopLogger() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// With returns a child logger carrying the given key/value pairs on every event.
func (l *Logger) With(fields ...interface{}) *Logger {
	ctx := l.logger.With()
	eachField(fields, func(key string, v interface{}) {
		ctx = ctx.Interface(key, normalize(v))
	})
	return &Logger{logger: ctx.Logger()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...interface{}) {
	emit(l.logger.Debug(), msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...interface{}) {
	emit(l.logger.Info(), msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...interface{}) {
	emit(l.logger.Warn(), msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...interface{}) {
	emit(l.logger.Error(), msg, fields)
}

// Close releases the log file opened by Init, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func emit(event *zerolog.Event, msg string, fields []interface{}) {
	if event == nil {
		return
	}
	eachField(fields, func(key string, v interface{}) {
		switch val := v.(type) {
		case error:
			event.AnErr(key, val)
		case string:
			event.Str(key, val)
		case bool:
			event.Bool(key, val)
		case int:
			event.Int(key, val)
		case time.Duration:
			event.Str(key, val.String())
		case time.Time:
			event.Time(key, val)
		default:
			event.Interface(key, normalize(val))
		}
	})
	event.Msg(msg)
}

// eachField walks key/value pairs. A trailing key without a value is kept
// under "!BADKEY" so it is not silently lost.
func eachField(fields []interface{}, fn func(key string, v interface{})) {
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		if i+1 == len(fields) {
			fn("!BADKEY", key)
			return
		}
		fn(key, fields[i+1])
	}
}

// normalize renders Stringers (addresses, big integers, decimals) as text.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case error:
		return val.Error()
	case time.Duration:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// SetGlobal sets the process-wide logger returned by Global.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Global returns the logger installed by SetGlobal, or a no-op logger.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return NewNoopLogger()
	}
	return globalLogger
}
