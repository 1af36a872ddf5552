package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// Logger wraps a zerolog.Logger while preserving the tag/level call shape
// the rest of the module is written against (Error/Warn/Info/Debug/Trace,
// WithTag, SetDestination). Call sites never touch zerolog directly.
type Logger struct {
	// The level at which this logger logs. Any log messages intended for a
	// higher (more verbose) log level are ignored.
	Level

	// Tag used to filter and classify log messages.
	Tag string

	zl zerolog.Logger

	// Mutex shared by all derived loggers, held only while swapping the
	// destination out from under concurrent Log calls.
	mu *sync.Mutex
}

func newConsoleLogger(level Level, tag string, out io.Writer) *Logger {
	cw := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000", NoColor: os.Getenv("NO_COLOR") != ""}
	ctx := zerolog.New(cw).With().Timestamp()
	if tag != "" {
		ctx = ctx.Str("tag", tag)
	}
	return &Logger{Level: level, Tag: tag, zl: ctx.Logger(), mu: new(sync.Mutex)}
}

// Write to stderr by default.
var DefaultLogger = newConsoleLogger(defaultLevel, "", os.Stderr)

// Override the destination for this logger.
func (log *Logger) SetDestination(out io.Writer) {
	log.mu.Lock()
	defer log.mu.Unlock()
	cw := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000", NoColor: true}
	ctx := zerolog.New(cw).With().Timestamp()
	if log.Tag != "" {
		ctx = ctx.Str("tag", log.Tag)
	}
	log.zl = ctx.Logger()
}

// WithWriter derives a logger that additionally feeds w (e.g. the
// roll-forward log file) via zerolog.MultiLevelWriter.
func (log *Logger) WithWriter(w io.Writer) *Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	ctx := zerolog.New(zerolog.MultiLevelWriter(cw, w)).With().Timestamp()
	if log.Tag != "" {
		ctx = ctx.Str("tag", log.Tag)
	}
	return &Logger{Level: log.Level, Tag: log.Tag, zl: ctx.Logger(), mu: log.mu}
}

// Derive a new logger with the given tag. Look up the level based on the tag.
func (log *Logger) WithTag(tag string) *Logger {
	level := determineLevel(tag, log.Level)
	return &Logger{Level: level, Tag: tag, zl: log.zl.With().Str("tag", tag).Logger(), mu: log.mu}
}

// Derive a new logger with the given default level. This can still be
// overridden at runtime via the LOGLEVEL environment variable.
func (log *Logger) WithDefaultLevel(level Level) *Logger {
	return &Logger{Level: determineLevel(log.Tag, level), Tag: log.Tag, zl: log.zl, mu: log.mu}
}

// Log a message at the given level. calldepth is kept for call-site
// compatibility; the zerolog console writer doesn't render caller info.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if level > log.Level {
		// Message is too verbose for this logger.
		return
	}

	var ev *zerolog.Event
	switch {
	case level <= Error:
		ev = log.zl.Error()
	case level == Warn:
		ev = log.zl.Warn()
	case level == Info:
		ev = log.zl.Info()
	default:
		ev = log.zl.Debug()
	}

	msg := fmt.Sprintf(format, a...)
	ev.Msg(strings.TrimSuffix(msg, "\n"))
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}
