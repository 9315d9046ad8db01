package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// FormatConsole selects human-readable output for local runs. Any other
// value emits structured JSON lines.
const FormatConsole = "console"

// Logger is a simple interface for logging messages. The WithIntent
// variants attach the intent ID as a structured field so one payment
// can be traced across sweeps.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithIntent(intentID string, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithIntent(intentID string, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithIntent(intentID string, format string, args ...interface{})

	// Notice logs a lifecycle landmark, rendered at warn level.
	Notice(format string, args ...interface{})
	NoticeWithIntent(intentID string, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                       {}
func (l *EmptyLogger) InfoWithIntent(_ string, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                      {}
func (l *EmptyLogger) ErrorWithIntent(_ string, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                      {}
func (l *EmptyLogger) DebugWithIntent(_ string, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) NoticeWithIntent(_ string, _ string, _ ...interface{}) {}

// ZeroLogger implements the Logger interface on top of zerolog.
type ZeroLogger struct {
	log zerolog.Logger
}

var _ Logger = (*ZeroLogger)(nil)

// NewZeroLogger builds the service logger writing to stderr.
func NewZeroLogger(service, level, format string) *ZeroLogger {
	return NewZeroLoggerTo(os.Stderr, service, level, format)
}

// NewZeroLoggerTo is NewZeroLogger with an explicit destination, used by
// tests to capture output.
func NewZeroLoggerTo(out io.Writer, service, level, format string) *ZeroLogger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zl := zerolog.New(out).Level(lvl).With().Timestamp().Str("service", service).Logger()
	return &ZeroLogger{log: zl}
}

func (l *ZeroLogger) Info(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZeroLogger) InfoWithIntent(intentID string, format string, args ...interface{}) {
	l.log.Info().Str("intent_id", intentID).Msgf(format, args...)
}

func (l *ZeroLogger) Error(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l *ZeroLogger) ErrorWithIntent(intentID string, format string, args ...interface{}) {
	l.log.Error().Str("intent_id", intentID).Msgf(format, args...)
}

func (l *ZeroLogger) Debug(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZeroLogger) DebugWithIntent(intentID string, format string, args ...interface{}) {
	l.log.Debug().Str("intent_id", intentID).Msgf(format, args...)
}

// Notice has no zerolog equivalent and is rendered at warn level so it
// stands out without being filtered with debug noise.
func (l *ZeroLogger) Notice(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZeroLogger) NoticeWithIntent(intentID string, format string, args ...interface{}) {
	l.log.Warn().Str("intent_id", intentID).Msgf(format, args...)
}
