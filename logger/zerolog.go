package logger

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ZerologLogger is a Logger backed by github.com/rs/zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
	// level is shared with children created by With.
	level *atomic.Int32
}

var _ Logger = (*ZerologLogger)(nil)

// NewZerolog creates a zerolog based logger writing JSON lines to w.
// A nil writer means stdout. When console is true, records are rendered with
// zerolog.ConsoleWriter instead.
func NewZerolog(w io.Writer, level Level, console bool) Logger {
	if w == nil {
		w = os.Stdout
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w}
	}

	inst := &ZerologLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
		level:  &atomic.Int32{},
	}
	inst.level.Store(int32(level))

	return inst
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	l.emit(DebugLevel, msg, keysAndValues)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...any) {
	l.emit(InfoLevel, msg, keysAndValues)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...any) {
	l.emit(WarnLevel, msg, keysAndValues)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...any) {
	l.emit(ErrorLevel, msg, keysAndValues)
}

func (l *ZerologLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.WithLevel(zerolog.FatalLevel).Fields(keysAndValues).Msg(msg)
	os.Exit(1)
}

func (l *ZerologLogger) With(keyValues ...any) Logger {
	return &ZerologLogger{
		logger: l.logger.With().Fields(keyValues).Logger(),
		level:  l.level,
	}
}

func (l *ZerologLogger) Level() Level {
	return Level(l.level.Load())
}

func (l *ZerologLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *ZerologLogger) emit(level Level, msg string, keysAndValues []any) {
	if level < l.Level() {
		return
	}
	l.logger.WithLevel(toZerologLevel(level)).Fields(keysAndValues).Msg(msg)
}

func toZerologLevel(level Level) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.FatalLevel
	}
}
