package wicklog

import "github.com/kataras/golog"

// GologLogger adapts github.com/kataras/golog to the Logger interface.
type GologLogger struct {
	logger *golog.Logger
	level  Level
	prefix string
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger wraps an existing golog.Logger.
func NewGologLogger(logger *golog.Logger, level Level) *GologLogger {
	return &GologLogger{logger: logger, level: level}
}

func (l *GologLogger) format(format string, v ...any) []any {
	if l.prefix == "" {
		return append([]any{format}, v...)
	}
	return append([]any{"[" + l.prefix + "] " + format}, v...)
}

func (l *GologLogger) Debug(format string, v ...any) {
	if l.level <= LevelDebug {
		l.logger.Debug(l.format(format, v...)...)
	}
}

func (l *GologLogger) Info(format string, v ...any) {
	if l.level <= LevelInfo {
		l.logger.Info(l.format(format, v...)...)
	}
}

func (l *GologLogger) Warn(format string, v ...any) {
	if l.level <= LevelWarn {
		l.logger.Warn(l.format(format, v...)...)
	}
}

func (l *GologLogger) Error(format string, v ...any) {
	if l.level <= LevelError {
		l.logger.Error(l.format(format, v...)...)
	}
}

// With returns a copy of l prefixing every message with field.
func (l *GologLogger) With(field string) Logger {
	prefix := field
	if l.prefix != "" {
		prefix = l.prefix + " " + field
	}
	return &GologLogger{logger: l.logger, level: l.level, prefix: prefix}
}
