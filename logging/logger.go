// Package logging provides structured logging for the document
// pipeline, teeing output to the console and a rotating log file.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with the pipeline's output configuration.
//
// Console output is human-readable and colored in development mode,
// JSON in production. File output is always JSON and rotated by
// lumberjack.
type Logger struct {
	zap *zap.Logger
}

// NewLogger creates a Logger writing to stdout and logFilePath.
// isDevelopment selects debug level with colored console output;
// production uses info level JSON.
func NewLogger(isDevelopment bool, logFilePath string) (*Logger, error) {
	level := zapcore.InfoLevel
	if isDevelopment {
		level = zapcore.DebugLevel
	}

	fileWriter := NewFileWriter(logFilePath, DefaultFileWriterConfig())
	return newLogger(level, zapcore.AddSync(os.Stdout), fileWriter, isDevelopment), nil
}

// NewLoggerWithWriters creates a Logger with explicit writers. Used by
// tests to capture output.
func NewLoggerWithWriters(level zapcore.Level, console, file zapcore.WriteSyncer, isDevelopment bool) *Logger {
	return newLogger(level, console, file, isDevelopment)
}

// NewNop returns a Logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func newLogger(level zapcore.Level, console, file zapcore.WriteSyncer, isDevelopment bool) *Logger {
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), file, level)

	var consoleEncoder zapcore.Encoder
	if isDevelopment {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	consoleCore := zapcore.NewCore(consoleEncoder, console, level)

	zapLogger := zap.New(zapcore.NewTee(consoleCore, fileCore),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)

	return &Logger{zap: zapLogger}
}

// Sync flushes buffered entries. Call before process exit.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs at DebugLevel with structured fields.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

// Info logs at InfoLevel with structured fields.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

// Warn logs at WarnLevel with structured fields.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

// Error logs at ErrorLevel with structured fields.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

// Fatal logs at FatalLevel then exits.
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, fields...)
}

// With returns a child logger carrying the given fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Named returns a child logger with a sub-logger name, identifying the
// emitting component ("pipeline", "ocr-service", ...).
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}
