package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
	sugar  *zap.SugaredLogger
	initMu sync.Once
)

// initLogger builds the process-wide JSON logger on first use.
func initLogger() {
	initMu.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.Level = level
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true

		l, err := cfg.Build(zap.AddCallerSkip(2))
		if err != nil {
			l = zap.NewNop()
		}
		mu.Lock()
		sugar = l.Sugar()
		mu.Unlock()
	})
}

// SetLevel changes the minimum level. Unknown names fall back to info.
func SetLevel(l Level) {
	switch Level(strings.ToLower(string(l))) {
	case LevelDebug:
		level.SetLevel(zap.DebugLevel)
	case LevelWarn:
		level.SetLevel(zap.WarnLevel)
	case LevelError:
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
}

// Use replaces the underlying logger, e.g. with zaptest or zap.NewNop in tests.
func Use(l *zap.Logger) {
	initMu.Do(func() {})
	mu.Lock()
	sugar = l.WithOptions(zap.AddCallerSkip(2)).Sugar()
	mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() error {
	return current().Sync()
}

func Debug(msg string, kv ...any) {
	logWithLevel(zap.DebugLevel, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(zap.InfoLevel, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(zap.WarnLevel, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(zap.ErrorLevel, msg, extended...)
}

func logWithLevel(lvl zapcore.Level, msg string, kv ...any) {
	l := current()
	switch lvl {
	case zap.DebugLevel:
		l.Debugw(msg, kv...)
	case zap.InfoLevel:
		l.Infow(msg, kv...)
	case zap.WarnLevel:
		l.Warnw(msg, kv...)
	default:
		l.Errorw(msg, kv...)
	}
}

func current() *zap.SugaredLogger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}
