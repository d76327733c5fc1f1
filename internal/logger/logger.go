// Package logger provides tagged console logging backed by zap.
//
// Every line carries a short component tag ("Cache", "Market", "Route", ...)
// so the interleaved output of concurrent fan-out queries stays readable.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = newLogger(zapcore.InfoLevel)
)

func newLogger(level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		level,
	)
	return zap.New(core)
}

// Init replaces the global logger with one filtering at the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func Init(level string) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		lvl = zapcore.InfoLevel
	}
	mu.Lock()
	base = newLogger(lvl)
	mu.Unlock()
}

// Set installs an externally built logger (tests use zap.NewNop or zaptest).
func Set(l *zap.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	base = l
	mu.Unlock()
}

// L returns the underlying zap logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

func tagged(tag string) *zap.Logger {
	return L().With(zap.String("tag", tag))
}

// Debug logs a debug line for the given component tag.
func Debug(tag, msg string, fields ...zap.Field) {
	tagged(tag).Debug(msg, fields...)
}

// Info logs an informational line for the given component tag.
func Info(tag, msg string, fields ...zap.Field) {
	tagged(tag).Info(msg, fields...)
}

// Success logs a completed milestone (startup steps, finished loads).
func Success(tag, msg string, fields ...zap.Field) {
	tagged(tag).Info("✓ "+msg, fields...)
}

// Warn logs a recoverable problem.
func Warn(tag, msg string, fields ...zap.Field) {
	tagged(tag).Warn(msg, fields...)
}

// Error logs a failure.
func Error(tag, msg string, fields ...zap.Field) {
	tagged(tag).Error(msg, fields...)
}

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(os.Stdout, "\n  COVINANCE  trade routes & market cache  %s\n\n", version)
}

// Section prints a section heading in console output.
func Section(title string) {
	fmt.Fprintf(os.Stdout, "\n── %s ──\n", title)
}

// Stats logs a single key/value statistic.
func Stats(key string, value interface{}) {
	L().Info("stat", zap.String("key", key), zap.Any("value", value))
}

// Server logs the listening address.
func Server(addr string) {
	Success("Server", "Listening on http://"+addr)
}
